// Package errors provides common domain error types for qidlink.
//
// This package defines sentinel errors for conditions that cross package
// boundaries (unusable input records, corrupt persisted state) so callers
// can branch with errors.Is() instead of matching strings.
//
// Usage:
//
//	import qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
//
//	if qerrors.IsEmptyInput(err) {
//	    summary.Skipped++
//	    continue
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrEmptyInput indicates a record with no usable name. Callers skip and count it.
	ErrEmptyInput = errors.New("empty input")

	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrCacheCorrupt indicates a persisted query cache that could not be decoded.
	ErrCacheCorrupt = errors.New("cache corrupt")

	// ErrLocked indicates another process holds the lock on a shared resource.
	ErrLocked = errors.New("resource locked")
)

// IsEmptyInput reports whether any error in err's chain is ErrEmptyInput.
func IsEmptyInput(err error) bool {
	return errors.Is(err, ErrEmptyInput)
}

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsCacheCorrupt reports whether any error in err's chain is ErrCacheCorrupt.
func IsCacheCorrupt(err error) bool {
	return errors.Is(err, ErrCacheCorrupt)
}

// IsLocked reports whether any error in err's chain is ErrLocked.
func IsLocked(err error) bool {
	return errors.Is(err, ErrLocked)
}
