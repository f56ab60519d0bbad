package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsEmptyInput(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrEmptyInput, true},
		{"wrapped once", fmt.Errorf("generate candidates: %w", ErrEmptyInput), true},
		{"wrapped twice", fmt.Errorf("row 12: %w", fmt.Errorf("generate: %w", ErrEmptyInput)), true},
		{"different error", ErrNotFound, false},
		{"nil error", nil, false},
		{"unrelated error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEmptyInput(tt.err); got != tt.want {
				t.Errorf("IsEmptyInput() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrNotFound, true},
		{"wrapped", fmt.Errorf("get cache entry: %w", ErrNotFound), true},
		{"different error", ErrValidation, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrValidation, true},
		{"wrapped", fmt.Errorf("config: %w", ErrValidation), true},
		{"different error", ErrEmptyInput, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.want {
				t.Errorf("IsValidation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCacheCorrupt(t *testing.T) {
	wrapped := fmt.Errorf("load cache.json: %w", ErrCacheCorrupt)
	if !IsCacheCorrupt(wrapped) {
		t.Errorf("IsCacheCorrupt(wrapped) = false, want true")
	}
	if IsCacheCorrupt(ErrLocked) {
		t.Errorf("IsCacheCorrupt(ErrLocked) = true, want false")
	}
}

func TestIsLocked(t *testing.T) {
	if !IsLocked(fmt.Errorf("open store: %w", ErrLocked)) {
		t.Errorf("IsLocked(wrapped) = false, want true")
	}
	if IsLocked(nil) {
		t.Errorf("IsLocked(nil) = true, want false")
	}
}
