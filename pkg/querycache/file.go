package querycache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
)

// FileStore persists the cache as one JSON object in a file. While open it
// holds an exclusive lock on "<path>.lock" so two runs cannot write the same
// cache file.
type FileStore struct {
	path string
	lock *flock.Flock
}

// OpenFileStore locks path for writing and returns the store. It fails with
// errors.ErrLocked if another process holds the lock.
func OpenFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock cache file: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("cache file %s: %w", path, qerrors.ErrLocked)
	}

	return &FileStore{path: path, lock: lock}, nil
}

// Path returns the cache file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (Entries, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Entries{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Entries{}, nil
	}

	var entries Entries
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", s.path, err, qerrors.ErrCacheCorrupt)
	}
	if entries == nil {
		entries = Entries{}
	}
	return entries, nil
}

// Save rewrites the whole file through a temp file and rename, so a crash
// mid-write leaves the previous cache intact.
func (s *FileStore) Save(ctx context.Context, all Entries, changed []string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return s.lock.Unlock()
}
