package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
)

type fileFormat struct {
	ProcessedKeys []string `json:"processed_keys"`
}

// FileStore keeps processed keys in a JSON file of the form
// {"processed_keys": [...]}. The whole file is rewritten on every Add.
type FileStore struct {
	mu   sync.Mutex
	path string
	keys []string
	seen map[string]bool
}

// NewFileStore returns a store backed by path. The file is created on the
// first Add.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, seen: make(map[string]bool)}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing file is an empty set; an unreadable one
// fails with ErrCacheCorrupt.
func (s *FileStore) Load(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var f fileFormat
	if len(data) > 0 {
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode %s: %v: %w", s.path, err, qerrors.ErrCacheCorrupt)
		}
	}
	s.keys = s.keys[:0]
	s.seen = make(map[string]bool, len(f.ProcessedKeys))
	for _, k := range f.ProcessedKeys {
		if !s.seen[k] {
			s.seen[k] = true
			s.keys = append(s.keys, k)
		}
	}
	return append([]string(nil), s.keys...), nil
}

// Add appends keys and rewrites the file through a temp file and rename.
func (s *FileStore) Add(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		if !s.seen[k] {
			s.seen[k] = true
			s.keys = append(s.keys, k)
		}
	}

	data, err := json.MarshalIndent(fileFormat{ProcessedKeys: s.keys}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
