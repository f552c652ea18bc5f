package tzsvc

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// OverrideStore persists the active-timezone override independently of
// record data.
type OverrideStore interface {
	// Get returns the stored timezone name; ok is false when no override
	// is set.
	Get() (name string, ok bool, err error)
	Set(name string) error
}

// FileStore keeps the override as a single line in a file, surviving
// restarts. A missing or empty file means "no override".
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Get() (string, bool, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	name := strings.TrimSpace(string(b))
	if name == "" {
		return "", false, nil
	}
	return name, true, nil
}

func (f *FileStore) Set(name string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.path, []byte(name+"\n"), 0o644)
}
