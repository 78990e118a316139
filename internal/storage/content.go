package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// ContentStore persists uploaded document bytes under a single directory.
type ContentStore struct {
	dir string
}

// NewContentStore returns a store rooted at dir, creating the directory if needed.
func NewContentStore(dir string) (*ContentStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	return &ContentStore{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (c *ContentStore) Dir() string {
	return c.dir
}

// Put writes data under name and returns the final path. The bytes are written to a
// temporary file, synced and renamed into place, so the returned path never refers to
// a partially written file. On error nothing is left behind.
func (c *ContentStore) Put(name string, data []byte) (string, error) {
	final := filepath.Join(c.dir, filepath.Base(name))
	tmp, err := os.CreateTemp(c.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		cleanup()
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return final, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (c *ContentStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
