package destination

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage abstracts the destination file store. The final destination may
// be a managed/sandboxed location where directories and files must be
// created entry by entry with a declared content type.
type Storage interface {
	// CheckWritable verifies write permission on the root up front.
	CheckWritable(root string) error
	// EnsureDir returns the path of the named child directory under
	// parent, reusing an existing same-named directory or creating one.
	EnsureDir(parent, name string) (string, error)
	// CreateFile creates (replacing any pre-existing entry of that
	// name) a file with the first accepted content type from the
	// candidate list and returns an open writer plus the final path.
	CreateFile(dir, name string, contentTypes []string) (io.WriteCloser, string, error)
	// Delete removes an entry; deleting a missing entry is not an error.
	Delete(path string) error
}

// audioContentTypes are the candidate types tried for a new audiobook
// file, in order.
var audioContentTypes = []string{"audio/m4b", "audio/mp4", "audio/mpeg"}

// LocalStorage implements Storage on the local filesystem. The content
// type candidates are accepted as-is; the loop matters only for managed
// stores that may refuse a type.
type LocalStorage struct{}

// NewLocalStorage creates a local filesystem store.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

// CheckWritable probes the root by creating and removing a marker file.
func (s *LocalStorage) CheckWritable(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrPermission, root)
	}

	marker, err := os.CreateTemp(root, ".talefetch-write-check-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}
	name := marker.Name()
	_ = marker.Close()
	_ = os.Remove(name)
	return nil
}

// EnsureDir reuses or creates the named child directory.
func (s *LocalStorage) EnsureDir(parent, name string) (string, error) {
	path := filepath.Join(parent, name)
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s exists and is not a directory", ErrDirectoryCreate, path)
	}
	if err := os.Mkdir(path, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDirectoryCreate, err)
	}
	return path, nil
}

// CreateFile replaces any pre-existing file of that name and opens a new one.
func (s *LocalStorage) CreateFile(dir, name string, contentTypes []string) (io.WriteCloser, string, error) {
	if len(contentTypes) == 0 {
		return nil, "", fmt.Errorf("no content type candidates")
	}
	path := filepath.Join(dir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("remove existing %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("create %s: %w", path, err)
	}
	return f, path, nil
}

// Delete removes an entry. Idempotent.
func (s *LocalStorage) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
