package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileSystem wraps Afero filesystem with runtime directory management.
// Local database files (sqlite) live under the runtime directory.
type FileSystem struct {
	fs          afero.Fs
	runtimePath string
}

// NewWithBasePath creates a new filesystem instance with custom base path
func NewWithBasePath(basePath string) (*FileSystem, error) {
	return NewWithFs(afero.NewOsFs(), basePath)
}

// NewWithFs creates the runtime directory on the given filesystem
func NewWithFs(fs afero.Fs, basePath string) (*FileSystem, error) {
	runtimePath := filepath.Join(basePath, ".runtime")

	if err := fs.MkdirAll(runtimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	return &FileSystem{
		fs:          fs,
		runtimePath: runtimePath,
	}, nil
}

// GetFs returns the underlying Afero filesystem
func (fsys *FileSystem) GetFs() afero.Fs {
	return fsys.fs
}

// GetRuntimePath returns the .runtime directory path
func (fsys *FileSystem) GetRuntimePath() string {
	return fsys.runtimePath
}

// DataFilePath resolves name to a file path and makes sure its parent
// directory exists. Relative names land under the runtime directory.
func (fsys *FileSystem) DataFilePath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty data file name")
	}
	p := name
	if !filepath.IsAbs(name) {
		p = filepath.Join(fsys.runtimePath, name)
	}
	if err := fsys.fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return p, nil
}

// Exists reports whether the path exists on the underlying filesystem
func (fsys *FileSystem) Exists(path string) (bool, error) {
	_, err := fsys.fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
