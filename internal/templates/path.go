package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines file access to one directory.
type PathValidator struct {
	directory string
}

// NewPathValidator creates a validator for directory. The directory does not
// have to exist yet.
func NewPathValidator(directory string) (*PathValidator, error) {
	if strings.TrimSpace(directory) == "" {
		return nil, fmt.Errorf("template directory cannot be empty")
	}
	abs, err := filepath.Abs(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template directory: %w", err)
	}
	return &PathValidator{directory: filepath.Clean(abs)}, nil
}

// Directory returns the absolute directory paths are confined to.
func (v *PathValidator) Directory() string {
	return v.directory
}

// Resolve maps a file name onto an absolute path inside the directory.
// Relative names are joined to the directory; the result must not escape it,
// lexically or through a symlink.
func (v *PathValidator) Resolve(name string) (string, error) {
	name = strings.ReplaceAll(name, "\x00", "")
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.directory, path)
	}
	path = filepath.Clean(path)

	within, err := v.IsWithin(path)
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}
	if !within {
		return "", fmt.Errorf("path is outside template directory: %s", name)
	}
	return path, nil
}

// IsWithin reports whether path lies inside the directory. Symlinks in
// either are resolved when they exist.
func (v *PathValidator) IsWithin(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	realPath := cleanPath
	if resolved, err := filepath.EvalSymlinks(cleanPath); err == nil {
		realPath = resolved
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	realDir := v.directory
	if resolved, err := filepath.EvalSymlinks(v.directory); err == nil {
		realDir = resolved
	}

	return inside(cleanPath, v.directory) && (inside(realPath, v.directory) || inside(realPath, realDir)), nil
}

func inside(path, dir string) bool {
	if path == dir {
		return true
	}
	withSep := dir
	if !strings.HasSuffix(withSep, string(filepath.Separator)) {
		withSep += string(filepath.Separator)
	}
	return strings.HasPrefix(path, withSep)
}
