package recipe

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mineichen/rigcore/internal/rig"
)

// filePermissions is the mode for device files written by the store.
const filePermissions = 0o644

// dirPermissions is the mode for created device directories.
const dirPermissions = 0o750

// RelativeFilePath validates a path used below a device directory:
// it must be relative, slash-separated, clean and must not escape via
// "..".
func RelativeFilePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	cleaned := path.Clean(p)
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q escapes the device directory", ErrInvalidPath, p)
	}
	if cleaned == "." {
		return "", fmt.Errorf("%w: %q names no file", ErrInvalidPath, p)
	}
	return cleaned, nil
}

// FileServiceBuilder creates per-device file stores below one recipe
// root.
type FileServiceBuilder struct {
	root string
}

// NewFileServiceBuilder returns a builder for the given recipe root.
func NewFileServiceBuilder(root string) *FileServiceBuilder {
	return &FileServiceBuilder{root: root}
}

// Build returns the file store for one device.
func (b *FileServiceBuilder) Build(deviceID rig.DeviceID) *FileService {
	return &FileService{root: filepath.Join(b.root, deviceID.String())}
}

// FileService stores one device's files under
// <recipeRoot>/<deviceID>/<relative path>.
type FileService struct {
	root string
}

// Root returns the device's directory.
func (s *FileService) Root() string {
	return s.root
}

// Add writes the file at the validated relative path, creating parent
// directories as needed.
func (s *FileService) Add(relPath string, r io.Reader) error {
	rel, err := RelativeFilePath(relPath)
	if err != nil {
		return err
	}
	target := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

// Get reads the file at the validated relative path.
func (s *FileService) Get(relPath string) ([]byte, error) {
	rel, err := RelativeFilePath(relPath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
}

// Remove deletes the file at the validated relative path.
func (s *FileService) Remove(relPath string) error {
	rel, err := RelativeFilePath(relPath)
	if err != nil {
		return err
	}
	return os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
}

// RemoveAll deletes the device's whole directory.
func (s *FileService) RemoveAll() error {
	return os.RemoveAll(s.root)
}

// List returns all relative file paths below the device directory in
// sorted order. A missing directory lists as empty.
func (s *FileService) List() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == s.root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
