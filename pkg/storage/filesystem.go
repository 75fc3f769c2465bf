package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrOutsideBase rejects paths that escape the storage root.
	ErrOutsideBase = errors.New("storage: path escapes base directory")
	// ErrTooLarge is returned when an upload exceeds its byte limit.
	ErrTooLarge = errors.New("storage: file too large")
)

// LocalStorage keeps files on disk below a single root directory.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates root when needed.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

// Save writes data under name and returns the stored relative name.
func (s *LocalStorage) Save(name string, data []byte) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}

// SaveLimited streams r into name, failing with ErrTooLarge once more than limit bytes arrive.
// A partially written file is removed on failure.
func (s *LocalStorage) SaveLimited(name string, r io.Reader, limit int64) (string, int64, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", 0, fmt.Errorf("prepare %s: %w", name, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", name, err)
	}
	reader := r
	if limit > 0 {
		reader = io.LimitReader(r, limit+1)
	}
	n, copyErr := io.Copy(file, reader)
	closeErr := file.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write %s: %w", name, copyErr)
	case limit > 0 && n > limit:
		_ = os.Remove(path)
		return "", 0, ErrTooLarge
	case closeErr != nil:
		return "", 0, fmt.Errorf("close %s: %w", name, closeErr)
	}
	return name, n, nil
}

// Open returns a read handle for name.
func (s *LocalStorage) Open(name string) (*os.File, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return file, nil
}

// Delete removes name; missing files are ignored.
func (s *LocalStorage) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// CleanupOlderThan removes files last modified before now-age and returns their relative names.
func (s *LocalStorage) CleanupOlderThan(age time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-age)
	var removed []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		if rel, err := filepath.Rel(s.root, path); err == nil {
			removed = append(removed, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cleanup %s: %w", s.root, err)
	}
	return removed, nil
}

// Root returns the absolute storage root.
func (s *LocalStorage) Root() string { return s.root }

func (s *LocalStorage) resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", ErrOutsideBase
	}
	path := filepath.Join(s.root, filepath.FromSlash(name))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", ErrOutsideBase
	}
	return path, nil
}
