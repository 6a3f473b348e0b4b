package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrFileNotFound is returned when a requested artifact does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidPath is returned when a name is empty or escapes the store.
	ErrInvalidPath = errors.New("invalid path")
)

// LocalStore keeps artifacts below a base directory.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a store rooted at baseDir, creating it if needed. An
// empty baseDir means the working directory.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "."
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStore{baseDir: abs}, nil
}

// Dir returns the absolute base directory.
func (s *LocalStore) Dir() string {
	return s.baseDir
}

// Save writes r to a temporary file next to the target and renames it into
// place, so readers never see a partial artifact.
func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	fullPath, err := s.validateAndJoinPath(name)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	return fullPath, nil
}

// Open opens the artifact for reading.
func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	fullPath, err := s.validateAndJoinPath(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Exists checks if an artifact is stored under name.
func (s *LocalStore) Exists(ctx context.Context, name string) (bool, error) {
	fullPath, err := s.validateAndJoinPath(name)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}

	return true, nil
}

// Location returns the absolute path of an existing artifact.
func (s *LocalStore) Location(ctx context.Context, name string) (string, error) {
	fullPath, err := s.validateAndJoinPath(name)
	if err != nil {
		return "", err
	}

	exists, err := s.Exists(ctx, name)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", ErrFileNotFound
	}

	return fullPath, nil
}

// validateAndJoinPath joins name with the base directory and rejects results
// outside of it.
func (s *LocalStore) validateAndJoinPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: absolute paths not allowed", ErrInvalidPath)
	}

	fullPath := filepath.Join(s.baseDir, filepath.Clean(name))

	relPath, err := filepath.Rel(s.baseDir, fullPath)
	if err != nil || relPath == "." || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path traversal detected", ErrInvalidPath)
	}

	return fullPath, nil
}
