package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	importing "github.com/mohammadpnp/school-import/internal/domain/importing"
)

// LocalStorage keeps raw uploads on disk, one file per batch key.
type LocalStorage struct {
	BaseDir string
}

func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "."
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", baseDir, err)
	}
	return &LocalStorage{BaseDir: baseDir}, nil
}

// Save writes r under key through a temp file so a half-written upload is
// never visible under the final name.
func (s *LocalStorage) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.BaseDir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write upload %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close upload %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("store upload %s: %w", key, err)
	}
	return written, nil
}

func (s *LocalStorage) Path(ctx context.Context, key string) (string, error) {
	_ = ctx

	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", importing.NewError(importing.ErrFileNotFound, "the uploaded file for this batch is no longer available").WithCause(err)
		}
		return "", fmt.Errorf("stat upload %s: %w", key, err)
	}
	return path, nil
}

// Delete removes the stored file. Deleting a missing file is not an error.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	_ = ctx

	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete upload %s: %w", key, err)
	}
	return nil
}

func (s *LocalStorage) resolve(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.BaseDir, key), nil
}
