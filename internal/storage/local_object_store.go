package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidKey = errors.New("invalid object key")

// LocalObjectStore writes objects under a directory and hands out URLs below
// publicBaseURL. The bridge server serves that directory at /uploads/.
type LocalObjectStore struct {
	uploadDir     string
	publicBaseURL string
}

func NewLocalObjectStore(uploadDir, publicBaseURL string) (*LocalObjectStore, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalObjectStore{
		uploadDir:     uploadDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (s *LocalObjectStore) Dir() string { return s.uploadDir }

// Put overwrites any existing object stored under key.
func (s *LocalObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create object dir: %w", err)
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save file: %w", err)
	}
	return os.Rename(tmp, filePath)
}

func (s *LocalObjectStore) RetrievalURI(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	filePath, err := s.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("object %s: %w", key, ErrNotFound)
		}
		return "", err
	}
	return s.publicBaseURL + "/" + key, nil
}

func (s *LocalObjectStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.uploadDir, clean), nil
}
