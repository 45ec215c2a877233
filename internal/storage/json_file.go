package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// JSONFile persists a single value of type T as an indented JSON document.
// Writes go to a temp file first and are renamed into place.
type JSONFile[T any] struct {
	mu   sync.Mutex
	path string
}

// NewJSONFile creates dir if needed and returns a handle on dir/name.
func NewJSONFile[T any](dir, name string) (*JSONFile[T], error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &JSONFile[T]{path: filepath.Join(dir, name)}, nil
}

func (f *JSONFile[T]) Path() string { return f.path }

// Load returns the stored value, or the zero value if the file does not exist yet.
func (f *JSONFile[T]) Load() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *JSONFile[T]) Save(v T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(v)
}

// Update loads the value, applies fn and saves the result. Nothing is written if fn fails.
func (f *JSONFile[T]) Update(fn func(*T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.load()
	if err != nil {
		return err
	}
	if err := fn(&v); err != nil {
		return err
	}
	return f.save(v)
}

// Remove deletes the file. A missing file is not an error.
func (f *JSONFile[T]) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *JSONFile[T]) load() (T, error) {
	var v T
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return v, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&v); err != nil {
		return v, fmt.Errorf("decode %s: %w", filepath.Base(f.path), err)
	}
	return v, nil
}

func (f *JSONFile[T]) save(v T) error {
	tempFile := f.path + ".tmp"
	file, err := os.OpenFile(tempFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		file.Close()
		os.Remove(tempFile)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, f.path)
}
