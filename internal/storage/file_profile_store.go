package storage

import (
	"context"
	"fmt"

	"github.com/rummage/profilesync/internal/models"
)

// FileProfileStore keeps profile documents in a local JSON file. It backs the
// offline "local" documents backend.
type FileProfileStore struct {
	file *JSONFile[map[string]models.ProfileDocument]
}

func NewFileProfileStore(dataDir string) (*FileProfileStore, error) {
	file, err := NewJSONFile[map[string]models.ProfileDocument](dataDir, "profiles.json")
	if err != nil {
		return nil, err
	}
	return &FileProfileStore{file: file}, nil
}

func (s *FileProfileStore) GetProfile(ctx context.Context, id string) (*models.ProfileDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, err := s.file.Load()
	if err != nil {
		return nil, err
	}
	doc, ok := docs[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	doc.ID = id
	return &doc, nil
}

func (s *FileProfileStore) CreateProfile(ctx context.Context, doc *models.ProfileDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.file.Update(func(docs *map[string]models.ProfileDocument) error {
		if *docs == nil {
			*docs = make(map[string]models.ProfileDocument)
		}
		if _, exists := (*docs)[doc.ID]; exists {
			return fmt.Errorf("profile %s: %w", doc.ID, ErrAlreadyExists)
		}
		(*docs)[doc.ID] = *doc
		return nil
	})
}

func (s *FileProfileStore) PatchProfile(ctx context.Context, id string, patch models.ProfilePatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.file.Update(func(docs *map[string]models.ProfileDocument) error {
		doc, ok := (*docs)[id]
		if !ok {
			return fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		patch.Apply(&doc)
		(*docs)[id] = doc
		return nil
	})
}
