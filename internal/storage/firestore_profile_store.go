package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rummage/profilesync/internal/models"
)

// FirestoreProfileStore keeps profile documents at <collection>/<identity id>.
type FirestoreProfileStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreProfileStore(client *firestore.Client, collection string) *FirestoreProfileStore {
	return &FirestoreProfileStore{client: client, collection: collection}
}

func (s *FirestoreProfileStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreProfileStore) GetProfile(ctx context.Context, id string) (*models.ProfileDocument, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	var doc models.ProfileDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", id, err)
	}
	doc.ID = snap.Ref.ID
	return &doc, nil
}

// CreateProfile fails with ErrAlreadyExists instead of overwriting an existing document.
func (s *FirestoreProfileStore) CreateProfile(ctx context.Context, doc *models.ProfileDocument) error {
	_, err := s.client.Collection(s.collection).Doc(doc.ID).Create(ctx, doc)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("profile %s: %w", doc.ID, ErrAlreadyExists)
		}
		return err
	}
	return nil
}

// PatchProfile updates only the given fields. Firestore rejects updates on a missing
// document, which surfaces as ErrNotFound.
func (s *FirestoreProfileStore) PatchProfile(ctx context.Context, id string, patch models.ProfilePatch) error {
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil
	}

	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}

	_, err := s.client.Collection(s.collection).Doc(id).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		return err
	}
	return nil
}
