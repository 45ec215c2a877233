package services

import (
	"context"

	"github.com/rummage/profilesync/internal/models"
)

// IdentityProvider is the remote account service. ObserveState delivers the current
// state immediately and then every transition; the returned func unsubscribes.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
	CreateIdentity(ctx context.Context, email, password string) (*models.Identity, error)
	SignOut(ctx context.Context) error
	PatchIdentity(ctx context.Context, id string, patch models.IdentityPatch) error
	ObserveState(callback func(*models.Identity)) func()
}

// ProfileStore holds profile documents keyed by identity id. GetProfile and
// PatchProfile wrap storage.ErrNotFound for a missing document.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.ProfileDocument, error)
	CreateProfile(ctx context.Context, doc *models.ProfileDocument) error
	PatchProfile(ctx context.Context, id string, patch models.ProfilePatch) error
}

// ObjectStore holds uploaded photos. Put overwrites an existing key.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	RetrievalURI(ctx context.Context, key string) (string, error)
}

type MediaSource interface {
	PickFromLibrary(ctx context.Context) (*models.ImageRef, error)
	CaptureFromCamera(ctx context.Context) (*models.ImageRef, error)
}

type ImageTransformer interface {
	Transform(ctx context.Context, ref *models.ImageRef, size, quality int) (*models.ImageRef, error)
}

// Screener rejects images that must not be published.
type Screener interface {
	Screen(ctx context.Context, ref *models.ImageRef) error
}
