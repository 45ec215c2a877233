package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rummage/profilesync/internal/models"
	"github.com/rummage/profilesync/internal/storage"
)

// ProfileResolver builds the ProfileView for an identity. It only reads.
type ProfileResolver struct {
	profiles ProfileStore
	log      zerolog.Logger
}

func NewProfileResolver(profiles ProfileStore, log zerolog.Logger) *ProfileResolver {
	return &ProfileResolver{
		profiles: profiles,
		log:      log.With().Str("component", "profile_resolver").Logger(),
	}
}

// Resolve returns the stored document as a view, or a view synthesized from the
// identity when no document exists. Store failures are returned, not retried.
func (r *ProfileResolver) Resolve(ctx context.Context, identity *models.Identity) (*models.ProfileView, error) {
	if identity == nil || identity.ID == "" {
		return nil, ErrNotAuthenticated
	}

	doc, err := r.profiles.GetProfile(ctx, identity.ID)
	if errors.Is(err, storage.ErrNotFound) {
		r.log.Debug().Str("user_id", identity.ID).Msg("no profile document, using identity fallback")
		return models.NewIdentityView(identity), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if doc.ID == "" {
		doc.ID = identity.ID
	}
	return models.NewDocumentView(doc), nil
}
