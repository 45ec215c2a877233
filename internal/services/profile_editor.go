package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rummage/profilesync/internal/models"
	"github.com/rummage/profilesync/internal/storage"
)

// ProfileEditor applies explicit profile edits. It is also how a document missing
// after a partial registration gets created.
type ProfileEditor struct {
	profiles ProfileStore
	now      func() time.Time
	log      zerolog.Logger
}

func NewProfileEditor(profiles ProfileStore, log zerolog.Logger) *ProfileEditor {
	return &ProfileEditor{
		profiles: profiles,
		now:      time.Now,
		log:      log.With().Str("component", "profile_editor").Logger(),
	}
}

type newProfileFields struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

// Save patches the identity's document, or creates it when it does not exist yet.
// The returned view reflects the saved document.
func (e *ProfileEditor) Save(ctx context.Context, identity *models.Identity, edit models.ProfileEdit) (*models.ProfileView, error) {
	if identity == nil || identity.ID == "" {
		return nil, ErrNotAuthenticated
	}
	edit = trimEdit(edit)
	if err := validateNames(edit); err != nil {
		return nil, err
	}

	doc, err := e.profiles.GetProfile(ctx, identity.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return e.create(ctx, identity, edit)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	patch := edit.Patch()
	if patch.IsEmpty() {
		return models.NewDocumentView(doc), nil
	}
	if err := e.profiles.PatchProfile(ctx, identity.ID, patch); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileWrite, err)
	}

	patch.Apply(doc)
	if doc.ID == "" {
		doc.ID = identity.ID
	}
	e.log.Info().Str("user_id", identity.ID).Int("fields", len(patch.Fields())).Msg("profile updated")
	return models.NewDocumentView(doc), nil
}

func (e *ProfileEditor) create(ctx context.Context, identity *models.Identity, edit models.ProfileEdit) (*models.ProfileView, error) {
	doc := &models.ProfileDocument{
		ID:              identity.ID,
		Email:           identity.Email,
		ProfilePhotoURI: identity.PhotoURI,
		CreatedAt:       e.now().UTC(),
	}
	edit.Patch().Apply(doc)

	if err := validateStruct(newProfileFields{FirstName: doc.FirstName, LastName: doc.LastName}); err != nil {
		return nil, err
	}
	if err := e.profiles.CreateProfile(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileWrite, err)
	}

	e.log.Info().Str("user_id", identity.ID).Msg("profile document created")
	return models.NewDocumentView(doc), nil
}

// validateNames rejects an edit that would blank out a name.
func validateNames(edit models.ProfileEdit) error {
	var fields []string
	if edit.FirstName != nil && *edit.FirstName == "" {
		fields = append(fields, "first_name")
	}
	if edit.LastName != nil && *edit.LastName == "" {
		fields = append(fields, "last_name")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func trimEdit(edit models.ProfileEdit) models.ProfileEdit {
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := strings.TrimSpace(*s)
		return &v
	}
	return models.ProfileEdit{
		FirstName: trim(edit.FirstName),
		LastName:  trim(edit.LastName),
		Address:   trim(edit.Address),
		Phone:     trim(edit.Phone),
		BornOrAge: trim(edit.BornOrAge),
	}
}
