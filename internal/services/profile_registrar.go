package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rummage/profilesync/internal/models"
)

// ProfileRegistrar creates an identity and then its profile document.
type ProfileRegistrar struct {
	identity IdentityProvider
	profiles ProfileStore
	now      func() time.Time
	log      zerolog.Logger
}

func NewProfileRegistrar(identity IdentityProvider, profiles ProfileStore, log zerolog.Logger) *ProfileRegistrar {
	return &ProfileRegistrar{
		identity: identity,
		profiles: profiles,
		now:      time.Now,
		log:      log.With().Str("component", "profile_registrar").Logger(),
	}
}

// Register validates form locally, creates the identity and writes its document.
//
// When the document write fails the identity already exists and is returned
// together with an error wrapping ErrProfileWrite. No rollback is attempted:
// ProfileResolver falls back to identity data and ProfileEditor.Save can create
// the missing document later.
func (r *ProfileRegistrar) Register(ctx context.Context, form models.RegistrationForm) (*models.Identity, error) {
	form = trimForm(form)
	if err := validateStruct(form); err != nil {
		return nil, err
	}

	identity, err := r.identity.CreateIdentity(ctx, form.Email, form.Password)
	if err != nil {
		r.log.Warn().Err(err).Msg("identity creation failed")
		return nil, fmt.Errorf("%w: %w", ErrIdentityCreation, err)
	}

	email := identity.Email
	if email == "" {
		email = form.Email
	}
	doc := &models.ProfileDocument{
		ID:        identity.ID,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     email,
		Address:   form.Address,
		Phone:     form.Phone,
		BornOrAge: form.BornOrAge,
		CreatedAt: r.now().UTC(),
	}
	if err := r.profiles.CreateProfile(ctx, doc); err != nil {
		r.log.Warn().Err(err).Str("user_id", identity.ID).Msg("identity created without profile document")
		return identity, fmt.Errorf("%w: %w", ErrProfileWrite, err)
	}

	r.log.Info().Str("user_id", identity.ID).Msg("registered")
	return identity, nil
}

func trimForm(f models.RegistrationForm) models.RegistrationForm {
	f.Email = strings.TrimSpace(f.Email)
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Address = strings.TrimSpace(f.Address)
	f.BornOrAge = strings.TrimSpace(f.BornOrAge)
	f.Phone = strings.TrimSpace(f.Phone)
	return f
}
