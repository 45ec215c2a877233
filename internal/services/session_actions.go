package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rummage/profilesync/internal/models"
)

// SessionActions are the explicit sign-in and sign-out requests. The resulting
// transitions reach consumers through SessionObserver.
type SessionActions struct {
	identity IdentityProvider
	log      zerolog.Logger
}

func NewSessionActions(identity IdentityProvider, log zerolog.Logger) *SessionActions {
	return &SessionActions{
		identity: identity,
		log:      log.With().Str("component", "session_actions").Logger(),
	}
}

func (a *SessionActions) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	req := models.SignInRequest{Email: strings.TrimSpace(email), Password: password}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	identity, err := a.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		a.log.Warn().Err(err).Msg("sign in rejected")
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	a.log.Info().Str("user_id", identity.ID).Msg("signed in")
	return identity, nil
}

func (a *SessionActions) SignOut(ctx context.Context) error {
	if err := a.identity.SignOut(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	a.log.Info().Msg("signed out")
	return nil
}
