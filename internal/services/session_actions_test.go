package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rummage/profilesync/internal/models"
)

func TestSessionActions_SignInValidation(t *testing.T) {
	identity := &mockIdentity{}
	a := NewSessionActions(identity, zerolog.Nop())

	_, err := a.SignIn(context.Background(), " ", "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"email_address", "password"}, verr.Fields)
	assert.Empty(t, identity.Calls)
}

func TestSessionActions_SignIn(t *testing.T) {
	identity := &mockIdentity{}
	identity.On("SignIn", mock.Anything, "ada@example.com", "secret1").
		Return(&models.Identity{ID: "u1"}, nil).Once()
	identity.On("SignIn", mock.Anything, "ada@example.com", "wrong").
		Return(nil, errors.New("invalid email or password")).Once()
	a := NewSessionActions(identity, zerolog.Nop())

	id, err := a.SignIn(context.Background(), "ada@example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u1", id.ID)

	_, err = a.SignIn(context.Background(), "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrAuth)
	identity.AssertExpectations(t)
}

func TestSessionActions_SignOut(t *testing.T) {
	identity := &mockIdentity{}
	identity.On("SignOut", mock.Anything).Return(nil).Once()
	identity.On("SignOut", mock.Anything).Return(errors.New("disk full")).Once()
	a := NewSessionActions(identity, zerolog.Nop())

	assert.NoError(t, a.SignOut(context.Background()))
	assert.ErrorIs(t, a.SignOut(context.Background()), ErrAuth)
}
