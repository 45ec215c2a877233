package identity

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rummage/profilesync/internal/models"
)

func newTestLocalProvider(t *testing.T, dir string) *LocalProvider {
	t.Helper()
	p, err := NewLocalProvider(dir, "test-secret", time.Hour, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestLocalProvider_CreateIdentitySignsIn(t *testing.T) {
	ctx := context.Background()
	p := newTestLocalProvider(t, t.TempDir())

	var events []*models.Identity
	unsubscribe := p.ObserveState(func(id *models.Identity) { events = append(events, id) })
	defer unsubscribe()

	id, err := p.CreateIdentity(ctx, "Ada@Example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, id.ID)
	assert.Equal(t, "Ada@Example.com", id.Email)

	require.Len(t, events, 2)
	assert.Nil(t, events[0])
	assert.Equal(t, id.ID, events[1].ID)
	assert.Equal(t, id.ID, p.CurrentIdentity().ID)
	assert.NotEmpty(t, p.CurrentToken())
}

func TestLocalProvider_CreateIdentityRejects(t *testing.T) {
	ctx := context.Background()
	p := newTestLocalProvider(t, t.TempDir())

	_, err := p.CreateIdentity(ctx, "ada@example.com", "12345")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = p.CreateIdentity(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	_, err = p.CreateIdentity(ctx, " ADA@example.com", "secret2")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestLocalProvider_SignIn(t *testing.T) {
	ctx := context.Background()
	p := newTestLocalProvider(t, t.TempDir())

	created, err := p.CreateIdentity(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))
	assert.Nil(t, p.CurrentIdentity())

	_, err = p.SignIn(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	id, err := p.SignIn(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, id.ID)
}

func TestLocalProvider_SessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := newTestLocalProvider(t, dir)
	created, err := first.CreateIdentity(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	second := newTestLocalProvider(t, dir)
	var initial *models.Identity
	second.ObserveState(func(id *models.Identity) { initial = id })()

	require.NotNil(t, initial)
	assert.Equal(t, created.ID, initial.ID)
}

func TestLocalProvider_ExpiredSessionIsDropped(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewLocalProvider(dir, "test-secret", -time.Minute, zerolog.Nop())
	require.NoError(t, err)
	_, err = first.CreateIdentity(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	second := newTestLocalProvider(t, dir)
	assert.Nil(t, second.CurrentIdentity())
}

func TestLocalProvider_WrongSecretDropsSession(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := newTestLocalProvider(t, dir)
	_, err := first.CreateIdentity(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	second, err := NewLocalProvider(dir, "other-secret", time.Hour, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, second.CurrentIdentity())
}

func TestLocalProvider_PatchIdentity(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := newTestLocalProvider(t, dir)

	created, err := p.CreateIdentity(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	notified := 0
	unsubscribe := p.ObserveState(func(*models.Identity) { notified++ })
	defer unsubscribe()

	uri := "http://127.0.0.1:8080/uploads/profile_photos/" + created.ID
	require.NoError(t, p.PatchIdentity(ctx, created.ID, models.IdentityPatch{PhotoURI: &uri}))
	assert.Equal(t, uri, p.CurrentIdentity().PhotoURI)
	assert.Equal(t, 1, notified, "a patch is not an auth transition")

	err = p.PatchIdentity(ctx, "missing", models.IdentityPatch{PhotoURI: &uri})
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, p.SignOut(ctx))
	id, err := p.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, uri, id.PhotoURI)
}
