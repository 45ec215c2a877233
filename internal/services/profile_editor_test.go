package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rummage/profilesync/internal/models"
)

func TestProfileEditor_CreatesMissingDocument(t *testing.T) {
	store := newMemoryProfileStore()
	e := NewProfileEditor(store, zerolog.Nop())
	identity := &models.Identity{ID: "u1", Email: "ada@example.com", PhotoURI: "https://photos/u1"}

	view, err := e.Save(context.Background(), identity, models.ProfileEdit{
		FirstName: strPtr(" Ada "),
		LastName:  strPtr("Lovelace"),
		Address:   strPtr("London"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ViewFromDocument, view.Source)
	assert.Equal(t, "Ada", view.FirstName)

	doc := store.doc("u1")
	assert.Equal(t, "ada@example.com", doc.Email)
	assert.Equal(t, "https://photos/u1", doc.ProfilePhotoURI)
	assert.Equal(t, "London", doc.Address)
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestProfileEditor_CreateRequiresNames(t *testing.T) {
	store := newMemoryProfileStore()
	_, err := NewProfileEditor(store, zerolog.Nop()).Save(context.Background(), &models.Identity{ID: "u1"},
		models.ProfileEdit{Address: strPtr("London")})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"first_name", "last_name"}, verr.Fields)
	assert.Empty(t, store.docs)
}

func TestProfileEditor_PatchesExistingDocument(t *testing.T) {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := newMemoryProfileStore()
	store.docs["u1"] = models.ProfileDocument{FirstName: "Ada", LastName: "Byron", Email: "ada@example.com", CreatedAt: created}

	view, err := NewProfileEditor(store, zerolog.Nop()).Save(context.Background(), &models.Identity{ID: "u1"},
		models.ProfileEdit{LastName: strPtr("Lovelace")})
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", view.LastName)
	assert.Equal(t, "u1", view.ID)

	doc := store.doc("u1")
	assert.Equal(t, "Ada", doc.FirstName)
	assert.Equal(t, "Lovelace", doc.LastName)
	assert.True(t, created.Equal(doc.CreatedAt))
}

func TestProfileEditor_RejectsBlankName(t *testing.T) {
	store := newMemoryProfileStore()
	store.docs["u1"] = models.ProfileDocument{FirstName: "Ada", LastName: "Lovelace"}

	_, err := NewProfileEditor(store, zerolog.Nop()).Save(context.Background(), &models.Identity{ID: "u1"},
		models.ProfileEdit{FirstName: strPtr("   ")})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Ada", store.doc("u1").FirstName)
}

func TestProfileEditor_Errors(t *testing.T) {
	e := NewProfileEditor(newMemoryProfileStore(), zerolog.Nop())
	_, err := e.Save(context.Background(), nil, models.ProfileEdit{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	store := newMemoryProfileStore()
	store.getErr = errors.New("unavailable")
	_, err = NewProfileEditor(store, zerolog.Nop()).Save(context.Background(), &models.Identity{ID: "u1"}, models.ProfileEdit{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	store = newMemoryProfileStore()
	store.docs["u1"] = models.ProfileDocument{FirstName: "Ada", LastName: "Lovelace"}
	store.patchErr = errors.New("quota")
	_, err = NewProfileEditor(store, zerolog.Nop()).Save(context.Background(), &models.Identity{ID: "u1"},
		models.ProfileEdit{Phone: strPtr("555")})
	assert.ErrorIs(t, err, ErrProfileWrite)
}
