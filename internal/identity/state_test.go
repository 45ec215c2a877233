package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rummage/profilesync/internal/models"
)

func TestStateHub_SubscribeDeliversCurrentState(t *testing.T) {
	hub := newStateHub(&models.Identity{ID: "u1"})

	var got []*models.Identity
	unsubscribe := hub.subscribe(func(id *models.Identity) { got = append(got, id) })
	defer unsubscribe()

	if assert.Len(t, got, 1) {
		assert.Equal(t, "u1", got[0].ID)
	}
}

func TestStateHub_PublishInOrder(t *testing.T) {
	hub := newStateHub(nil)

	var got []string
	unsubscribe := hub.subscribe(func(id *models.Identity) {
		if id == nil {
			got = append(got, "out")
			return
		}
		got = append(got, id.ID)
	})
	defer unsubscribe()

	hub.publish(&models.Identity{ID: "a"})
	hub.publish(nil)
	hub.publish(&models.Identity{ID: "b"})

	assert.Equal(t, []string{"out", "a", "out", "b"}, got)
}

func TestStateHub_UpdateDoesNotNotify(t *testing.T) {
	hub := newStateHub(&models.Identity{ID: "u1"})
	calls := 0
	unsubscribe := hub.subscribe(func(*models.Identity) { calls++ })
	defer unsubscribe()

	hub.update(&models.Identity{ID: "u1", PhotoURI: "https://x"})
	assert.Equal(t, 1, calls)

	var seen *models.Identity
	hub.subscribe(func(id *models.Identity) { seen = id })()
	assert.Equal(t, "https://x", seen.PhotoURI)
}

func TestStateHub_UnsubscribeIsIdempotent(t *testing.T) {
	hub := newStateHub(nil)
	calls := 0
	unsubscribe := hub.subscribe(func(*models.Identity) { calls++ })

	unsubscribe()
	unsubscribe()
	hub.publish(&models.Identity{ID: "a"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, hub.listenerCount())
}

func TestStateHub_ListenersGetCopies(t *testing.T) {
	hub := newStateHub(nil)
	unsubscribe := hub.subscribe(func(id *models.Identity) {
		if id != nil {
			id.Email = "mutated"
		}
	})
	defer unsubscribe()

	hub.publish(&models.Identity{ID: "a", Email: "a@example.com"})

	var seen *models.Identity
	hub.subscribe(func(id *models.Identity) { seen = id })()
	assert.Equal(t, "a@example.com", seen.Email)
}
