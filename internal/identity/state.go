package identity

import (
	"sync"

	"github.com/rummage/profilesync/internal/models"
)

// stateHub fans authentication state out to observers. Notifications are
// delivered one at a time in publish order; a new observer first receives the
// current state. Callbacks must not call back into the provider synchronously.
type stateHub struct {
	notifyMu  sync.Mutex
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(*models.Identity)
	current   *models.Identity
}

func newStateHub(current *models.Identity) *stateHub {
	return &stateHub{
		listeners: make(map[int]func(*models.Identity)),
		current:   cloneIdentity(current),
	}
}

func (h *stateHub) publish(id *models.Identity) {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	h.current = cloneIdentity(id)
	listeners := make([]func(*models.Identity), 0, len(h.listeners))
	for _, cb := range h.listeners {
		listeners = append(listeners, cb)
	}
	h.mu.Unlock()

	for _, cb := range listeners {
		cb(cloneIdentity(id))
	}
}

// update replaces the current identity without notifying; used for profile patches,
// which are not authentication transitions.
func (h *stateHub) update(id *models.Identity) {
	h.mu.Lock()
	h.current = cloneIdentity(id)
	h.mu.Unlock()
}

func (h *stateHub) subscribe(cb func(*models.Identity)) func() {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = cb
	current := cloneIdentity(h.current)
	h.mu.Unlock()

	cb(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

func (h *stateHub) listenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func cloneIdentity(id *models.Identity) *models.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
