package services

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/rummage/profilesync/internal/models"
)

// SessionObserver turns raw provider state callbacks into SessionEvents, one per
// transition.
type SessionObserver struct {
	provider IdentityProvider
	log      zerolog.Logger
}

func NewSessionObserver(provider IdentityProvider, log zerolog.Logger) *SessionObserver {
	return &SessionObserver{
		provider: provider,
		log:      log.With().Str("component", "session_observer").Logger(),
	}
}

// Observe installs onEvent and returns the func that removes it. The first event
// reflects the state at subscription time. Events are delivered one at a time in
// provider order; after unsubscribe returns no new delivery starts. unsubscribe is
// safe to call more than once and from inside onEvent.
func (o *SessionObserver) Observe(onEvent func(models.SessionEvent)) (unsubscribe func()) {
	sub := &subscription{onEvent: onEvent, log: o.log}
	sub.attach(o.provider.ObserveState(sub.deliver))
	return sub.unsubscribe
}

type subscription struct {
	onEvent func(models.SessionEvent)
	log     zerolog.Logger

	deliverMu sync.Mutex
	last      *models.SessionEvent
	closed    atomic.Bool

	mu       sync.Mutex
	release  func()
	released bool
	once     sync.Once
}

func (s *subscription) deliver(id *models.Identity) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if s.closed.Load() {
		return
	}

	ev := models.SessionEvent{Kind: models.SignedOut}
	if id != nil {
		ev = models.SessionEvent{Kind: models.SignedIn, Identity: id}
	}
	if sameSessionState(s.last, &ev) {
		return
	}
	s.last = &ev

	s.log.Debug().Str("kind", string(ev.Kind)).Msg("session transition")
	s.onEvent(ev)
}

// attach stores the provider's release func, calling it at once if the
// subscription was closed while the provider was still registering it.
func (s *subscription) attach(release func()) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		release()
		return
	}
	s.release = release
	s.mu.Unlock()
}

func (s *subscription) unsubscribe() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.mu.Lock()
		release := s.release
		s.released = true
		s.mu.Unlock()
		if release != nil {
			release()
		}
	})
}

// sameSessionState treats a switch to a different account as a new transition.
func sameSessionState(prev, next *models.SessionEvent) bool {
	if prev == nil || prev.Kind != next.Kind {
		return false
	}
	if next.Kind == models.SignedOut {
		return true
	}
	return prev.Identity.ID == next.Identity.ID
}
