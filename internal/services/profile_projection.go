package services

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rummage/profilesync/internal/models"
)

type ProjectionStatus string

const (
	StatusSignedOut ProjectionStatus = "signed_out"
	StatusLoading   ProjectionStatus = "loading"
	StatusReady     ProjectionStatus = "ready"
	StatusError     ProjectionStatus = "error"
)

// Projection is a snapshot of what the UI should show.
type Projection struct {
	Status ProjectionStatus
	View   *models.ProfileView
	Err    error
	// Upload is the state of the current or most recent photo task, empty if none ran.
	Upload models.UploadState
}

// ProfileProjection keeps the current ProfileView in step with session events and
// committed photo updates, and owns the single active UploadTask.
type ProfileProjection struct {
	observer *SessionObserver
	resolver *ProfileResolver
	pipeline *MediaUploadPipeline
	log      zerolog.Logger

	mu         sync.Mutex
	identity   *models.Identity
	current    Projection
	changed    chan struct{}
	generation uint64
	cancel     context.CancelFunc
	uploading  bool
	// lastCommitted dedupes commit notifications; only one task runs at a time.
	lastCommitted *UploadTask
	// retryable is the latest task that failed after its object was stored.
	retryable   *UploadTask
	unsubscribe func()
	wg          sync.WaitGroup
}

func NewProfileProjection(observer *SessionObserver, resolver *ProfileResolver, pipeline *MediaUploadPipeline, log zerolog.Logger) *ProfileProjection {
	return &ProfileProjection{
		observer: observer,
		resolver: resolver,
		pipeline: pipeline,
		log:      log.With().Str("component", "profile_projection").Logger(),
		current:  Projection{Status: StatusLoading},
		changed:  make(chan struct{}),
	}
}

// Start subscribes to session events. Close must be called once the projection
// is no longer needed.
func (p *ProfileProjection) Start() {
	unsubscribe := p.observer.Observe(p.handleEvent)
	p.mu.Lock()
	p.unsubscribe = unsubscribe
	p.mu.Unlock()
}

// Close stops event delivery, abandons any pending resolution and waits for it to exit.
func (p *ProfileProjection) Close() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	p.wg.Wait()
}

func (p *ProfileProjection) Current() Projection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Identity returns the identity of the latest SignedIn event, or nil when signed out.
func (p *ProfileProjection) Identity() *models.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.identity == nil {
		return nil
	}
	id := *p.identity
	return &id
}

// Wait blocks until the projection is no longer loading.
func (p *ProfileProjection) Wait(ctx context.Context) (Projection, error) {
	for {
		p.mu.Lock()
		current, changed := p.current, p.changed
		p.mu.Unlock()
		if current.Status != StatusLoading {
			return current, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return current, ctx.Err()
		}
	}
}

// Refresh re-resolves the view for the current identity, for example after a
// registration or an explicit edit.
func (p *ProfileProjection) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.identity == nil {
		return
	}
	p.resolveLocked()
}

// UpdatePhoto runs one photo-update task for the signed-in identity. Only one task
// runs at a time; a second call while one is active fails with ErrTaskInProgress.
func (p *ProfileProjection) UpdatePhoto(ctx context.Context, source models.CaptureSource) (models.UploadResult, error) {
	return p.runTask(ctx, func(id models.Identity) (*UploadTask, error) {
		return p.pipeline.NewTask(id, source), nil
	})
}

// RetryPhotoPatch re-runs only the patch writes of the latest photo update that
// failed after its photo was stored. It shares the single-task guard with UpdatePhoto.
func (p *ProfileProjection) RetryPhotoPatch(ctx context.Context) (models.UploadResult, error) {
	return p.runTask(ctx, func(id models.Identity) (*UploadTask, error) {
		failed := p.retryable
		if failed == nil || failed.identity.ID != id.ID {
			return nil, ErrNothingToRetry
		}
		task := p.pipeline.RetryPatching(failed)
		if task == nil {
			return nil, ErrNothingToRetry
		}
		return task, nil
	})
}

// runTask claims the upload slot, builds a task with newTask (called under p.mu)
// and runs it to a terminal state.
func (p *ProfileProjection) runTask(ctx context.Context, newTask func(models.Identity) (*UploadTask, error)) (models.UploadResult, error) {
	p.mu.Lock()
	if p.uploading {
		p.mu.Unlock()
		return models.UploadResult{}, ErrTaskInProgress
	}
	if p.identity == nil {
		p.mu.Unlock()
		return models.UploadResult{}, ErrNotAuthenticated
	}
	task, err := newTask(*p.identity)
	if err != nil {
		p.mu.Unlock()
		return models.UploadResult{}, err
	}
	p.uploading = true
	p.mu.Unlock()

	task.OnTransition = p.setUploadState
	task.OnCommitted = p.handleCommitted
	result, err := task.Run(ctx)

	p.mu.Lock()
	p.uploading = false
	var se *StageError
	switch {
	case errors.As(err, &se) && se.Stage == models.StatePatching && se.ObjectStored:
		p.retryable = task
	case result.Cancelled:
		// A cancelled pick leaves the previous failure retryable.
	default:
		p.retryable = nil
	}
	p.mu.Unlock()
	return result, err
}

func (p *ProfileProjection) handleEvent(ev models.SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case models.SignedOut:
		p.identity = nil
		p.retryable = nil
		p.generation++
		if p.cancel != nil {
			p.cancel()
			p.cancel = nil
		}
		p.setLocked(Projection{Status: StatusSignedOut, Upload: p.current.Upload})
	case models.SignedIn:
		id := *ev.Identity
		p.identity = &id
		p.resolveLocked()
	}
}

// handleCommitted re-resolves once per committed task, so a duplicate notification
// does not trigger a second read. Only the latest task is remembered.
func (p *ProfileProjection) handleCommitted(task *UploadTask, photoURI string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastCommitted == task {
		p.log.Debug().Msg("duplicate commit notification ignored")
		return
	}
	p.lastCommitted = task

	if p.identity == nil || p.identity.ID != task.identity.ID {
		return
	}
	p.identity.PhotoURI = photoURI
	p.resolveLocked()
}

func (p *ProfileProjection) setUploadState(state models.UploadState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.current
	next.Upload = state
	p.setLocked(next)
}

// resolveLocked starts a resolution for p.identity. A result is applied only if no
// newer event arrived in the meantime.
func (p *ProfileProjection) resolveLocked() {
	p.generation++
	gen := p.generation
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	identity := *p.identity

	p.setLocked(Projection{Status: StatusLoading, Upload: p.current.Upload})

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		view, err := p.resolver.Resolve(ctx, &identity)

		p.mu.Lock()
		defer p.mu.Unlock()
		if gen != p.generation {
			p.log.Debug().Str("user_id", identity.ID).Msg("discarding stale resolution")
			return
		}
		p.cancel = nil
		if err != nil {
			p.log.Warn().Err(err).Str("user_id", identity.ID).Msg("profile resolution failed")
			p.setLocked(Projection{Status: StatusError, Err: err, Upload: p.current.Upload})
			return
		}
		p.setLocked(Projection{Status: StatusReady, View: view, Upload: p.current.Upload})
	}()
}

func (p *ProfileProjection) setLocked(next Projection) {
	p.current = next
	close(p.changed)
	p.changed = make(chan struct{})
}
