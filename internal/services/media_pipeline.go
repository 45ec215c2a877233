package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rummage/profilesync/internal/media"
	"github.com/rummage/profilesync/internal/models"
)

// Photo policy. Every upload is a PhotoSize square JPEG at PhotoQuality.
const (
	PhotoSize           = 300
	PhotoQuality        = 70
	PhotoKeyPrefix      = "profile_photos/"
	DefaultStageTimeout = 30 * time.Second
)

// PhotoKey is the canonical object key for an identity's photo. Re-uploads overwrite it.
func PhotoKey(identityID string) string {
	return PhotoKeyPrefix + identityID
}

// MediaUploadPipeline creates UploadTasks bound to its collaborators.
type MediaUploadPipeline struct {
	identity     IdentityProvider
	profiles     ProfileStore
	objects      ObjectStore
	source       MediaSource
	transformer  ImageTransformer
	screener     Screener
	stageTimeout time.Duration
	log          zerolog.Logger
}

type PipelineOption func(*MediaUploadPipeline)

// WithScreener adds a content check to the Transforming stage.
func WithScreener(s Screener) PipelineOption {
	return func(p *MediaUploadPipeline) { p.screener = s }
}

// WithStageTimeout bounds each stage after Capturing.
func WithStageTimeout(d time.Duration) PipelineOption {
	return func(p *MediaUploadPipeline) {
		if d > 0 {
			p.stageTimeout = d
		}
	}
}

func NewMediaUploadPipeline(
	identity IdentityProvider,
	profiles ProfileStore,
	objects ObjectStore,
	source MediaSource,
	transformer ImageTransformer,
	log zerolog.Logger,
	opts ...PipelineOption,
) *MediaUploadPipeline {
	p := &MediaUploadPipeline{
		identity:     identity,
		profiles:     profiles,
		objects:      objects,
		source:       source,
		transformer:  transformer,
		stageTimeout: DefaultStageTimeout,
		log:          log.With().Str("component", "media_pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewTask creates an Idle task for one photo-update attempt.
func (p *MediaUploadPipeline) NewTask(identity models.Identity, source models.CaptureSource) *UploadTask {
	return &UploadTask{
		pipeline: p,
		identity: identity,
		source:   source,
		state:    models.StateIdle,
	}
}

// RetryPatching creates a task that reuses an already stored photo and starts at
// Patching. It returns nil unless failed ended in Patching with the object stored.
func (p *MediaUploadPipeline) RetryPatching(failed *UploadTask) *UploadTask {
	var se *StageError
	if !errors.As(failed.Err(), &se) || se.Stage != models.StatePatching || !se.ObjectStored {
		return nil
	}
	t := p.NewTask(failed.identity, failed.source)
	t.resumeURI = se.PhotoURI
	t.OnCommitted = failed.OnCommitted
	t.OnTransition = failed.OnTransition
	return t
}

// UploadTask is one photo-update attempt:
// Idle -> Capturing -> Transforming -> Uploading -> Patching -> Committed, with
// Failed reachable from every active state. Committed and Failed are final.
type UploadTask struct {
	pipeline  *MediaUploadPipeline
	identity  models.Identity
	source    models.CaptureSource
	resumeURI string

	// OnTransition observes every state change. OnCommitted receives the new photo
	// reference once the task commits. Both run on the goroutine calling Run.
	OnTransition func(models.UploadState)
	OnCommitted  func(task *UploadTask, photoURI string)

	mu       sync.Mutex
	state    models.UploadState
	err      error
	photoURI string
}

func (t *UploadTask) State() models.UploadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the terminal *StageError of a Failed task.
func (t *UploadTask) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *UploadTask) PhotoURI() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.photoURI
}

// Run drives the task to Committed or Failed. Only Capturing honors ctx
// cancellation: a dismissed or cancelled capture returns the task to Idle with a
// Cancelled result and no error, and a permission denial returns it to Idle with
// ErrPermissionDenied. Later stages run to completion under their own timeouts.
func (t *UploadTask) Run(ctx context.Context) (models.UploadResult, error) {
	first := models.StateCapturing
	if t.resumeURI != "" {
		first = models.StatePatching
	}

	t.mu.Lock()
	if state := t.state; state.Terminal() || state.Active() {
		t.mu.Unlock()
		if state.Terminal() {
			return models.UploadResult{State: state}, ErrTaskFinished
		}
		return models.UploadResult{State: state}, ErrTaskInProgress
	}
	t.state = first
	t.mu.Unlock()
	if t.OnTransition != nil {
		t.OnTransition(first)
	}

	log := t.pipeline.log.With().Str("user_id", t.identity.ID).Str("source", string(t.source)).Logger()

	if t.resumeURI != "" {
		return t.patch(context.WithoutCancel(ctx), log, t.resumeURI)
	}

	raw, err := t.capture(ctx)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrCancelled) || ctx.Err() != nil:
			log.Debug().Msg("capture cancelled")
			t.transition(models.StateIdle)
			return models.UploadResult{State: models.StateIdle, Cancelled: true}, nil
		case errors.Is(err, media.ErrPermissionDenied):
			log.Info().Err(err).Msg("capture permission denied")
			t.transition(models.StateIdle)
			return models.UploadResult{State: models.StateIdle}, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return t.fail(log, &StageError{Stage: models.StateCapturing, Kind: ErrCapture, Cause: err})
	}

	// Past this point the task is not cancellable.
	bg := context.WithoutCancel(ctx)

	t.transition(models.StateTransforming)
	photo, se := t.transform(bg, raw)
	if se != nil {
		return t.fail(log, se)
	}

	t.transition(models.StateUploading)
	key := PhotoKey(t.identity.ID)
	if err := t.withTimeout(bg, func(ctx context.Context) error {
		return t.pipeline.objects.Put(ctx, key, photo.Data, photo.ContentType)
	}); err != nil {
		return t.fail(log, &StageError{Stage: models.StateUploading, Kind: ErrUpload, Cause: err})
	}

	var uri string
	if err := t.withTimeout(bg, func(ctx context.Context) error {
		var err error
		uri, err = t.pipeline.objects.RetrievalURI(ctx, key)
		return err
	}); err != nil {
		return t.fail(log, &StageError{Stage: models.StateUploading, Kind: ErrUpload, Cause: err, ObjectStored: true})
	}
	log.Debug().Str("key", key).Int("bytes", len(photo.Data)).Msg("photo stored")

	return t.patch(bg, log, uri)
}

func (t *UploadTask) capture(ctx context.Context) (*models.ImageRef, error) {
	if t.source == models.SourceCamera {
		return t.pipeline.source.CaptureFromCamera(ctx)
	}
	return t.pipeline.source.PickFromLibrary(ctx)
}

func (t *UploadTask) transform(ctx context.Context, raw *models.ImageRef) (*models.ImageRef, *StageError) {
	var photo *models.ImageRef
	err := t.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		photo, err = t.pipeline.transformer.Transform(ctx, raw, PhotoSize, PhotoQuality)
		return err
	})
	if err != nil {
		return nil, &StageError{Stage: models.StateTransforming, Kind: ErrTransform, Cause: err}
	}

	if t.pipeline.screener == nil {
		return photo, nil
	}
	err = t.withTimeout(ctx, func(ctx context.Context) error {
		return t.pipeline.screener.Screen(ctx, photo)
	})
	switch {
	case errors.Is(err, media.ErrUnsafeImage):
		return nil, &StageError{Stage: models.StateTransforming, Kind: ErrImageRejected, Cause: err}
	case err != nil:
		return nil, &StageError{Stage: models.StateTransforming, Kind: ErrTransform, Cause: fmt.Errorf("screening: %w", err)}
	}
	return photo, nil
}

// patch writes uri to the identity record and then to the document. The document
// write is attempted even when the identity write fails.
func (t *UploadTask) patch(ctx context.Context, log zerolog.Logger, uri string) (models.UploadResult, error) {
	if t.State() != models.StatePatching {
		t.transition(models.StatePatching)
	}

	identityErr := t.withTimeout(ctx, func(ctx context.Context) error {
		return t.pipeline.identity.PatchIdentity(ctx, t.identity.ID, models.IdentityPatch{PhotoURI: &uri})
	})
	documentErr := t.withTimeout(ctx, func(ctx context.Context) error {
		return t.pipeline.profiles.PatchProfile(ctx, t.identity.ID, models.ProfilePatch{ProfilePhotoURI: &uri})
	})

	switch {
	case identityErr != nil:
		return t.fail(log, &StageError{
			Stage:           models.StatePatching,
			Kind:            ErrIdentityPatch,
			Cause:           errors.Join(identityErr, documentErr),
			ObjectStored:    true,
			DocumentPatched: documentErr == nil,
			PhotoURI:        uri,
		})
	case documentErr != nil:
		return t.fail(log, &StageError{
			Stage:           models.StatePatching,
			Kind:            ErrDocumentPatch,
			Cause:           documentErr,
			ObjectStored:    true,
			IdentityPatched: true,
			PhotoURI:        uri,
		})
	}

	t.mu.Lock()
	t.photoURI = uri
	t.mu.Unlock()
	t.transition(models.StateCommitted)
	log.Info().Str("photo_uri", uri).Msg("photo committed")

	if t.OnCommitted != nil {
		t.OnCommitted(t, uri)
	}
	return models.UploadResult{State: models.StateCommitted, PhotoURI: uri}, nil
}

func (t *UploadTask) fail(log zerolog.Logger, se *StageError) (models.UploadResult, error) {
	t.mu.Lock()
	t.err = se
	t.mu.Unlock()
	t.transition(models.StateFailed)

	log.Warn().Err(se).Str("stage", string(se.Stage)).Bool("object_stored", se.ObjectStored).Msg("photo update failed")
	return models.UploadResult{State: models.StateFailed, PhotoURI: se.PhotoURI}, se
}

func (t *UploadTask) transition(state models.UploadState) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
	if t.OnTransition != nil {
		t.OnTransition(state)
	}
}

func (t *UploadTask) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.pipeline.stageTimeout)
	defer cancel()
	return fn(ctx)
}
