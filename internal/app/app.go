package app

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/rummage/profilesync/internal/config"
	"github.com/rummage/profilesync/internal/identity"
	"github.com/rummage/profilesync/internal/media"
	"github.com/rummage/profilesync/internal/services"
	"github.com/rummage/profilesync/internal/storage"
)

// App holds the collaborators and core components selected by config.
type App struct {
	Identity services.IdentityProvider
	Profiles services.ProfileStore
	Objects  services.ObjectStore

	Observer   *services.SessionObserver
	Resolver   *services.ProfileResolver
	Registrar  *services.ProfileRegistrar
	Actions    *services.SessionActions
	Editor     *services.ProfileEditor
	Pipeline   *services.MediaUploadPipeline
	Projection *services.ProfileProjection

	// UploadDir is set when photos are stored on the local filesystem.
	UploadDir string

	log     zerolog.Logger
	closers []func() error
}

// New wires every backend named in cfg. The projection is started; call Close when done.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{log: log}

	var fbApp *firebase.App
	if cfg.UsesFirebaseApp() {
		var err error
		fbApp, err = newFirebaseApp(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
	}

	if err := a.initIdentity(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initProfiles(ctx, cfg, fbApp); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initObjects(ctx, cfg, fbApp); err != nil {
		a.Close()
		return nil, err
	}

	var opts []services.PipelineOption
	opts = append(opts, services.WithStageTimeout(cfg.Media.StageTimeout))
	if cfg.Media.Screening {
		screener, err := media.NewSafeSearchScreener(ctx, credentialOptions(cfg.Firebase)...)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, services.WithScreener(screener))
	}

	source := media.NewFileSource(media.ContextChooser, cfg.Media.CameraCommand, log)

	a.Observer = services.NewSessionObserver(a.Identity, log)
	a.Resolver = services.NewProfileResolver(a.Profiles, log)
	a.Registrar = services.NewProfileRegistrar(a.Identity, a.Profiles, log)
	a.Actions = services.NewSessionActions(a.Identity, log)
	a.Editor = services.NewProfileEditor(a.Profiles, log)
	a.Pipeline = services.NewMediaUploadPipeline(a.Identity, a.Profiles, a.Objects, source, media.NewTransformer(), log, opts...)
	a.Projection = services.NewProfileProjection(a.Observer, a.Resolver, a.Pipeline, log)
	a.Projection.Start()

	log.Info().
		Str("identity", cfg.Backends.Identity).
		Str("documents", cfg.Backends.Documents).
		Str("objects", cfg.Backends.Objects).
		Bool("screening", cfg.Media.Screening).
		Msg("backends ready")
	return a, nil
}

// Close stops the projection and releases backend clients.
func (a *App) Close() error {
	if a.Projection != nil {
		a.Projection.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) initIdentity(ctx context.Context, cfg *config.Config) error {
	switch cfg.Backends.Identity {
	case config.BackendFirebase:
		p, err := identity.NewToolkitProvider(ctx, identity.ToolkitConfig{
			APIKey:   cfg.Firebase.APIKey,
			DataDir:  cfg.App.DataDir,
			TokenURL: cfg.Firebase.TokenURL,
		}, a.log)
		if err != nil {
			return err
		}
		a.Identity = p
	default:
		p, err := identity.NewLocalProvider(cfg.App.DataDir, cfg.Local.TokenSecret, cfg.Local.TokenTTL, a.log)
		if err != nil {
			return err
		}
		a.Identity = p
	}
	return nil
}

func (a *App) initProfiles(ctx context.Context, cfg *config.Config, fbApp *firebase.App) error {
	switch cfg.Backends.Documents {
	case config.BackendFirestore:
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return fmt.Errorf("firestore client: %w", err)
		}
		store := storage.NewFirestoreProfileStore(client, cfg.Firebase.Collection)
		a.closers = append(a.closers, store.Close)
		a.Profiles = store
	case config.BackendMongo:
		store, err := storage.NewMongoProfileStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { return store.Close(context.Background()) })
		a.Profiles = store
	default:
		store, err := storage.NewFileProfileStore(cfg.App.DataDir)
		if err != nil {
			return err
		}
		a.Profiles = store
	}
	return nil
}

func (a *App) initObjects(ctx context.Context, cfg *config.Config, fbApp *firebase.App) error {
	switch cfg.Backends.Objects {
	case config.BackendFirebase:
		client, err := fbApp.Storage(ctx)
		if err != nil {
			return fmt.Errorf("firebase storage client: %w", err)
		}
		bucket, err := client.Bucket(cfg.Firebase.StorageBucket)
		if err != nil {
			return fmt.Errorf("firebase storage bucket: %w", err)
		}
		a.Objects = storage.NewFirebaseObjectStore(bucket, cfg.Firebase.StorageBucket)
	case config.BackendS3:
		store, err := storage.NewS3ObjectStore(ctx, storage.S3Options{
			Endpoint:      cfg.S3.Endpoint,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			Bucket:        cfg.S3.Bucket,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
		if err != nil {
			return err
		}
		a.Objects = store
	default:
		store, err := storage.NewLocalObjectStore(cfg.Local.UploadDir, cfg.Local.PublicBaseURL)
		if err != nil {
			return err
		}
		a.UploadDir = store.Dir()
		a.Objects = store
	}
	return nil
}

func newFirebaseApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	fbApp, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	}, credentialOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return fbApp, nil
}

// credentialOptions prefers inline JSON, then a file, then Application Default Credentials.
func credentialOptions(cfg config.FirebaseConfig) []option.ClientOption {
	switch {
	case cfg.CredentialsJSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))}
	case cfg.CredentialsFile != "":
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
	}
	return nil
}
