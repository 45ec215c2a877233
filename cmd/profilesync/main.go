// profilesync signs in against the configured identity provider, keeps the
// profile document in step with it and updates the profile photo.
//
// Usage:
//
//	profilesync [--env-file .env] <command> [flags]
//
// Commands: signin, signout, register, profile, edit, photo, serve.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/rummage/profilesync/internal/app"
	"github.com/rummage/profilesync/internal/config"
	"github.com/rummage/profilesync/internal/handlers"
	"github.com/rummage/profilesync/internal/logging"
	"github.com/rummage/profilesync/internal/media"
	appMiddleware "github.com/rummage/profilesync/internal/middleware"
	"github.com/rummage/profilesync/internal/models"
	"github.com/rummage/profilesync/internal/services"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type command struct {
	summary string
	run     func(ctx context.Context, a *app.App, cfg *config.Config, log zerolog.Logger, args []string) error
}

var commands = map[string]command{
	"signin":   {"sign in with email and password", runSignIn},
	"signout":  {"sign out and forget the stored session", runSignOut},
	"register": {"create an account and its profile", runRegister},
	"profile":  {"print the current profile view", runProfile},
	"edit":     {"edit profile fields (creates the profile if missing)", runEdit},
	"photo":    {"replace the profile photo", runPhoto},
	"serve":    {"serve the local bridge API for a UI shell", runServe},
}

func run(args []string) error {
	var envFile string
	global := pflag.NewFlagSet("profilesync", pflag.ContinueOnError)
	global.StringVar(&envFile, "env-file", ".env", "dotenv file to load before the environment")
	global.SetInterspersed(false)
	global.Usage = func() { printUsage(global) }
	if err := global.Parse(args); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(global)
		return fmt.Errorf("missing command")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		printUsage(global)
		return fmt.Errorf("unknown command %q", rest[0])
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log := logging.New(logging.Options{
		App:    "profilesync",
		Level:  logging.ParseLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd.run(ctx, a, cfg, log, rest[1:])
}

func printUsage(global *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: profilesync [global flags] <command> [flags]\n\nCommands:\n")
	for _, name := range []string{"signin", "signout", "register", "profile", "edit", "photo", "serve"} {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(os.Stderr, "\nGlobal flags:\n%s", global.FlagUsages())
}

func newFlagSet(name string) *pflag.FlagSet {
	return pflag.NewFlagSet("profilesync "+name, pflag.ContinueOnError)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// passwordFlag falls back to PROFILESYNC_PASSWORD so passwords stay out of shell history.
func passwordFlag(fs *pflag.FlagSet) *string {
	return fs.String("password", os.Getenv("PROFILESYNC_PASSWORD"), "account password (default $PROFILESYNC_PASSWORD)")
}

func runSignIn(ctx context.Context, a *app.App, _ *config.Config, _ zerolog.Logger, args []string) error {
	fs := newFlagSet("signin")
	email := fs.String("email", "", "account email")
	password := passwordFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := a.Actions.SignIn(ctx, *email, *password)
	if err != nil {
		return err
	}
	return printJSON(id)
}

func runSignOut(ctx context.Context, a *app.App, _ *config.Config, _ zerolog.Logger, args []string) error {
	if err := newFlagSet("signout").Parse(args); err != nil {
		return err
	}
	return a.Actions.SignOut(ctx)
}

func runRegister(ctx context.Context, a *app.App, _ *config.Config, log zerolog.Logger, args []string) error {
	var form models.RegistrationForm
	fs := newFlagSet("register")
	fs.StringVar(&form.Email, "email", "", "account email")
	fs.StringVar(&form.FirstName, "first-name", "", "first name")
	fs.StringVar(&form.LastName, "last-name", "", "last name")
	fs.StringVar(&form.Address, "address", "", "postal address")
	fs.StringVar(&form.BornOrAge, "born-or-age", "", "birth year or age")
	fs.StringVar(&form.Phone, "phone", "", "phone number (optional)")
	password := passwordFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	form.Password = *password

	id, err := a.Registrar.Register(ctx, form)
	if errors.Is(err, services.ErrProfileWrite) {
		log.Warn().Err(err).Msg("account created without profile; run `profilesync edit` to retry")
		return printJSON(id)
	}
	if err != nil {
		return err
	}
	a.Projection.Refresh()
	return printJSON(id)
}

func runProfile(ctx context.Context, a *app.App, _ *config.Config, _ zerolog.Logger, args []string) error {
	if err := newFlagSet("profile").Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	current, err := a.Projection.Wait(ctx)
	if err != nil {
		return err
	}
	switch current.Status {
	case services.StatusSignedOut:
		return services.ErrNotAuthenticated
	case services.StatusError:
		return current.Err
	}
	return printJSON(current.View)
}

func runEdit(ctx context.Context, a *app.App, _ *config.Config, _ zerolog.Logger, args []string) error {
	fs := newFlagSet("edit")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")
	address := fs.String("address", "", "postal address")
	phone := fs.String("phone", "", "phone number")
	bornOrAge := fs.String("born-or-age", "", "birth year or age")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Only flags given on the command line are edited.
	var edit models.ProfileEdit
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "first-name":
			edit.FirstName = firstName
		case "last-name":
			edit.LastName = lastName
		case "address":
			edit.Address = address
		case "phone":
			edit.Phone = phone
		case "born-or-age":
			edit.BornOrAge = bornOrAge
		}
	})

	view, err := a.Editor.Save(ctx, a.Projection.Identity(), edit)
	if err != nil {
		return err
	}
	return printJSON(view)
}

func runPhoto(ctx context.Context, a *app.App, _ *config.Config, log zerolog.Logger, args []string) error {
	fs := newFlagSet("photo")
	file := fs.String("file", "", "image file to use")
	camera := fs.Bool("camera", false, "capture with the configured camera command instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	source := models.SourceLibrary
	if *camera {
		source = models.SourceCamera
	}

	result, err := a.Projection.UpdatePhoto(media.WithPath(ctx, *file), source)
	var se *services.StageError
	if errors.As(err, &se) {
		log.Error().Err(se).Str("stage", string(se.Stage)).Msg(se.Message())
		return se
	}
	if err != nil {
		return err
	}
	if result.Cancelled {
		log.Info().Msg("photo update cancelled")
	}
	return printJSON(result)
}

func runServe(ctx context.Context, a *app.App, cfg *config.Config, log zerolog.Logger, args []string) error {
	fs := newFlagSet("serve")
	addr := fs.String("addr", cfg.Bridge.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret := cfg.Bridge.Secret
	if secret == "" {
		secret = uuid.New().String()
	}
	token, err := appMiddleware.NewBridgeToken(secret, "ui-shell", cfg.Bridge.TokenTTL)
	if err != nil {
		return err
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Profile:        handlers.NewProfileHandler(a.Projection, a.Editor, log),
		Session:        handlers.NewSessionHandler(a.Actions, a.Registrar, a.Projection, log),
		Photo:          handlers.NewPhotoHandler(a.Projection, cfg.Bridge.MaxUploadMB, log),
		Secret:         secret,
		AllowedOrigins: cfg.Bridge.AllowedOrigins,
		UploadDir:      a.UploadDir,
		Log:            log,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", *addr).Msg("bridge listening")
		fmt.Fprintf(os.Stdout, "BRIDGE_TOKEN=%s\n", token)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down bridge")
	return srv.Shutdown(shutdownCtx)
}
