package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	appMiddleware "github.com/rummage/profilesync/internal/middleware"
)

type RouterConfig struct {
	Profile        *ProfileHandler
	Session        *SessionHandler
	Photo          *PhotoHandler
	Secret         string
	AllowedOrigins []string
	// UploadDir is served under /uploads/ when the local object store is in use.
	UploadDir string
	Log       zerolog.Logger
}

// NewRouter builds the bridge HTTP API used by an external UI shell.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(appMiddleware.RequestLogger(cfg.Log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(appMiddleware.BridgeAuth(cfg.Secret))

		r.Post("/register", cfg.Session.Register)
		r.Post("/session/signin", cfg.Session.SignIn)
		r.Post("/session/signout", cfg.Session.SignOut)

		r.Get("/profile", cfg.Profile.GetProfile)
		r.Put("/profile", cfg.Profile.UpdateProfile)
		r.Post("/profile/photo", cfg.Photo.UpdatePhoto)
		r.Post("/profile/photo/retry", cfg.Photo.RetryPatch)
	})

	if cfg.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	return r
}
