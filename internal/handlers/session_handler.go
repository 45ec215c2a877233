package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rummage/profilesync/internal/models"
	"github.com/rummage/profilesync/internal/services"
)

type SessionHandler struct {
	actions    *services.SessionActions
	registrar  *services.ProfileRegistrar
	projection *services.ProfileProjection
	log        zerolog.Logger
}

func NewSessionHandler(actions *services.SessionActions, registrar *services.ProfileRegistrar, projection *services.ProfileProjection, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		actions:    actions,
		registrar:  registrar,
		projection: projection,
		log:        log,
	}
}

func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	id, err := h.actions.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to sign in")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(id))
}

func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.SignOut(r.Context()); err != nil {
		writeServiceError(w, h.log, err, "Failed to sign out")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Signed out"}))
}

// Register creates the account. When only the profile document failed the account
// exists and is signed in, so the identity is returned alongside the error.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegistrationForm
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	id, err := h.registrar.Register(ctx, req)
	if errors.Is(err, services.ErrProfileWrite) {
		h.projection.Refresh()
		writeJSON(w, http.StatusCreated, models.APIResponse{
			Success: false,
			Data:    id,
			Error:   "Account created, but your profile could not be saved. Edit your profile to retry.",
		})
		return
	}
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create account")
		return
	}

	h.projection.Refresh()
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(id))
}
