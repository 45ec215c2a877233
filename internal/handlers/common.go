package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rummage/profilesync/internal/identity"
	"github.com/rummage/profilesync/internal/models"
	"github.com/rummage/profilesync/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

// writeServiceError maps service sentinels to status codes. Anything unrecognised
// is logged and reported with fallback.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, fallback string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verr.Fields))
	case errors.Is(err, services.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Not signed in"))
	case errors.Is(err, services.ErrAuth):
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid email or password"))
	case errors.Is(err, identity.ErrEmailExists):
		writeJSON(w, http.StatusConflict, models.NewErrorResponse("Email already registered"))
	case errors.Is(err, identity.ErrWeakPassword):
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Password must be at least 6 characters"))
	case errors.Is(err, services.ErrIdentityCreation):
		log.Warn().Err(err).Msg("identity creation failed")
		writeJSON(w, http.StatusBadGateway, models.NewErrorResponse("Failed to create account"))
	case errors.Is(err, services.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Permission denied"))
	case errors.Is(err, services.ErrTaskInProgress):
		writeJSON(w, http.StatusConflict, models.NewErrorResponse("A photo update is already in progress"))
	case errors.Is(err, services.ErrNothingToRetry):
		writeJSON(w, http.StatusConflict, models.NewErrorResponse("There is no failed photo update to retry"))
	case errors.Is(err, services.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, models.NewErrorResponse("Profile store unavailable"))
	default:
		log.Error().Err(err).Msg(fallback)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse(fallback))
	}
}
