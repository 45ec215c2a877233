package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rummage/profilesync/internal/models"
	"github.com/rummage/profilesync/internal/services"
)

type ProfileHandler struct {
	projection *services.ProfileProjection
	editor     *services.ProfileEditor
	log        zerolog.Logger
}

func NewProfileHandler(projection *services.ProfileProjection, editor *services.ProfileEditor, log zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{projection: projection, editor: editor, log: log}
}

// GetProfile renders the current projection, waiting briefly for a pending resolution.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	current, err := h.projection.Wait(ctx)
	resp := models.ProjectionResponse{Status: string(current.Status), View: current.View}
	if err != nil {
		writeJSON(w, http.StatusGatewayTimeout, models.NewSuccessResponse(resp))
		return
	}

	switch current.Status {
	case services.StatusSignedOut:
		writeJSON(w, http.StatusUnauthorized, models.NewSuccessResponse(resp))
	case services.StatusError:
		resp.Error = current.Err.Error()
		writeJSON(w, http.StatusServiceUnavailable, models.NewSuccessResponse(resp))
	default:
		writeJSON(w, http.StatusOK, models.NewSuccessResponse(resp))
	}
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileEdit
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	view, err := h.editor.Save(ctx, h.projection.Identity(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update profile")
		return
	}
	h.projection.Refresh()
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(view))
}
