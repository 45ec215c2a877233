package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rummage/profilesync/internal/media"
	"github.com/rummage/profilesync/internal/models"
	"github.com/rummage/profilesync/internal/services"
)

type PhotoHandler struct {
	projection *services.ProfileProjection
	maxSizeMB  int64
	log        zerolog.Logger
}

func NewPhotoHandler(projection *services.ProfileProjection, maxSizeMB int64, log zerolog.Logger) *PhotoHandler {
	return &PhotoHandler{projection: projection, maxSizeMB: maxSizeMB, log: log}
}

type photoRequest struct {
	Source models.CaptureSource `json:"source"`
	Path   string               `json:"path"`
}

// UpdatePhoto runs one photo-update task. The image comes either as a multipart
// "image" field or as a JSON {source, path} body naming a local file or the camera.
func (h *PhotoHandler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	var req photoRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		path, err := h.receiveUpload(w, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
			return
		}
		defer os.Remove(path)
		req = photoRequest{Source: models.SourceLibrary, Path: path}
	} else if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	if req.Source == "" {
		req.Source = models.SourceLibrary
	}
	if req.Source != models.SourceLibrary && req.Source != models.SourceCamera {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("source must be library or camera"))
		return
	}

	ctx := media.WithPath(r.Context(), req.Path)
	result, err := h.projection.UpdatePhoto(ctx, req.Source)
	h.writeResult(w, result, err)
}

// RetryPatch re-applies the stored photo of the latest partially failed update
// to the account and the profile document.
func (h *PhotoHandler) RetryPatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.projection.RetryPhotoPatch(r.Context())
	h.writeResult(w, result, err)
}

func (h *PhotoHandler) writeResult(w http.ResponseWriter, result models.UploadResult, err error) {
	var se *services.StageError
	switch {
	case errors.As(err, &se):
		status := http.StatusBadGateway
		if se.Stage == models.StateTransforming || se.Stage == models.StateCapturing {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, models.NewStageErrorResponse(se.Message(), se.Stage, result))
	case err != nil:
		writeServiceError(w, h.log, err, "Failed to update photo")
	case result.Cancelled:
		writeJSON(w, http.StatusOK, models.APIResponse{Success: false, Error: services.ErrCancelled.Error(), Data: result})
	default:
		writeJSON(w, http.StatusOK, models.NewSuccessResponse(result))
	}
}

func (h *PhotoHandler) receiveUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSizeMB*1024*1024)
	if err := r.ParseMultipartForm(h.maxSizeMB * 1024 * 1024); err != nil {
		return "", errors.New("File too large or invalid form data")
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return "", errors.New("No image file provided")
	}
	defer file.Close()

	dst, err := os.CreateTemp("", "profilesync-upload-*")
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(dst.Name())
		return "", errors.New("Failed to read uploaded image")
	}
	return dst.Name(), nil
}
