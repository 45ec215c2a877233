package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rummage/profilesync/internal/models"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrCancelled        = errors.New("cancelled")
	ErrAuth             = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrStoreUnavailable = errors.New("profile store unavailable")
	ErrIdentityCreation = errors.New("identity creation failed")
	ErrProfileWrite     = errors.New("profile document write failed")
	ErrCapture          = errors.New("image capture failed")
	ErrTransform        = errors.New("image transform failed")
	ErrImageRejected    = errors.New("image rejected: violates community guidelines")
	ErrUpload           = errors.New("photo upload failed")
	ErrIdentityPatch    = errors.New("identity photo update failed")
	ErrDocumentPatch    = errors.New("profile photo update failed")
	ErrTaskInProgress   = errors.New("a photo update is already in progress")
	ErrTaskFinished     = errors.New("upload task already finished")
	ErrNothingToRetry   = errors.New("no failed photo update to retry")
)

// ValidationError names the fields that failed local validation. It never
// originates from a backend.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StageError is the terminal failure of an UploadTask. Kind is one of the pipeline
// sentinels; the flags record which remote writes had already happened.
type StageError struct {
	Stage           models.UploadState
	Kind            error
	Cause           error
	ObjectStored    bool
	IdentityPatched bool
	DocumentPatched bool
	PhotoURI        string
}

func (e *StageError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Cause)
}

func (e *StageError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Partial reports whether the photo reached storage and at least one record.
func (e *StageError) Partial() bool {
	return e.ObjectStored && (e.IdentityPatched || e.DocumentPatched)
}

// Message is the short text shown to the user for this failure.
func (e *StageError) Message() string {
	switch {
	case errors.Is(e.Kind, ErrIdentityPatch) && e.DocumentPatched:
		return "Photo saved to your profile, but your account picture was not updated. Retry the update."
	case errors.Is(e.Kind, ErrIdentityPatch):
		return "Photo uploaded, but neither your account nor your profile was updated. Retry the update."
	case errors.Is(e.Kind, ErrDocumentPatch):
		return "Photo saved to your account, but your profile was not updated. Retry the update."
	case errors.Is(e.Kind, ErrUpload) && e.ObjectStored:
		return "Photo uploaded, but its link could not be fetched. Try again."
	case errors.Is(e.Kind, ErrUpload):
		return "Photo upload failed. Check your connection and try again."
	case errors.Is(e.Kind, ErrImageRejected):
		return "This photo can't be used. Please choose another one."
	case errors.Is(e.Kind, ErrTransform):
		return "This image could not be processed. Please choose another one."
	case errors.Is(e.Kind, ErrCapture):
		return "The image could not be loaded. Please try again."
	}
	return "Photo update failed."
}
