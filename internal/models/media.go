package models

// ImageRef is an image held in memory between pipeline stages.
type ImageRef struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

type CaptureSource string

const (
	SourceLibrary CaptureSource = "library"
	SourceCamera  CaptureSource = "camera"
)

type UploadState string

const (
	StateIdle         UploadState = "idle"
	StateCapturing    UploadState = "capturing"
	StateTransforming UploadState = "transforming"
	StateUploading    UploadState = "uploading"
	StatePatching     UploadState = "patching"
	StateCommitted    UploadState = "committed"
	StateFailed       UploadState = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s UploadState) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}

// Active reports whether a task in this state holds the single-active-task slot.
func (s UploadState) Active() bool {
	switch s {
	case StateCapturing, StateTransforming, StateUploading, StatePatching:
		return true
	}
	return false
}

// UploadResult describes how a photo-update attempt ended.
type UploadResult struct {
	State     UploadState `json:"state"`
	PhotoURI  string      `json:"photo_uri,omitempty"`
	Cancelled bool        `json:"cancelled,omitempty"`
}
