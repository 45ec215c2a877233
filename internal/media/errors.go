package media

import "errors"

var (
	ErrCancelled         = errors.New("capture cancelled")
	ErrPermissionDenied  = errors.New("media permission denied")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrCorruptImage      = errors.New("image data could not be decoded")
	ErrUnsafeImage       = errors.New("image flagged by content screening")
)
