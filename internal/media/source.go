package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/rummage/profilesync/internal/models"
)

// Chooser asks the user for an image file. An empty path with a nil error means
// the user dismissed the dialog.
type Chooser func(ctx context.Context) (string, error)

type pathKey struct{}

// WithPath attaches the file the caller already picked to ctx.
func WithPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, pathKey{}, path)
}

// ContextChooser picks the path attached with WithPath. The CLI and the bridge
// receive the path with the request, so no dialog is shown.
func ContextChooser(ctx context.Context) (string, error) {
	path, _ := ctx.Value(pathKey{}).(string)
	return path, nil
}

// FileSource is a desktop stand-in for the device picker and camera.
// Library picks read a file chosen by Chooser; camera captures run CameraCommand,
// which must write a single image to stdout.
type FileSource struct {
	Chooser       Chooser
	CameraCommand string
	log           zerolog.Logger
}

func NewFileSource(chooser Chooser, cameraCommand string, log zerolog.Logger) *FileSource {
	return &FileSource{
		Chooser:       chooser,
		CameraCommand: cameraCommand,
		log:           log.With().Str("component", "media_source").Logger(),
	}
}

func (s *FileSource) PickFromLibrary(ctx context.Context) (*models.ImageRef, error) {
	if s.Chooser == nil {
		return nil, ErrCancelled
	}
	path, err := s.Chooser(ctx)
	if err != nil {
		return nil, mapCaptureError(ctx, err)
	}
	if path == "" {
		return nil, ErrCancelled
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	s.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("picked image")
	return newImageRef(data), nil
}

// CaptureFromCamera reports ErrPermissionDenied when no camera command is configured,
// the desktop equivalent of a missing camera grant.
func (s *FileSource) CaptureFromCamera(ctx context.Context) (*models.ImageRef, error) {
	fields := strings.Fields(s.CameraCommand)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no camera command configured", ErrPermissionDenied)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		s.log.Warn().Err(err).Str("stderr", strings.TrimSpace(stderr.String())).Msg("camera command failed")
		return nil, fmt.Errorf("camera command: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, ErrCancelled
	}

	return newImageRef(stdout.Bytes()), nil
}

func newImageRef(data []byte) *models.ImageRef {
	ref := &models.ImageRef{
		Data:        data,
		ContentType: mimetype.Detect(data).String(),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		ref.Width = cfg.Width
		ref.Height = cfg.Height
	}
	return ref
}

func mapCaptureError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return ErrCancelled
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
