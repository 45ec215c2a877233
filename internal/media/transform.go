package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/rummage/profilesync/internal/models"
)

var supportedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// MaxPixels bounds the decoded size of a source image (50 MP).
const MaxPixels = 50_000_000

// Transformer crops an image to a centered square, scales it to size x size and
// re-encodes it as JPEG.
type Transformer struct{}

func NewTransformer() *Transformer { return &Transformer{} }

func (t *Transformer) Transform(ctx context.Context, ref *models.ImageRef, size, quality int) (*models.ImageRef, error) {
	if ref == nil || len(ref.Data) == 0 {
		return nil, ErrCorruptImage
	}
	if size <= 0 || quality < 1 || quality > 100 {
		return nil, fmt.Errorf("invalid transform policy size=%d quality=%d", size, quality)
	}

	mtype := mimetype.Detect(ref.Data)
	if !mimetype.EqualsAny(mtype.String(), supportedTypes...) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(ref.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedFormat, cfg.Width, cfg.Height, MaxPixels)
	}

	// Camera JPEGs carry their rotation in EXIF; apply it before cropping.
	src, err := imaging.Decode(bytes.NewReader(ref.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, centerSquare(src.Bounds()), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &models.ImageRef{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Width:       size,
		Height:      size,
	}, nil
}

func centerSquare(b image.Rectangle) image.Rectangle {
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x, y, x+side, y+side)
}
