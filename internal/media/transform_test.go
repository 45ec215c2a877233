package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rummage/profilesync/internal/models"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		for y := 0; y < h; y += 7 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTransformer_LargeLandscape(t *testing.T) {
	src := &models.ImageRef{Data: encodePNG(t, 4000, 3000), ContentType: "image/png", Width: 4000, Height: 3000}

	out, err := NewTransformer().Transform(context.Background(), src, 300, 70)
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", out.ContentType)
	assert.Equal(t, 300, out.Width)
	assert.Equal(t, 300, out.Height)
	assert.NotEqual(t, src.Data, out.Data)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 300, cfg.Height)
}

func TestTransformer_QualityIsApplied(t *testing.T) {
	src := &models.ImageRef{Data: encodePNG(t, 640, 480)}
	tr := NewTransformer()

	low, err := tr.Transform(context.Background(), src, 300, 70)
	require.NoError(t, err)
	high, err := tr.Transform(context.Background(), src, 300, 100)
	require.NoError(t, err)

	assert.Less(t, len(low.Data), len(high.Data))

	_, err = jpeg.Decode(bytes.NewReader(low.Data))
	require.NoError(t, err)
}

func TestTransformer_SmallPortraitIsScaledUp(t *testing.T) {
	src := &models.ImageRef{Data: encodePNG(t, 120, 200)}

	out, err := NewTransformer().Transform(context.Background(), src, 300, 70)
	require.NoError(t, err)
	assert.Equal(t, 300, out.Width)
	assert.Equal(t, 300, out.Height)
}

func TestTransformer_RejectsBadInput(t *testing.T) {
	tr := NewTransformer()
	ctx := context.Background()

	_, err := tr.Transform(ctx, &models.ImageRef{Data: []byte("%PDF-1.4 not an image")}, 300, 70)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	truncated := encodePNG(t, 50, 50)[:40]
	_, err = tr.Transform(ctx, &models.ImageRef{Data: truncated}, 300, 70)
	assert.ErrorIs(t, err, ErrCorruptImage)

	_, err = tr.Transform(ctx, nil, 300, 70)
	assert.ErrorIs(t, err, ErrCorruptImage)
}

// forgePNGSize rewrites the IHDR dimensions of an encoded PNG and fixes up its CRC.
func forgePNGSize(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestTransformer_RejectsOversizedDimensions(t *testing.T) {
	forged := forgePNGSize(t, encodePNG(t, 1, 1), 60000, 60000)

	cfg, err := png.DecodeConfig(bytes.NewReader(forged))
	require.NoError(t, err)
	require.Equal(t, 60000, cfg.Width)

	_, err = NewTransformer().Transform(context.Background(), &models.ImageRef{Data: forged}, 300, 70)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

// withOrientation inserts an EXIF APP1 segment carrying the given orientation
// right after the JPEG SOI marker.
func withOrientation(t *testing.T, data []byte, orientation uint16) []byte {
	t.Helper()
	require.Equal(t, []byte{0xFF, 0xD8}, data[:2])

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	binary.Write(&tiff, binary.BigEndian, uint16(42))
	binary.Write(&tiff, binary.BigEndian, uint32(8))
	binary.Write(&tiff, binary.BigEndian, uint16(1))      // entries
	binary.Write(&tiff, binary.BigEndian, uint16(0x0112)) // Orientation
	binary.Write(&tiff, binary.BigEndian, uint16(3))      // SHORT
	binary.Write(&tiff, binary.BigEndian, uint32(1))
	binary.Write(&tiff, binary.BigEndian, orientation)
	binary.Write(&tiff, binary.BigEndian, uint16(0))
	binary.Write(&tiff, binary.BigEndian, uint32(0)) // next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var out bytes.Buffer
	out.Write(data[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(data[2:])
	return out.Bytes()
}

func TestTransformer_AppliesExifOrientation(t *testing.T) {
	// 40x20 landscape: top half red, bottom half blue.
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		c := color.RGBA{R: 255, A: 255}
		if y >= 10 {
			c = color.RGBA{B: 255, A: 255}
		}
		for x := 0; x < 40; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))

	// Orientation 6: display rotated 90 degrees clockwise, so red ends up on the right.
	src := &models.ImageRef{Data: withOrientation(t, buf.Bytes(), 6)}
	out, err := NewTransformer().Transform(context.Background(), src, 10, 90)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)

	r, _, b, _ := decoded.At(1, 5).RGBA()
	assert.Greater(t, b, r, "left edge should be blue")
	r, _, b, _ = decoded.At(8, 5).RGBA()
	assert.Greater(t, r, b, "right edge should be red")
}

func TestCenterSquare(t *testing.T) {
	assert.Equal(t, image.Rect(500, 0, 3500, 3000), centerSquare(image.Rect(0, 0, 4000, 3000)))
	assert.Equal(t, image.Rect(0, 40, 120, 160), centerSquare(image.Rect(0, 0, 120, 200)))
}
