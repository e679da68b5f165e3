package imaging_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"calibra/internal/domain"
	"calibra/internal/imaging"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 200, A: 255})
		}
	}
	return img
}

func encodeWith(t *testing.T, fn func(*bytes.Buffer, image.Image) error, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, fn(&buf, img))
	return buf.Bytes()
}

func TestNormalize_Formats(t *testing.T) {
	src := testImage(8, 6)

	tests := []struct {
		name   string
		data   []byte
		format string
	}{
		{"png", encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }, src), "png"},
		{"jpeg", encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return jpeg.Encode(b, i, nil) }, src), "jpeg"},
		{"gif", encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return gif.Encode(b, i, nil) }, src), "gif"},
		{"bmp", encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return bmp.Encode(b, i) }, src), "bmp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := imaging.Normalize(tt.data, imaging.Limits{})

			require.NoError(t, err)
			assert.Equal(t, tt.format, img.OriginalFormat)
			assert.Equal(t, "image/png", img.ContentType)
			assert.Equal(t, 8, img.Width)
			assert.Equal(t, 6, img.Height)

			_, format, err := image.Decode(bytes.NewReader(img.Data))
			require.NoError(t, err)
			assert.Equal(t, "png", format)
		})
	}
}

func TestNormalize_DropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.Set(0, 0, color.NRGBA{R: 255, G: 10, B: 20, A: 0})
	src.Set(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	data := encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }, src)

	img, err := imaging.Normalize(data, imaging.Limits{})
	require.NoError(t, err)

	out, err := png.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			_, _, _, a := out.At(x, y).RGBA()
			assert.Equal(t, uint32(0xffff), a, "pixel %d,%d is not opaque", x, y)
		}
	}
	px := color.NRGBAModel.Convert(out.At(1, 1)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, px)
}

func TestNormalize_Errors(t *testing.T) {
	valid := encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }, testImage(4, 4))

	_, err := imaging.Normalize(nil, imaging.Limits{})
	assert.True(t, errors.Is(err, domain.ErrEmptyImage))

	_, err = imaging.Normalize([]byte("definitely not an image"), imaging.Limits{})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedImage))

	_, err = imaging.Normalize(valid, imaging.Limits{MaxBytes: int64(len(valid) - 1)})
	assert.True(t, errors.Is(err, domain.ErrImageTooLarge))

	_, err = imaging.Normalize(valid, imaging.Limits{MaxBytes: int64(len(valid))})
	assert.NoError(t, err)
}

// withDeclaredSize rewrites the IHDR chunk of a PNG so it claims w x h
// pixels while the compressed data stays tiny.
func withDeclaredSize(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte{}, data...)
	// 8-byte signature, 4-byte length, then "IHDR" and its 13-byte payload.
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestNormalize_PixelLimit(t *testing.T) {
	valid := encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }, testImage(4, 4))

	_, err := imaging.Normalize(valid, imaging.Limits{MaxPixels: 15})
	assert.True(t, errors.Is(err, domain.ErrImageTooLarge))

	img, err := imaging.Normalize(valid, imaging.Limits{MaxPixels: 16})
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width)
}

func TestNormalize_RejectsHugeDeclaredDimensions(t *testing.T) {
	small := encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }, testImage(4, 4))
	huge := withDeclaredSize(t, small, 12000, 12000)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(huge))
	require.NoError(t, err)
	require.Equal(t, 12000, cfg.Width)

	_, err = imaging.Normalize(huge, imaging.Limits{MaxBytes: 20 << 20})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrImageTooLarge))
	assert.Contains(t, err.Error(), "12000x12000")
}
