// Package imaging validates uploaded screenshots and re-encodes them as
// opaque PNG before they are sent to a vision provider.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"calibra/internal/domain"
)

// Image is a normalized screenshot.
type Image struct {
	Data           []byte
	ContentType    string
	OriginalFormat string
	Width          int
	Height         int
}

// DefaultMaxPixels caps decoded width*height when no limit is configured.
const DefaultMaxPixels = 40_000_000

// Limits bounds the encoded size and the decoded dimensions of an image.
// MaxBytes <= 0 disables the size check; MaxPixels <= 0 uses DefaultMaxPixels.
type Limits struct {
	MaxBytes  int64
	MaxPixels int64
}

// Normalize decodes data as any supported raster format, drops the alpha
// channel and re-encodes as PNG. Declared dimensions are checked against
// the pixel limit before the pixel data is decoded.
func Normalize(data []byte, limits Limits) (*Image, error) {
	if len(data) == 0 {
		return nil, domain.ErrEmptyImage
	}
	if limits.MaxBytes > 0 && int64(len(data)) > limits.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrImageTooLarge, len(data), limits.MaxBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedImage, err)
	}
	maxPixels := limits.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", domain.ErrUnsupportedImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds limit of %d pixels",
			domain.ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedImage, err)
	}

	rgb := toOpaque(src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgb); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}

	b := rgb.Bounds()
	return &Image{
		Data:           buf.Bytes(),
		ContentType:    domain.ImageContentType,
		OriginalFormat: format,
		Width:          b.Dx(),
		Height:         b.Dy(),
	}, nil
}

// toOpaque copies src into a non-premultiplied buffer and forces alpha to
// 255, leaving colour channels as they were.
func toOpaque(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			c.A = 0xff
			dst.SetNRGBA(x, y, c)
		}
	}
	return dst
}
