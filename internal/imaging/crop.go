package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
)

// ErrEmptyCrop is returned when a requested region has no area after
// clamping, e.g. a grid span that falls entirely outside the image.
var ErrEmptyCrop = errors.New("crop region has zero area")

// CropRect extracts the given pixel rectangle from an image. The rectangle
// is clamped to the image bounds first; a region that clamps down to zero
// area yields ErrEmptyCrop.
func CropRect(img image.Image, r grid.Rect) (image.Image, error) {
	bounds := img.Bounds()

	x1 := clampi(int(r.Left), bounds.Min.X, bounds.Max.X)
	y1 := clampi(int(r.Top), bounds.Min.Y, bounds.Max.Y)
	x2 := clampi(int(r.Right), bounds.Min.X, bounds.Max.X)
	y2 := clampi(int(r.Bottom), bounds.Min.Y, bounds.Max.Y)

	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("%w: (%d,%d)-(%d,%d)", ErrEmptyCrop, x1, y1, x2, y2)
	}

	return imaging.Crop(img, image.Rect(x1, y1, x2, y2)), nil
}

// UpscaleToWidth resizes an image so its width is at least minWidth,
// preserving aspect ratio. Small crops are upscaled before overlay rendering
// so micro-grid labels stay legible to the model; larger images pass through
// untouched.
func UpscaleToWidth(img image.Image, minWidth int) image.Image {
	w := img.Bounds().Dx()
	if w >= minWidth || w == 0 {
		return img
	}
	return imaging.Resize(img, minWidth, 0, imaging.Lanczos)
}

// EncodePNG encodes an image to PNG bytes for model payloads and debug
// artifacts.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func clampi(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
