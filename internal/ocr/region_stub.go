//go:build !cgo || !linux

package ocr

import (
	"image"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
)

// ReadRegion reports OCR as unavailable on builds without Tesseract.
func ReadRegion(_ image.Image, _ grid.Rect) (string, error) {
	return "", ErrUnavailable
}
