//go:build cgo && linux

package ocr

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
)

// ReadRegion runs OCR over one rectangular region of a chart image and
// returns the recognized text. Tesseract wants a file path, so the crop
// goes through a temporary PNG that is removed afterwards.
func ReadRegion(img image.Image, region grid.Rect) (string, error) {
	cropped := imaging.Crop(img, image.Rect(
		int(region.Left), int(region.Top), int(region.Right), int(region.Bottom),
	))
	if cropped.Bounds().Dx() == 0 || cropped.Bounds().Dy() == 0 {
		return "", fmt.Errorf("ocr region has zero area: %+v", region)
	}

	tmpFile, err := os.CreateTemp("", "label-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmpFile, cropped); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to encode temp image: %w", err)
	}
	tmpFile.Close()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage("eng"); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImage(tmpPath); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}
