package pipeline

import (
	"errors"
	"image"
	"strings"

	"go.uber.org/zap"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/ocr"
)

// verifyLabels runs OCR over each mapped text label's cell and checks the
// recognized text against the expected description. OCR being unavailable
// (builds without tesseract) marks the check unavailable rather than failed,
// and no label problem ever fails the run.
func verifyLabels(img image.Image, meta grid.Metadata, elements []CoarseElement, log *zap.Logger) []LabelCheck {
	var checks []LabelCheck

	for _, el := range elements {
		if el.Kind != KindTextLabel {
			continue
		}
		check := LabelCheck{ElementID: el.ElementID, Cell: el.Cell, Expected: el.Description}

		cell, err := grid.ParseCell(el.Cell)
		if err != nil {
			log.Warn("text label has unusable cell", zap.String("element_id", el.ElementID), zap.Error(err))
			checks = append(checks, check)
			continue
		}

		text, err := ocr.ReadRegion(img, grid.CellRect(cell, meta))
		if errors.Is(err, ocr.ErrUnavailable) {
			checks = append(checks, check)
			continue
		}
		if err != nil {
			log.Warn("label OCR failed", zap.String("element_id", el.ElementID), zap.Error(err))
			check.Available = true
			checks = append(checks, check)
			continue
		}

		check.Available = true
		check.Text = strings.TrimSpace(text)
		check.Verified = labelMatches(check.Expected, check.Text)
		checks = append(checks, check)
	}

	return checks
}

// labelMatches reports whether the OCR text plausibly shows the expected
// label. Chart text is small and noisy, so a case-insensitive containment
// either way counts.
func labelMatches(expected, got string) bool {
	e := strings.ToLower(strings.TrimSpace(expected))
	g := strings.ToLower(strings.TrimSpace(got))
	if e == "" || g == "" {
		return false
	}
	return strings.Contains(g, e) || strings.Contains(e, g)
}
