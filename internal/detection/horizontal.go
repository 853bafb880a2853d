// Package detection provides pure computer-vision analysis of chart images.
// No model calls happen here; horizontal trendlines are localized directly
// from pixels, which is cheaper and more precise than asking a vision model
// for something axis-aligned.
package detection

import (
	"image"
	"math"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
)

// RowHint is one coarse-mapped horizontal line: the element to refine and
// the grid row the mapping phase placed it in.
type RowHint struct {
	ElementID string
	Row       int
}

// LineDetection is the refined position of one horizontal line.
type LineDetection struct {
	ElementID string  `json:"element_id"`
	YPx       float64 `json:"y_px"`
	YNorm     float64 `json:"y_norm"`
	Coverage  float64 `json:"coverage"` // fraction of the band width covered by the run
}

// HorizontalResult contains all refined horizontal lines for one chart.
type HorizontalResult struct {
	Lines []LineDetection `json:"lines"`
	Count int             `json:"count"`
}

// minCoverage is the fraction of the row band's width a horizontal edge run
// must cover to count as a drawn line rather than candle noise.
const minCoverage = 0.30

// DetectHorizontalLines refines coarse horizontal-line mappings to exact
// pixel rows.
//
// For each hint the full-width band of its grid row is scanned; the pixel
// row with the longest horizontal gradient run wins, provided the run covers
// enough of the band. Hints whose band contains no such run are skipped, not
// errors: the element simply stays at coarse precision.
func DetectHorizontalLines(img image.Image, hints []RowHint, meta grid.Metadata) *HorizontalResult {
	result := &HorizontalResult{Lines: make([]LineDetection, 0, len(hints))}

	for _, hint := range hints {
		band := grid.SpanRect(
			grid.Cell{Col: 0, Row: hint.Row},
			grid.Cell{Col: meta.Cols - 1, Row: hint.Row},
			meta,
		)
		if band.Empty() {
			continue
		}

		y, coverage, found := strongestRow(img, band)
		if !found {
			continue
		}

		result.Lines = append(result.Lines, LineDetection{
			ElementID: hint.ElementID,
			YPx:       float64(y),
			YNorm:     float64(y) / float64(meta.ImageHeight),
			Coverage:  coverage,
		})
	}

	result.Count = len(result.Lines)
	return result
}

// strongestRow finds the pixel row inside the band with the longest
// contiguous run of horizontal-edge pixels.
func strongestRow(img image.Image, band grid.Rect) (int, float64, bool) {
	bounds := img.Bounds()
	x1 := maxInt(int(band.Left), bounds.Min.X)
	x2 := minInt(int(band.Right), bounds.Max.X)
	y1 := maxInt(int(band.Top), bounds.Min.Y+1)
	y2 := minInt(int(band.Bottom), bounds.Max.Y-1)
	if x1 >= x2 || y1 >= y2 {
		return 0, 0, false
	}

	bandWidth := float64(x2 - x1)
	bestY, bestRun := 0, 0

	for y := y1; y < y2; y++ {
		run, longest := 0, 0
		for x := x1; x < x2; x++ {
			if isHorizontalEdge(img, x, y) {
				run++
				if run > longest {
					longest = run
				}
			} else {
				run = 0
			}
		}
		if longest > bestRun {
			bestY, bestRun = y, longest
		}
	}

	coverage := float64(bestRun) / bandWidth
	if coverage < minCoverage {
		return 0, 0, false
	}
	return bestY, coverage, true
}

// isHorizontalEdge reports whether the pixel differs sharply from its
// vertical neighbors, the signature of a drawn horizontal line crossing
// chart background.
func isHorizontalEdge(img image.Image, x, y int) bool {
	const threshold = 30.0

	c := float64(grayValue(img, x, y))
	above := float64(grayValue(img, x, y-1))
	below := float64(grayValue(img, x, y+1))

	return math.Abs(c-above) > threshold || math.Abs(c-below) > threshold
}

// grayValue converts a pixel to grayscale using ITU-R BT.601 luminance
// weights: Y = 0.299*R + 0.587*G + 0.114*B.
func grayValue(img image.Image, x, y int) uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
