package detection

import (
	"image"
	"image/color"
	"testing"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
)

func testMeta() grid.Metadata {
	return grid.Metadata{
		Padding:     10,
		CellWidth:   100,
		CellHeight:  100,
		ImageWidth:  820,
		ImageHeight: 620,
		Rows:        6,
		Cols:        8,
	}
}

// chartWithLine builds a dark synthetic chart with a bright full-width
// horizontal line at the given pixel row.
func chartWithLine(width, height, lineY int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	dark := color.RGBA{15, 15, 20, 255}
	bright := color.RGBA{240, 240, 240, 255}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if y == lineY {
				img.Set(x, y, bright)
			} else {
				img.Set(x, y, dark)
			}
		}
	}
	return img
}

func TestDetectHorizontalLines(t *testing.T) {
	meta := testMeta()

	// Row 3 spans pixel y 310..410; draw the line in the middle of it.
	img := chartWithLine(meta.ImageWidth, meta.ImageHeight, 360)

	result := DetectHorizontalLines(img, []RowHint{{ElementID: "hline_1", Row: 3}}, meta)

	if result.Count != 1 {
		t.Fatalf("Count: got %d, want 1", result.Count)
	}

	line := result.Lines[0]
	if line.ElementID != "hline_1" {
		t.Errorf("ElementID: got %q", line.ElementID)
	}
	// The edge sits within a pixel of the drawn line.
	if line.YPx < 359 || line.YPx > 361 {
		t.Errorf("YPx: got %v, want ~360", line.YPx)
	}
	if want := line.YPx / float64(meta.ImageHeight); line.YNorm != want {
		t.Errorf("YNorm: got %v, want %v", line.YNorm, want)
	}
	if line.Coverage < 0.9 {
		t.Errorf("full-width line should have high coverage, got %v", line.Coverage)
	}
}

func TestDetectHorizontalLines_NoLineInBand(t *testing.T) {
	meta := testMeta()

	// Line lives in row 3's band; ask about row 1 instead.
	img := chartWithLine(meta.ImageWidth, meta.ImageHeight, 360)

	result := DetectHorizontalLines(img, []RowHint{{ElementID: "hline_2", Row: 1}}, meta)

	if result.Count != 0 {
		t.Errorf("expected no detections in an empty band, got %d", result.Count)
	}
}

func TestDetectHorizontalLines_ShortRunRejected(t *testing.T) {
	meta := testMeta()

	// A 100px stub covers only ~12% of the 800px band, below threshold.
	img := image.NewRGBA(image.Rect(0, 0, meta.ImageWidth, meta.ImageHeight))
	dark := color.RGBA{15, 15, 20, 255}
	for y := 0; y < meta.ImageHeight; y++ {
		for x := 0; x < meta.ImageWidth; x++ {
			img.Set(x, y, dark)
		}
	}
	for x := 100; x < 200; x++ {
		img.Set(x, 360, color.RGBA{240, 240, 240, 255})
	}

	result := DetectHorizontalLines(img, []RowHint{{ElementID: "hline_3", Row: 3}}, meta)

	if result.Count != 0 {
		t.Errorf("short run should be rejected, got %d detections", result.Count)
	}
}

func TestDetectHorizontalLines_MultipleHints(t *testing.T) {
	meta := testMeta()

	img := image.NewRGBA(image.Rect(0, 0, meta.ImageWidth, meta.ImageHeight))
	dark := color.RGBA{15, 15, 20, 255}
	bright := color.RGBA{240, 240, 240, 255}
	for y := 0; y < meta.ImageHeight; y++ {
		for x := 0; x < meta.ImageWidth; x++ {
			img.Set(x, y, dark)
		}
	}
	// Lines in row 5 (pixel band 110..210) and row 2 (410..510).
	for x := 0; x < meta.ImageWidth; x++ {
		img.Set(x, 150, bright)
		img.Set(x, 460, bright)
	}

	result := DetectHorizontalLines(img, []RowHint{
		{ElementID: "upper", Row: 5},
		{ElementID: "lower", Row: 2},
	}, meta)

	if result.Count != 2 {
		t.Fatalf("Count: got %d, want 2", result.Count)
	}
	if result.Lines[0].ElementID != "upper" || result.Lines[1].ElementID != "lower" {
		t.Errorf("detections out of order: %+v", result.Lines)
	}
	if result.Lines[0].YPx > 211 || result.Lines[1].YPx < 409 {
		t.Errorf("lines landed outside their bands: %+v", result.Lines)
	}
}

func TestDetectHorizontalLines_OutOfRangeRow(t *testing.T) {
	meta := testMeta()
	img := chartWithLine(meta.ImageWidth, meta.ImageHeight, 360)

	// Row 40 clamps to an empty band; must not panic or detect.
	result := DetectHorizontalLines(img, []RowHint{{ElementID: "weird", Row: 40}}, meta)
	if result.Count != 0 {
		t.Errorf("expected nothing for out-of-range row, got %d", result.Count)
	}
}
