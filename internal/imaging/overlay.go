package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/anthonynsimon/bild/clone"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
)

// Micro-grid resolution is fixed regardless of the crop's aspect ratio so
// the model always answers in the same A1..H6 coordinate frame.
const (
	MicroGridCols = 8
	MicroGridRows = 6
)

// RulerLineCount is the number of horizontal guides rendered inside a single
// cell when localizing a zone boundary.
const RulerLineCount = 9

var (
	gridLineColor  = color.RGBA{255, 215, 0, 255} // gold, visible on dark charts
	microLineColor = color.RGBA{0, 255, 255, 255} // cyan for the fine frame
	rulerLineColor = color.RGBA{255, 0, 255, 255}
	labelFg        = color.RGBA{255, 255, 255, 255}
	labelBg        = color.RGBA{0, 0, 0, 180}
)

// ReferenceGrid draws the coarse labeled grid over a chart image and returns
// the overlaid copy together with the grid metadata used by every later
// phase. Rows are numbered bottom-up: row 1 labels sit at the bottom edge.
func ReferenceGrid(img image.Image, rows, cols, padding int) (*image.RGBA, grid.Metadata, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if rows < 1 || cols < 1 {
		return nil, grid.Metadata{}, fmt.Errorf("grid needs positive dimensions, got %dx%d", cols, rows)
	}
	if width <= 2*padding || height <= 2*padding {
		return nil, grid.Metadata{}, fmt.Errorf("image %dx%d too small for padding %d", width, height, padding)
	}

	meta := grid.Metadata{
		Padding:     padding,
		CellWidth:   float64(width-2*padding) / float64(cols),
		CellHeight:  float64(height-2*padding) / float64(rows),
		ImageWidth:  width,
		ImageHeight: height,
		Rows:        rows,
		Cols:        cols,
	}

	out := clone.AsRGBA(img)
	area := grid.Rect{
		Left:   float64(padding),
		Top:    float64(padding),
		Right:  float64(width - padding),
		Bottom: float64(height - padding),
	}
	drawCellGrid(out, area, cols, rows, gridLineColor, true)

	return out, meta, nil
}

// MicroGrid draws the fixed 8x6 labeled micro-grid over the given region of
// an image. Passing the full bounds annotates a crop; passing a sub-region
// annotates the matching area of a full-image copy so the model sees the
// same labeling at two zoom levels. The image is modified in place.
func MicroGrid(img *image.RGBA, region grid.Rect) error {
	if region.Empty() {
		return fmt.Errorf("micro-grid region is empty: %+v", region)
	}
	drawCellGrid(img, region, MicroGridCols, MicroGridRows, microLineColor, true)
	return nil
}

// Ruler draws n evenly spaced horizontal guide lines across the region,
// numbered 1 at the bottom edge up to n at the top edge, each labeled at the
// left edge. The image is modified in place.
func Ruler(img *image.RGBA, region grid.Rect, n int) error {
	if region.Empty() {
		return fmt.Errorf("ruler region is empty: %+v", region)
	}
	if n < 2 {
		return fmt.Errorf("ruler needs at least 2 lines, got %d", n)
	}

	for i := 1; i <= n; i++ {
		y, err := grid.RulerIndexToY(i, n, region.Top, region.Bottom)
		if err != nil {
			return err
		}
		drawHLine(img, int(region.Left), int(region.Right), int(y), rulerLineColor)
		drawLabel(img, int(region.Left)+2, int(y)-3, strconv.Itoa(i), labelFg, labelBg)
	}
	return nil
}

// AsRGBA returns a mutable RGBA copy of an image for overlay drawing.
func AsRGBA(img image.Image) *image.RGBA {
	return clone.AsRGBA(img)
}

// drawCellGrid draws a cols x rows lattice over the region, optionally
// labeling each cell at its center. Row labels count from the bottom.
func drawCellGrid(img *image.RGBA, region grid.Rect, cols, rows int, lineColor color.RGBA, labeled bool) {
	cellW := region.Width() / float64(cols)
	cellH := region.Height() / float64(rows)

	for i := 0; i <= cols; i++ {
		x := int(region.Left + float64(i)*cellW)
		drawVLine(img, x, int(region.Top), int(region.Bottom), lineColor)
	}
	for j := 0; j <= rows; j++ {
		y := int(region.Top + float64(j)*cellH)
		drawHLine(img, int(region.Left), int(region.Right), y, lineColor)
	}

	if !labeled {
		return
	}
	for col := 0; col < cols; col++ {
		for j := 0; j < rows; j++ {
			row := rows - j // top band is the highest row number
			cx := int(region.Left + (float64(col)+0.5)*cellW)
			cy := int(region.Top + (float64(j)+0.5)*cellH)
			label := fmt.Sprintf("%c%d", 'A'+byte(col), row)
			drawLabel(img, cx-len(label)*2, cy-3, label, labelFg, labelBg)
		}
	}
}

func drawHLine(img *image.RGBA, x1, x2, y int, c color.RGBA) {
	bounds := img.Bounds()
	if y < bounds.Min.Y || y >= bounds.Max.Y {
		return
	}
	for x := max(x1, bounds.Min.X); x < min(x2, bounds.Max.X); x++ {
		img.Set(x, y, c)
	}
}

func drawVLine(img *image.RGBA, x, y1, y2 int, c color.RGBA) {
	bounds := img.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X {
		return
	}
	for y := max(y1, bounds.Min.Y); y < min(y2, bounds.Max.Y); y++ {
		img.Set(x, y, c)
	}
}
