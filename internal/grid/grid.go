// Package grid implements the coordinate geometry for the reference grid
// overlaid on chart images.
//
// A grid cell is addressed as a column letter plus a row number, e.g. "B3".
// Columns run left to right starting at 'A'. Rows run bottom to top starting
// at 1, which is the opposite of pixel y (pixel y grows downward). Every
// conversion between cells and pixels must account for that inversion: the
// pixel y of the top edge of row r is padding + (rows-r)*cellHeight.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCell is returned when a cell reference cannot be parsed.
var ErrInvalidCell = errors.New("invalid cell format")

// Metadata describes the reference grid rendered over one chart image.
// It is produced once per run and treated as immutable afterwards.
type Metadata struct {
	Padding     int     `json:"padding"`
	CellWidth   float64 `json:"cell_width"`
	CellHeight  float64 `json:"cell_height"`
	ImageWidth  int     `json:"image_width"`
	ImageHeight int     `json:"image_height"`
	Rows        int     `json:"rows"`
	Cols        int     `json:"cols"`
}

// Cell is a parsed grid cell address. Col is 0-based (A=0), Row is 1-based
// with row 1 at the bottom of the grid.
type Cell struct {
	Col int
	Row int
}

// ParseCell parses a cell reference like "B3" into column and row indices.
//
// The column must be a single letter (case-insensitive) and the row a
// positive integer. Range checking against a specific grid is the caller's
// concern; this only validates the format.
func ParseCell(s string) (Cell, error) {
	if len(s) < 2 {
		return Cell{}, fmt.Errorf("%w: %q", ErrInvalidCell, s)
	}

	c := s[0]
	switch {
	case c >= 'A' && c <= 'Z':
		c -= 'A'
	case c >= 'a' && c <= 'z':
		c -= 'a'
	default:
		return Cell{}, fmt.Errorf("%w: %q", ErrInvalidCell, s)
	}

	row := 0
	for i := 1; i < len(s); i++ {
		d := s[i]
		if d < '0' || d > '9' {
			return Cell{}, fmt.Errorf("%w: %q", ErrInvalidCell, s)
		}
		row = row*10 + int(d-'0')
	}
	if row < 1 {
		return Cell{}, fmt.Errorf("%w: %q", ErrInvalidCell, s)
	}

	return Cell{Col: int(c), Row: row}, nil
}

// String formats the cell back to its letter+number form, the inverse of
// ParseCell for any cell with Col in [0,25] and Row >= 1.
func (c Cell) String() string {
	return fmt.Sprintf("%c%d", 'A'+byte(c.Col), c.Row)
}

// Rect is an axis-aligned pixel rectangle. Top < Bottom in pixel space, so
// Top corresponds to the higher grid row.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width returns the rectangle width in pixels.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the rectangle height in pixels.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Empty reports whether the rectangle has zero area, which can happen after
// clamping a span that lies outside the image.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// SpanRect computes the pixel bounding box of the union of two cells.
//
// The box covers min..max of the two columns and min..max of the two rows,
// with the row axis inverted into pixel space. Each edge is clamped to the
// image bounds, so the result always satisfies 0 <= Left <= Right <= width
// and 0 <= Top <= Bottom <= height.
func SpanRect(a, b Cell, meta Metadata) Rect {
	loCol := math.Min(float64(a.Col), float64(b.Col))
	hiCol := math.Max(float64(a.Col), float64(b.Col))
	loRow := math.Min(float64(a.Row), float64(b.Row))
	hiRow := math.Max(float64(a.Row), float64(b.Row))

	pad := float64(meta.Padding)
	left := pad + loCol*meta.CellWidth
	right := pad + (hiCol+1)*meta.CellWidth

	// Row hiRow sits visually highest, so it defines the top edge.
	top := pad + (float64(meta.Rows)-hiRow)*meta.CellHeight
	bottom := pad + (float64(meta.Rows)-loRow+1)*meta.CellHeight

	r := Rect{
		Left:   clampf(left, 0, float64(meta.ImageWidth)),
		Top:    clampf(top, 0, float64(meta.ImageHeight)),
		Right:  clampf(right, 0, float64(meta.ImageWidth)),
		Bottom: clampf(bottom, 0, float64(meta.ImageHeight)),
	}
	if r.Right < r.Left {
		r.Right = r.Left
	}
	if r.Bottom < r.Top {
		r.Bottom = r.Top
	}
	return r
}

// CellRect returns the pixel rectangle of a single cell.
func CellRect(c Cell, meta Metadata) Rect {
	return SpanRect(c, c, meta)
}

// RulerIndexToY maps a 1..n ruler position back to an absolute pixel y.
// Position 1 is the bottom edge of the rect and position n the top edge;
// n must be at least 2.
func RulerIndexToY(pos, n int, top, bottom float64) (float64, error) {
	if n < 2 {
		return 0, fmt.Errorf("ruler needs at least 2 lines, got %d", n)
	}
	return top + (float64(n-pos)/float64(n-1))*(bottom-top), nil
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
