package grid

import (
	"errors"
	"math"
	"testing"
)

func testMeta() Metadata {
	return Metadata{
		Padding:     10,
		CellWidth:   100,
		CellHeight:  100,
		ImageWidth:  820,
		ImageHeight: 620,
		Rows:        6,
		Cols:        8,
	}
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		in      string
		wantCol int
		wantRow int
		wantErr bool
	}{
		{"A1", 0, 1, false},
		{"H6", 7, 6, false},
		{"b3", 1, 3, false},
		{"D12", 3, 12, false},
		{"", 0, 0, true},
		{"A", 0, 0, true},
		{"5B", 0, 0, true},
		{"A0", 0, 0, true},
		{"AB", 0, 0, true},
		{"B-1", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseCell(tt.in)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseCell(%q): expected error, got %v", tt.in, c)
				}
				if !errors.Is(err, ErrInvalidCell) {
					t.Errorf("error should wrap ErrInvalidCell, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseCell(%q): unexpected error: %v", tt.in, err)
			}
			if c.Col != tt.wantCol || c.Row != tt.wantRow {
				t.Errorf("got (%d,%d), want (%d,%d)", c.Col, c.Row, tt.wantCol, tt.wantRow)
			}
		})
	}
}

func TestCellStringRoundTrip(t *testing.T) {
	for col := 0; col < 8; col++ {
		for row := 1; row <= 6; row++ {
			c := Cell{Col: col, Row: row}
			parsed, err := ParseCell(c.String())
			if err != nil {
				t.Fatalf("ParseCell(%q) failed: %v", c.String(), err)
			}
			if parsed != c {
				t.Errorf("round trip: got %v, want %v", parsed, c)
			}
		}
	}
}

func TestSpanRect_RowInversion(t *testing.T) {
	meta := testMeta()

	// A1 to C3: columns A-C, rows 1-3. Row 3 is visually higher, so top
	// comes from row 3 and bottom from row 1.
	a, _ := ParseCell("A1")
	b, _ := ParseCell("C3")
	r := SpanRect(a, b, meta)

	if r.Left != 10 {
		t.Errorf("Left: got %v, want 10", r.Left)
	}
	if r.Right != 310 {
		t.Errorf("Right: got %v, want 310", r.Right)
	}
	// top edge of row 3: 10 + (6-3)*100 = 310
	if r.Top != 310 {
		t.Errorf("Top: got %v, want 310", r.Top)
	}
	// bottom edge of row 1: 10 + (6-1+1)*100 = 610
	if r.Bottom != 610 {
		t.Errorf("Bottom: got %v, want 610", r.Bottom)
	}
	if r.Top >= r.Bottom {
		t.Errorf("top must be above bottom: top=%v bottom=%v", r.Top, r.Bottom)
	}
}

func TestSpanRect_ArgumentOrderIrrelevant(t *testing.T) {
	meta := testMeta()
	a, _ := ParseCell("B2")
	b, _ := ParseCell("D5")

	r1 := SpanRect(a, b, meta)
	r2 := SpanRect(b, a, meta)
	if r1 != r2 {
		t.Errorf("SpanRect should be symmetric: %v vs %v", r1, r2)
	}
}

func TestSpanRect_Clamped(t *testing.T) {
	meta := testMeta()
	meta.ImageWidth = 300
	meta.ImageHeight = 200

	tests := []struct {
		name string
		a, b string
	}{
		{"inside", "A1", "B2"},
		{"off right", "G1", "H6"},
		{"off bottom", "A1", "A1"},
		{"whole grid", "A1", "H6"},
		{"out of range row", "A9", "H9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := ParseCell(tt.a)
			b, _ := ParseCell(tt.b)
			r := SpanRect(a, b, meta)

			if r.Left < 0 || r.Right > float64(meta.ImageWidth) {
				t.Errorf("x out of bounds: %+v", r)
			}
			if r.Top < 0 || r.Bottom > float64(meta.ImageHeight) {
				t.Errorf("y out of bounds: %+v", r)
			}
			if r.Left > r.Right || r.Top > r.Bottom {
				t.Errorf("edges inverted after clamping: %+v", r)
			}
		})
	}
}

func TestCellRect(t *testing.T) {
	meta := testMeta()
	c, _ := ParseCell("D2")
	r := CellRect(c, meta)

	if r.Width() != 100 || r.Height() != 100 {
		t.Errorf("single cell should be 100x100, got %vx%v", r.Width(), r.Height())
	}
	// top edge of row 2: 10 + (6-2)*100 = 410
	if r.Top != 410 || r.Bottom != 510 {
		t.Errorf("row 2 rect: got top=%v bottom=%v, want 410/510", r.Top, r.Bottom)
	}
}

func TestRulerIndexToY_Boundaries(t *testing.T) {
	for _, n := range []int{2, 5, 9} {
		y, err := RulerIndexToY(1, n, 100, 200)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if y != 200 {
			t.Errorf("n=%d pos=1: got %v, want bottom=200", n, y)
		}

		y, err = RulerIndexToY(n, n, 100, 200)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if y != 100 {
			t.Errorf("n=%d pos=%d: got %v, want top=100", n, n, y)
		}
	}
}

func TestRulerIndexToY_Midpoint(t *testing.T) {
	y, err := RulerIndexToY(5, 9, 0, 400)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(y-200) > 1e-9 {
		t.Errorf("midpoint: got %v, want 200", y)
	}
}

func TestRulerIndexToY_TooFewLines(t *testing.T) {
	if _, err := RulerIndexToY(1, 1, 0, 100); err == nil {
		t.Error("expected error for n=1")
	}
	if _, err := RulerIndexToY(1, 0, 0, 100); err == nil {
		t.Error("expected error for n=0")
	}
}

func TestRectEmpty(t *testing.T) {
	if (Rect{Left: 0, Top: 0, Right: 10, Bottom: 10}).Empty() {
		t.Error("non-degenerate rect reported empty")
	}
	if !(Rect{Left: 10, Top: 0, Right: 10, Bottom: 10}).Empty() {
		t.Error("zero-width rect should be empty")
	}
	if !(Rect{Left: 0, Top: 5, Right: 10, Bottom: 5}).Empty() {
		t.Error("zero-height rect should be empty")
	}
}
