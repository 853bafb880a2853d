package imaging

import (
	"image"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
)

// ZoneColorHint names the band color a zone renders with, so the refinement
// prompt can tell the model which translucent band to trust.
//
// A "red" mention in the upstream description wins outright. Otherwise the
// dominant saturated hue inside the zone's cell region is classified into a
// coarse color name; a region with no saturated pixels reports "colored".
func ZoneColorHint(img image.Image, region grid.Rect, description string) string {
	if strings.Contains(strings.ToLower(description), "red") {
		return "red"
	}

	bounds := img.Bounds()
	x1 := clampi(int(region.Left), bounds.Min.X, bounds.Max.X)
	y1 := clampi(int(region.Top), bounds.Min.Y, bounds.Max.Y)
	x2 := clampi(int(region.Right), bounds.Min.X, bounds.Max.X)
	y2 := clampi(int(region.Bottom), bounds.Min.Y, bounds.Max.Y)
	if x1 >= x2 || y1 >= y2 {
		return "colored"
	}

	// Histogram hues of sufficiently saturated pixels. Sampling every third
	// pixel is plenty for a band color.
	buckets := make(map[string]int)
	for y := y1; y < y2; y += 3 {
		for x := x1; x < x2; x += 3 {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			h, s, v := c.Hsv()
			if s < 0.25 || v < 0.15 {
				continue // background / gridlines / candles in grey
			}
			buckets[hueName(h)]++
		}
	}

	best, bestCount := "colored", 0
	for name, count := range buckets {
		if count > bestCount {
			best, bestCount = name, count
		}
	}
	return best
}

func hueName(h float64) string {
	switch {
	case h < 20 || h >= 340:
		return "red"
	case h < 45:
		return "orange"
	case h < 70:
		return "yellow"
	case h < 160:
		return "green"
	case h < 200:
		return "cyan"
	case h < 260:
		return "blue"
	case h < 340:
		return "purple"
	}
	return "colored"
}
