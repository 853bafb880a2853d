package imaging

import (
	"errors"
	"image/color"
	"testing"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
)

func TestCropRect(t *testing.T) {
	img := createInMemoryImage(200, 100, color.RGBA{50, 50, 50, 255})

	cropped, err := CropRect(img, grid.Rect{Left: 10, Top: 20, Right: 110, Bottom: 70})
	if err != nil {
		t.Fatalf("CropRect failed: %v", err)
	}

	b := cropped.Bounds()
	if b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("crop size: got %dx%d, want 100x50", b.Dx(), b.Dy())
	}
}

func TestCropRect_ClampsToBounds(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{50, 50, 50, 255})

	cropped, err := CropRect(img, grid.Rect{Left: 50, Top: 50, Right: 500, Bottom: 500})
	if err != nil {
		t.Fatalf("CropRect failed: %v", err)
	}

	b := cropped.Bounds()
	if b.Dx() != 50 || b.Dy() != 50 {
		t.Errorf("clamped crop: got %dx%d, want 50x50", b.Dx(), b.Dy())
	}
}

func TestCropRect_EmptyAfterClamp(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{50, 50, 50, 255})

	tests := []struct {
		name string
		rect grid.Rect
	}{
		{"fully outside", grid.Rect{Left: 200, Top: 200, Right: 300, Bottom: 300}},
		{"zero width", grid.Rect{Left: 10, Top: 10, Right: 10, Bottom: 50}},
		{"inverted", grid.Rect{Left: 80, Top: 80, Right: 20, Bottom: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CropRect(img, tt.rect)
			if !errors.Is(err, ErrEmptyCrop) {
				t.Errorf("expected ErrEmptyCrop, got %v", err)
			}
		})
	}
}

func TestUpscaleToWidth(t *testing.T) {
	small := createInMemoryImage(100, 50, color.RGBA{50, 50, 50, 255})
	big := UpscaleToWidth(small, 400)

	if got := big.Bounds().Dx(); got != 400 {
		t.Errorf("upscaled width: got %d, want 400", got)
	}
	// Aspect ratio preserved.
	if got := big.Bounds().Dy(); got != 200 {
		t.Errorf("upscaled height: got %d, want 200", got)
	}

	// Already wide enough: untouched.
	same := UpscaleToWidth(big, 300)
	if same != big {
		t.Error("image at or above minWidth should pass through unchanged")
	}
}

func TestEncodePNG(t *testing.T) {
	img := createInMemoryImage(10, 10, color.RGBA{1, 2, 3, 255})

	data, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	// PNG magic bytes.
	if len(data) < 8 || data[0] != 0x89 || data[1] != 'P' || data[2] != 'N' || data[3] != 'G' {
		t.Error("output does not look like a PNG")
	}
}

func TestZoneColorHint_DescriptionWins(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{0, 0, 255, 255})
	hint := ZoneColorHint(img, grid.Rect{Left: 0, Top: 0, Right: 100, Bottom: 100}, "a RED supply zone")
	if hint != "red" {
		t.Errorf("got %q, want red", hint)
	}
}

func TestZoneColorHint_DominantHue(t *testing.T) {
	tests := []struct {
		name string
		fill color.RGBA
		want string
	}{
		{"green band", color.RGBA{30, 200, 30, 255}, "green"},
		{"blue band", color.RGBA{40, 40, 220, 255}, "blue"},
		{"red band", color.RGBA{220, 30, 30, 255}, "red"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createInMemoryImage(60, 60, tt.fill)
			hint := ZoneColorHint(img, grid.Rect{Left: 0, Top: 0, Right: 60, Bottom: 60}, "a zone")
			if hint != tt.want {
				t.Errorf("got %q, want %q", hint, tt.want)
			}
		})
	}
}

func TestZoneColorHint_GreyFallsBack(t *testing.T) {
	img := createInMemoryImage(60, 60, color.RGBA{128, 128, 128, 255})
	hint := ZoneColorHint(img, grid.Rect{Left: 0, Top: 0, Right: 60, Bottom: 60}, "a zone")
	if hint != "colored" {
		t.Errorf("got %q, want colored fallback for unsaturated region", hint)
	}
}

func TestImageCache(t *testing.T) {
	cache := NewImageCache()
	if _, err := cache.Load("/nonexistent/image.png"); err == nil {
		t.Error("expected error for missing file")
	}
}
