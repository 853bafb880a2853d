// Package pipeline orchestrates the coarse-to-fine localization of chart
// elements: reference grid creation, parallel coarse mapping, parallel
// precision refinement, and a final validation pass.
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/detection"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/vision"
)

// Category tags one of the three concurrent mapping/refinement lanes.
type Category string

const (
	CategoryHorizontals Category = "horizontals" // horizontal lines and arrows
	CategoryDiagonals   Category = "diagonals"
	CategoryZones       Category = "zones" // zones and text labels
)

// Element kinds as they appear in info packs and results.
const (
	KindHorizontalLine = "horizontal_line"
	KindArrow          = "arrow"
	KindDiagonalLine   = "diagonal_line"
	KindZone           = "zone"
	KindTextLabel      = "text_label"
)

// PackElement is one candidate element from the upstream info pack. Only
// candidates with Exists true are processed.
type PackElement struct {
	ElementID   string `json:"element_id"`
	Exists      bool   `json:"exists"`
	Description string `json:"description"`
}

// InfoPack is the upstream stage's complete set of candidate elements for
// one chart.
type InfoPack struct {
	HorizontalLines []PackElement `json:"horizontal_lines"`
	Arrows          []PackElement `json:"arrows"`
	DiagonalLines   []PackElement `json:"diagonal_lines"`
	Zones           []PackElement `json:"zones"`
	TextLabels      []PackElement `json:"text_labels"`
}

// CoarseElement is one element mapped onto the reference grid. Exactly the
// fields for its Kind are set: Row for horizontal lines, Start/End for
// arrows and diagonals, Area for zones, Cell for text labels.
type CoarseElement struct {
	ElementID   string `json:"element_id"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	Row         string `json:"row,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Area        string `json:"area,omitempty"`
	Cell        string `json:"cell,omitempty"`
}

// CoarseMapping is one category's coarse result, validated at the phase
// boundary rather than accessed by best-effort key lookup.
type CoarseMapping struct {
	Category Category        `json:"category"`
	Elements []CoarseElement `json:"elements"`
}

// DetectedPoint is one refined micro-grid point of a diagonal or arrow.
// Cell and Touch are empty when the model's point text was unresolvable.
type DetectedPoint struct {
	Cell  string `json:"cell"`
	Col   int    `json:"col"`
	Row   int    `json:"row"`
	Touch string `json:"touch"`
}

// PrecisionResult is one element's refined geometry. Diagonals and arrows
// fill Points; zones fill the y fields. Pixel and normalized y values are
// always set or nil together, never independently.
type PrecisionResult struct {
	ElementID   string          `json:"element_id"`
	Points      []DetectedPoint `json:"detected_points,omitempty"`
	YTopPx      *float64        `json:"y_top_px,omitempty"`
	YBottomPx   *float64        `json:"y_bottom_px,omitempty"`
	YTopNorm    *float64        `json:"y_top_norm,omitempty"`
	YBottomNorm *float64        `json:"y_bottom_norm,omitempty"`
	Confidence  string          `json:"confidence,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	DebugImages []string        `json:"debug_images,omitempty"`
}

// LabelCheck records the OCR verification of one text label.
type LabelCheck struct {
	ElementID string `json:"element_id"`
	Cell      string `json:"cell"`
	Expected  string `json:"expected"`
	Text      string `json:"text,omitempty"`
	Verified  bool   `json:"verified"`
	Available bool   `json:"available"`
}

// PrecisionBundle groups the phase-3 outputs per category.
type PrecisionBundle struct {
	Horizontals *detection.HorizontalResult `json:"horizontals,omitempty"`
	Arrows      []PrecisionResult           `json:"arrows,omitempty"`
	Diagonals   []PrecisionResult           `json:"diagonals,omitempty"`
	Zones       []PrecisionResult           `json:"zones,omitempty"`
	TextLabels  []LabelCheck                `json:"text_labels,omitempty"`
}

// UnifiedElement is one entry of the validation input, merged from the
// three coarse mappings.
type UnifiedElement struct {
	ElementType  string `json:"element_type"`
	Description  string `json:"description"`
	GridLocation string `json:"grid_location"`
}

// CoarseBundle holds the three phase-2 outputs.
type CoarseBundle struct {
	Horizontals CoarseMapping `json:"horizontals"`
	Diagonals   CoarseMapping `json:"diagonals"`
	Zones       CoarseMapping `json:"zones"`
}

// ResultBundle is the complete output of one pipeline run.
type ResultBundle struct {
	ChartPath     string          `json:"chart_path"`
	GridImagePath string          `json:"grid_image_path"`
	GridMetadata  grid.Metadata   `json:"grid_metadata"`
	Coarse        CoarseBundle    `json:"coarse"`
	Precision     PrecisionBundle `json:"precision"`
	Validation    json.RawMessage `json:"validation,omitempty"`
}

// Artifact is one rendered debug image, produced by a refiner and persisted
// by the runner so refinement stays testable without filesystem access.
type Artifact struct {
	Name string
	PNG  []byte
}

// ModelCaller is the direct multi-image model call used by the refiners.
type ModelCaller interface {
	Generate(ctx context.Context, req vision.GenerateRequest) (string, error)
}

// Detector is the single-image detection call used for coarse mapping and
// validation.
type Detector interface {
	Detect(ctx context.Context, imagePath, promptText string) (map[string]json.RawMessage, error)
}
