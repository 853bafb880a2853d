package pipeline

import (
	"context"
	"fmt"
	"image"
	"strings"

	"go.uber.org/zap"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/imaging"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/parse"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/vision"
)

// ZoneRefiner localizes the top and bottom edges of a zone band with the
// ruler technique: the cell holding a boundary is cropped, upscaled, and
// overlaid with nine numbered horizontal guides; the model names the guide
// closest to the edge and the index is mapped back to an absolute pixel y.
type ZoneRefiner struct {
	caller       ModelCaller
	model        string
	maxTokens    int32
	singlePrompt string // both boundaries in one cell
	boundPrompt  string // one boundary per cell, %ROLE% substituted
	log          *zap.Logger
}

// NewZoneRefiner builds a zone refiner with the two ruler prompts already
// loaded.
func NewZoneRefiner(caller ModelCaller, model string, maxTokens int32, singlePrompt, boundPrompt string, log *zap.Logger) *ZoneRefiner {
	return &ZoneRefiner{
		caller:       caller,
		model:        model,
		maxTokens:    maxTokens,
		singlePrompt: singlePrompt,
		boundPrompt:  boundPrompt,
		log:          log,
	}
}

// Refine resolves one zone's boundaries. A malformed area or a model/render
// failure is an error and the runner drops the element. A boundary the model
// could not place leaves that boundary's pixel and normalized y both nil;
// they are never set independently.
func (r *ZoneRefiner) Refine(ctx context.Context, img image.Image, meta grid.Metadata, el CoarseElement) (*PrecisionResult, []Artifact, error) {
	first, second, err := splitArea(el.Area)
	if err != nil {
		return nil, nil, fmt.Errorf("element %s: %w", el.ElementID, err)
	}
	a, err := grid.ParseCell(first)
	if err != nil {
		return nil, nil, fmt.Errorf("element %s area: %w", el.ElementID, err)
	}
	b, err := grid.ParseCell(second)
	if err != nil {
		return nil, nil, fmt.Errorf("element %s area: %w", el.ElementID, err)
	}

	// The rightmost column of the area is sampled; the band is horizontal so
	// any column shows both edges, and the right side is least likely to be
	// covered by old price action.
	col := max(a.Col, b.Col)
	hiRow := max(a.Row, b.Row)
	loRow := min(a.Row, b.Row)

	hint := imaging.ZoneColorHint(img, grid.SpanRect(a, b, meta), el.Description)

	result := &PrecisionResult{ElementID: el.ElementID}
	var artifacts []Artifact

	if hiRow == loRow {
		arts, err := r.refineSingleCell(ctx, img, meta, el, grid.Cell{Col: col, Row: hiRow}, hint, result)
		if err != nil {
			return nil, nil, err
		}
		artifacts = arts
	} else {
		arts, err := r.refineSpanningRows(ctx, img, meta, el,
			grid.Cell{Col: col, Row: hiRow}, grid.Cell{Col: col, Row: loRow}, hint, result)
		if err != nil {
			return nil, nil, err
		}
		artifacts = arts
	}

	return result, artifacts, nil
}

// refineSingleCell handles a zone whose two boundaries share one grid row:
// one crop, one call, a ten-line reply carrying both boundary blocks.
func (r *ZoneRefiner) refineSingleCell(ctx context.Context, img image.Image, meta grid.Metadata, el CoarseElement, cell grid.Cell, hint string, result *PrecisionResult) ([]Artifact, error) {
	cellRect := grid.CellRect(cell, meta)
	png, err := renderRulerView(img, cellRect)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", el.ElementID, err)
	}

	raw, err := r.callRuler(ctx, r.singlePrompt, el, hint, png)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", el.ElementID, err)
	}

	topBlock, bottomBlock, ok := parse.SplitZoneReply(raw)
	if !ok {
		return nil, fmt.Errorf("element %s: reply does not contain two boundary blocks", el.ElementID)
	}
	if rec, err := parse.ParseZoneReply(topBlock, el.ElementID); err == nil {
		r.applyBoundary(result, rec, cellRect, meta, true)
		result.Confidence = rec.Confidence
		result.Notes = rec.Notes
	}
	if rec, err := parse.ParseZoneReply(bottomBlock, el.ElementID); err == nil {
		r.applyBoundary(result, rec, cellRect, meta, false)
	}

	return []Artifact{{Name: el.ElementID + "_ruler.png", PNG: png}}, nil
}

// refineSpanningRows handles a zone whose boundaries sit in different grid
// rows: one crop and one call per boundary.
func (r *ZoneRefiner) refineSpanningRows(ctx context.Context, img image.Image, meta grid.Metadata, el CoarseElement, topCell, bottomCell grid.Cell, hint string, result *PrecisionResult) ([]Artifact, error) {
	var artifacts []Artifact

	for _, bd := range []struct {
		role string
		cell grid.Cell
	}{
		{"top", topCell},
		{"bottom", bottomCell},
	} {
		cellRect := grid.CellRect(bd.cell, meta)
		png, err := renderRulerView(img, cellRect)
		if err != nil {
			return nil, fmt.Errorf("element %s %s boundary: %w", el.ElementID, bd.role, err)
		}
		artifacts = append(artifacts, Artifact{Name: el.ElementID + "_ruler_" + bd.role + ".png", PNG: png})

		promptText := strings.ReplaceAll(r.boundPrompt, "%ROLE%", bd.role)
		raw, err := r.callRuler(ctx, promptText, el, hint, png)
		if err != nil {
			return nil, fmt.Errorf("element %s %s boundary: %w", el.ElementID, bd.role, err)
		}

		rec, err := parse.ParseZoneReply(raw, el.ElementID)
		if err != nil {
			r.log.Warn("zone boundary reply unparsable, leaving boundary open",
				zap.String("element_id", el.ElementID),
				zap.String("role", bd.role),
				zap.Error(err))
			continue
		}
		r.applyBoundary(result, rec, cellRect, meta, bd.role == "top")
		if bd.role == "top" {
			result.Confidence = rec.Confidence
			result.Notes = rec.Notes
		}
	}

	return artifacts, nil
}

// applyBoundary maps a parsed ruler index into the cell's pixel space and
// sets the boundary's pixel and normalized y together. Index 0 means the
// model gave no usable line; the boundary stays nil.
func (r *ZoneRefiner) applyBoundary(result *PrecisionResult, rec *parse.ZoneRecord, cellRect grid.Rect, meta grid.Metadata, top bool) {
	if rec.ClosestLine == 0 {
		return
	}
	pos := rec.ClosestLine
	if pos > imaging.RulerLineCount {
		pos = imaging.RulerLineCount
	}

	y, err := grid.RulerIndexToY(pos, imaging.RulerLineCount, cellRect.Top, cellRect.Bottom)
	if err != nil {
		return
	}
	norm := y / float64(meta.ImageHeight)

	if top {
		result.YTopPx = &y
		result.YTopNorm = &norm
	} else {
		result.YBottomPx = &y
		result.YBottomNorm = &norm
	}
}

// callRuler sends one ruler view to the model with the element's identity
// and color hint appended to the prompt.
func (r *ZoneRefiner) callRuler(ctx context.Context, promptText string, el CoarseElement, hint string, png []byte) (string, error) {
	text := fmt.Sprintf("%s\nelement_id: %s\ndescription: %s\nband color: %s\n",
		promptText, el.ElementID, el.Description, hint)

	return r.caller.Generate(ctx, vision.GenerateRequest{
		Model: r.model,
		Blocks: []vision.Block{
			vision.TextBlock(text),
			vision.ImageBlock(png),
		},
		MaxOutputTokens: r.maxTokens,
	})
}

// renderRulerView crops one cell, upscales it, and draws the numbered ruler
// across the full crop.
func renderRulerView(img image.Image, cellRect grid.Rect) ([]byte, error) {
	crop, err := imaging.CropRect(img, cellRect)
	if err != nil {
		return nil, err
	}
	crop = imaging.UpscaleToWidth(crop, minCropWidth)

	view := imaging.AsRGBA(crop)
	b := view.Bounds()
	full := grid.Rect{
		Left:   float64(b.Min.X),
		Top:    float64(b.Min.Y),
		Right:  float64(b.Max.X),
		Bottom: float64(b.Max.Y),
	}
	if err := imaging.Ruler(view, full, imaging.RulerLineCount); err != nil {
		return nil, err
	}
	return imaging.EncodePNG(view)
}

// splitArea breaks an area expression like "D4 to D3" into its two cell
// references. A single-cell area without " to " is malformed; the mapping
// prompt always asks for both corners.
func splitArea(area string) (string, string, error) {
	parts := strings.Split(area, " to ")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed area %q, want \"<cell> to <cell>\"", area)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
