package pipeline

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/imaging"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/parse"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/vision"
)

// minCropWidth is the width crops are upscaled to before overlay rendering,
// so micro-grid and ruler labels stay legible to the model.
const minCropWidth = 480

// DiagonalRefiner localizes the endpoints of diagonal lines and arrows with
// a two-image model call: a context view of the full chart with the region
// framed, and a zoomed precision view of the same region. Both carry the
// fixed 8x6 micro-grid so the model answers in one coordinate frame.
type DiagonalRefiner struct {
	caller    ModelCaller
	model     string
	maxTokens int32
	log       *zap.Logger
}

// NewDiagonalRefiner builds a refiner for diagonals and arrows.
func NewDiagonalRefiner(caller ModelCaller, model string, maxTokens int32, log *zap.Logger) *DiagonalRefiner {
	return &DiagonalRefiner{caller: caller, model: model, maxTokens: maxTokens, log: log}
}

// Refine resolves one element's endpoints. An error means the element could
// not be refined; the runner logs it and drops the element without touching
// its siblings. Returned artifacts are the two rendered views, for the
// runner to persist if debug output is enabled.
func (r *DiagonalRefiner) Refine(ctx context.Context, img image.Image, meta grid.Metadata, el CoarseElement, promptText string) (*PrecisionResult, []Artifact, error) {
	start, err := grid.ParseCell(el.Start)
	if err != nil {
		return nil, nil, fmt.Errorf("element %s start: %w", el.ElementID, err)
	}
	end, err := grid.ParseCell(el.End)
	if err != nil {
		return nil, nil, fmt.Errorf("element %s end: %w", el.ElementID, err)
	}

	region := grid.SpanRect(start, end, meta)
	if region.Empty() {
		return nil, nil, fmt.Errorf("element %s span %s-%s is outside the image", el.ElementID, el.Start, el.End)
	}

	contextPNG, precisionPNG, err := renderDualViews(img, region)
	if err != nil {
		return nil, nil, fmt.Errorf("element %s: %w", el.ElementID, err)
	}

	text := fmt.Sprintf("%s\nelement_id: %s\ndescription: %s\ngrid span: %s to %s\n",
		promptText, el.ElementID, el.Description, el.Start, el.End)

	raw, err := r.caller.Generate(ctx, vision.GenerateRequest{
		Model: r.model,
		Blocks: []vision.Block{
			vision.TextBlock(text),
			vision.ImageBlock(contextPNG),
			vision.ImageBlock(precisionPNG),
		},
		MaxOutputTokens: r.maxTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("element %s: %w", el.ElementID, err)
	}

	rec, err := parse.ParsePointReply(raw, el.ElementID)
	if err != nil {
		return nil, nil, fmt.Errorf("element %s: %w", el.ElementID, err)
	}

	result := &PrecisionResult{
		ElementID:  rec.ElementID,
		Points:     []DetectedPoint{toDetectedPoint(rec.Point1), toDetectedPoint(rec.Point2)},
		Confidence: rec.Confidence,
		Notes:      rec.Notes,
	}
	artifacts := []Artifact{
		{Name: el.ElementID + "_context.png", PNG: contextPNG},
		{Name: el.ElementID + "_precision.png", PNG: precisionPNG},
	}
	return result, artifacts, nil
}

// renderDualViews produces the context view (full image, micro-grid over the
// region) and the precision view (upscaled crop, micro-grid over the whole
// crop) as PNG bytes.
func renderDualViews(img image.Image, region grid.Rect) (contextPNG, precisionPNG []byte, err error) {
	contextView := imaging.AsRGBA(img)
	if err := imaging.MicroGrid(contextView, region); err != nil {
		return nil, nil, err
	}

	crop, err := imaging.CropRect(img, region)
	if err != nil {
		return nil, nil, err
	}
	crop = imaging.UpscaleToWidth(crop, minCropWidth)

	precisionView := imaging.AsRGBA(crop)
	b := precisionView.Bounds()
	full := grid.Rect{
		Left:   float64(b.Min.X),
		Top:    float64(b.Min.Y),
		Right:  float64(b.Max.X),
		Bottom: float64(b.Max.Y),
	}
	if err := imaging.MicroGrid(precisionView, full); err != nil {
		return nil, nil, err
	}

	if contextPNG, err = imaging.EncodePNG(contextView); err != nil {
		return nil, nil, err
	}
	if precisionPNG, err = imaging.EncodePNG(precisionView); err != nil {
		return nil, nil, err
	}
	return contextPNG, precisionPNG, nil
}

// toDetectedPoint expands a parsed point into its micro-grid indices. An
// unresolved point keeps zero indices alongside its empty cell.
func toDetectedPoint(p parse.Point) DetectedPoint {
	dp := DetectedPoint{Cell: p.Cell, Touch: p.Touch}
	if p.Cell == "" {
		return dp
	}
	if c, err := grid.ParseCell(p.Cell); err == nil {
		dp.Col = c.Col
		dp.Row = c.Row
	}
	return dp
}
