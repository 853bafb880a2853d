package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/detection"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/grid"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/imaging"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/prompt"
)

// gridImageName is the reference grid overlay written to the output
// directory; every model call in phases 2 and 4 looks at this file.
const gridImageName = "grid_overlay.png"

// resultsFileName is the persisted result bundle.
const resultsFileName = "stage2_results.json"

// Options configures one pipeline run.
type Options struct {
	Model           string
	MaxOutputTokens int32
	PromptDir       string
	OutputDir       string
	DebugDir        string // empty disables debug artifact persistence
	GridRows        int
	GridCols        int
	GridPadding     int
}

// Runner drives the four pipeline phases for one chart: grid creation,
// parallel coarse mapping, parallel precision refinement, and validation.
//
// Failure scope widens with structural importance. A missing chart or an
// unusable grid aborts the run. A category that cannot be mapped degrades to
// an empty mapping. A single element that cannot be refined is dropped.
// Debug artifact writes are never fatal.
type Runner struct {
	detector Detector
	caller   ModelCaller
	cache    *imaging.ImageCache
	opts     Options
	log      *zap.Logger
}

// NewRunner builds a runner over a detector for single-image calls and a
// model caller for the multi-image refinement calls.
func NewRunner(detector Detector, caller ModelCaller, opts Options, log *zap.Logger) *Runner {
	return &Runner{
		detector: detector,
		caller:   caller,
		cache:    imaging.NewImageCache(),
		opts:     opts,
		log:      log,
	}
}

// Run processes one chart against its info pack and persists the result
// bundle to the output directory. The returned bundle is valid even when the
// persistence write failed; the error reports the write failure.
func (r *Runner) Run(ctx context.Context, chartPath string, pack InfoPack) (*ResultBundle, error) {
	// Phase 1: reference grid. Everything downstream needs the overlay image
	// and its metadata, so any failure here aborts the run.
	img, gridImagePath, meta, err := r.createGrid(chartPath)
	if err != nil {
		return nil, err
	}

	bundle := &ResultBundle{
		ChartPath:     chartPath,
		GridImagePath: gridImagePath,
		GridMetadata:  meta,
	}

	// Phase 2: coarse mapping, three categories in parallel. A failed
	// category logs and maps to empty; the tasks never return errors.
	g, gctx := errgroup.WithContext(ctx)
	for _, cat := range []Category{CategoryHorizontals, CategoryDiagonals, CategoryZones} {
		g.Go(func() error {
			mapping, err := r.mapCategory(gctx, cat, gridImagePath, pack)
			if err != nil {
				r.log.Error("coarse mapping failed, category degrades to empty",
					zap.String("category", string(cat)), zap.Error(err))
				mapping = CoarseMapping{Category: cat}
			}
			switch cat {
			case CategoryHorizontals:
				bundle.Coarse.Horizontals = mapping
			case CategoryDiagonals:
				bundle.Coarse.Diagonals = mapping
			case CategoryZones:
				bundle.Coarse.Zones = mapping
			}
			return nil
		})
	}
	g.Wait()

	// Phase 3: precision refinement, three lanes in parallel over the coarse
	// results. Same isolation rules, one level down: a lane failure empties
	// the lane, an element failure drops the element.
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		r.refineHorizontalLane(gctx, img, meta, bundle)
		return nil
	})
	g.Go(func() error {
		bundle.Precision.Diagonals = r.refineSpanElements(gctx, img, meta,
			elementsOfKind(bundle.Coarse.Diagonals.Elements, KindDiagonalLine), CategoryDiagonals)
		return nil
	})
	g.Go(func() error {
		r.refineZoneLane(gctx, img, meta, bundle)
		return nil
	})
	g.Wait()

	// Phase 4: validation over the merged coarse mappings. Advisory only; a
	// failure leaves Validation unset.
	if raw, err := r.validate(ctx, gridImagePath, bundle.Coarse); err != nil {
		r.log.Warn("validation pass failed", zap.Error(err))
	} else {
		bundle.Validation = raw
	}

	if err := r.persistResults(bundle); err != nil {
		return bundle, err
	}
	return bundle, nil
}

// createGrid loads the chart, renders the labeled reference grid, and writes
// the overlay into the output directory.
func (r *Runner) createGrid(chartPath string) (image.Image, string, grid.Metadata, error) {
	img, err := r.cache.Load(chartPath)
	if err != nil {
		return nil, "", grid.Metadata{}, fmt.Errorf("chart image: %w", err)
	}

	overlay, meta, err := imaging.ReferenceGrid(img, r.opts.GridRows, r.opts.GridCols, r.opts.GridPadding)
	if err != nil {
		return nil, "", grid.Metadata{}, fmt.Errorf("reference grid: %w", err)
	}

	png, err := imaging.EncodePNG(overlay)
	if err != nil {
		return nil, "", grid.Metadata{}, err
	}
	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return nil, "", grid.Metadata{}, fmt.Errorf("output dir: %w", err)
	}
	gridImagePath := filepath.Join(r.opts.OutputDir, gridImageName)
	if err := os.WriteFile(gridImagePath, png, 0o644); err != nil {
		return nil, "", grid.Metadata{}, fmt.Errorf("grid overlay: %w", err)
	}

	r.log.Info("reference grid created",
		zap.String("path", gridImagePath),
		zap.Int("rows", meta.Rows),
		zap.Int("cols", meta.Cols))
	return img, gridImagePath, meta, nil
}

// refineHorizontalLane refines horizontal lines by pixel scan and arrows by
// the micro-grid refiner.
func (r *Runner) refineHorizontalLane(ctx context.Context, img image.Image, meta grid.Metadata, bundle *ResultBundle) {
	var hints []detection.RowHint
	for _, el := range elementsOfKind(bundle.Coarse.Horizontals.Elements, KindHorizontalLine) {
		row, err := strconv.Atoi(el.Row)
		if err != nil || row < 1 || row > meta.Rows {
			r.log.Warn("horizontal line has unusable row, dropping element",
				zap.String("element_id", el.ElementID), zap.String("row", el.Row))
			continue
		}
		hints = append(hints, detection.RowHint{ElementID: el.ElementID, Row: row})
	}
	bundle.Precision.Horizontals = detection.DetectHorizontalLines(img, hints, meta)

	bundle.Precision.Arrows = r.refineSpanElements(ctx, img, meta,
		elementsOfKind(bundle.Coarse.Horizontals.Elements, KindArrow), CategoryHorizontals)
}

// refineSpanElements runs the diagonal refiner over start/end elements with
// per-element isolation.
func (r *Runner) refineSpanElements(ctx context.Context, img image.Image, meta grid.Metadata, els []CoarseElement, cat Category) []PrecisionResult {
	if len(els) == 0 {
		return nil
	}

	promptText, err := prompt.Load(r.opts.PromptDir, prompt.RefineDiagonal)
	if err != nil {
		r.log.Error("refinement prompt unavailable, lane degrades to empty",
			zap.String("category", string(cat)), zap.Error(err))
		return nil
	}

	refiner := NewDiagonalRefiner(r.caller, r.opts.Model, r.opts.MaxOutputTokens, r.log)
	var results []PrecisionResult
	for _, el := range els {
		result, artifacts, err := refiner.Refine(ctx, img, meta, el, promptText)
		if err != nil {
			r.log.Warn("element refinement failed, dropping element",
				zap.String("category", string(cat)),
				zap.String("element_id", el.ElementID),
				zap.Error(err))
			continue
		}
		result.DebugImages = r.persistArtifacts(cat, artifacts)
		results = append(results, *result)
	}
	return results
}

// refineZoneLane refines zone boundaries with the ruler technique and
// verifies text labels by OCR.
func (r *Runner) refineZoneLane(ctx context.Context, img image.Image, meta grid.Metadata, bundle *ResultBundle) {
	zones := elementsOfKind(bundle.Coarse.Zones.Elements, KindZone)
	if len(zones) > 0 {
		single, err := prompt.Load(r.opts.PromptDir, prompt.RefineZoneSingle)
		if err == nil {
			var bound string
			bound, err = prompt.Load(r.opts.PromptDir, prompt.RefineZoneBound)
			if err == nil {
				refiner := NewZoneRefiner(r.caller, r.opts.Model, r.opts.MaxOutputTokens, single, bound, r.log)
				for _, el := range zones {
					result, artifacts, err := refiner.Refine(ctx, img, meta, el)
					if err != nil {
						r.log.Warn("zone refinement failed, dropping element",
							zap.String("element_id", el.ElementID), zap.Error(err))
						continue
					}
					result.DebugImages = r.persistArtifacts(CategoryZones, artifacts)
					bundle.Precision.Zones = append(bundle.Precision.Zones, *result)
				}
			}
		}
		if err != nil {
			r.log.Error("zone refinement prompts unavailable, lane degrades to empty", zap.Error(err))
		}
	}

	bundle.Precision.TextLabels = verifyLabels(img, meta,
		elementsOfKind(bundle.Coarse.Zones.Elements, KindTextLabel), r.log)
}

// validate merges the coarse mappings into one element table and asks the
// model to check it against the grid image. Precision results stay out of
// the table; validation checks placement, not sub-cell geometry.
func (r *Runner) validate(ctx context.Context, gridImagePath string, coarse CoarseBundle) (json.RawMessage, error) {
	unified := unifyCoarse(coarse)
	if len(unified) == 0 {
		return nil, nil
	}

	text, err := prompt.Load(r.opts.PromptDir, prompt.Validation)
	if err != nil {
		return nil, err
	}
	table, err := json.MarshalIndent(unified, "", "  ")
	if err != nil {
		return nil, err
	}

	reply, err := r.detector.Detect(ctx, gridImagePath, text+"\n"+string(table))
	if err != nil {
		return nil, err
	}
	if raw, ok := reply["validation"]; ok {
		return raw, nil
	}
	return nil, fmt.Errorf("validation reply carries no validation key")
}

// unifyCoarse flattens the three coarse mappings into the element table the
// validation prompt receives, keyed by element id.
func unifyCoarse(coarse CoarseBundle) map[string]UnifiedElement {
	unified := make(map[string]UnifiedElement)
	for _, mapping := range []CoarseMapping{coarse.Horizontals, coarse.Diagonals, coarse.Zones} {
		for _, el := range mapping.Elements {
			unified[el.ElementID] = UnifiedElement{
				ElementType:  el.Kind,
				Description:  el.Description,
				GridLocation: coarseLocation(el),
			}
		}
	}
	return unified
}

// coarseLocation renders the kind-specific location field as one string.
func coarseLocation(el CoarseElement) string {
	switch el.Kind {
	case KindHorizontalLine:
		return "row " + el.Row
	case KindArrow, KindDiagonalLine:
		return el.Start + " to " + el.End
	case KindZone:
		return el.Area
	case KindTextLabel:
		return el.Cell
	}
	return ""
}

// persistArtifacts writes a refiner's debug images under the debug directory
// and returns their paths. Disabled or failing debug output costs log lines,
// never results.
func (r *Runner) persistArtifacts(cat Category, artifacts []Artifact) []string {
	if r.opts.DebugDir == "" || len(artifacts) == 0 {
		return nil
	}

	dir := filepath.Join(r.opts.DebugDir, string(cat))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.log.Warn("debug dir unavailable", zap.String("dir", dir), zap.Error(err))
		return nil
	}

	var paths []string
	for _, a := range artifacts {
		p := filepath.Join(dir, a.Name)
		if err := os.WriteFile(p, a.PNG, 0o644); err != nil {
			r.log.Warn("debug artifact not written", zap.String("path", p), zap.Error(err))
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

// persistResults writes the bundle to the output directory.
func (r *Runner) persistResults(bundle *ResultBundle) error {
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("results encode: %w", err)
	}
	path := filepath.Join(r.opts.OutputDir, resultsFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("results write: %w", err)
	}
	r.log.Info("results written", zap.String("path", path))
	return nil
}

func elementsOfKind(els []CoarseElement, kind string) []CoarseElement {
	var out []CoarseElement
	for _, el := range els {
		if el.Kind == kind {
			out = append(out, el)
		}
	}
	return out
}
