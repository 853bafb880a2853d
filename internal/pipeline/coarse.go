package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/prompt"
)

// Wire shapes of the coarse mapping replies, one per element kind. The model
// returns string fields throughout; numeric validation happens at the phase
// boundary, not here.
type wireRow struct {
	ElementID string `json:"element_id"`
	Row       string `json:"row"`
}

type wireSpan struct {
	ElementID string `json:"element_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type wireArea struct {
	ElementID string `json:"element_id"`
	Area      string `json:"area"`
}

type wireCell struct {
	ElementID string `json:"element_id"`
	Cell      string `json:"cell"`
}

// mapCategory runs one category's coarse mapping call and decodes the reply
// into validated elements. Any failure belongs to this category alone; the
// caller substitutes an empty mapping.
func (r *Runner) mapCategory(ctx context.Context, cat Category, gridImagePath string, pack InfoPack) (CoarseMapping, error) {
	mapping := CoarseMapping{Category: cat}

	candidates := packCandidates(cat, pack)
	if len(candidates) == 0 {
		return mapping, nil
	}

	name := promptName(cat)
	text, err := prompt.Load(r.opts.PromptDir, name)
	if err != nil {
		return mapping, err
	}
	text += "\n" + describeCandidates(candidates)

	reply, err := r.detector.Detect(ctx, gridImagePath, text)
	if err != nil {
		return mapping, fmt.Errorf("%s mapping: %w", cat, err)
	}

	descs := descriptionIndex(candidates)
	switch cat {
	case CategoryHorizontals:
		mapping.Elements = append(mapping.Elements, decodeRows(reply["horizontal_lines"], descs)...)
		mapping.Elements = append(mapping.Elements, decodeSpans(reply["arrows"], KindArrow, descs)...)
	case CategoryDiagonals:
		mapping.Elements = decodeSpans(reply["diagonal_lines"], KindDiagonalLine, descs)
	case CategoryZones:
		mapping.Elements = append(mapping.Elements, decodeAreas(reply["zones"], descs)...)
		mapping.Elements = append(mapping.Elements, decodeCells(reply["text_labels"], descs)...)
	}

	return mapping, nil
}

// packCandidates selects the category's elements with Exists true, tagged
// with their kind.
func packCandidates(cat Category, pack InfoPack) []CoarseElement {
	var out []CoarseElement

	add := func(kind string, els []PackElement) {
		for _, el := range els {
			if !el.Exists {
				continue
			}
			out = append(out, CoarseElement{ElementID: el.ElementID, Kind: kind, Description: el.Description})
		}
	}

	switch cat {
	case CategoryHorizontals:
		add(KindHorizontalLine, pack.HorizontalLines)
		add(KindArrow, pack.Arrows)
	case CategoryDiagonals:
		add(KindDiagonalLine, pack.DiagonalLines)
	case CategoryZones:
		add(KindZone, pack.Zones)
		add(KindTextLabel, pack.TextLabels)
	}
	return out
}

// describeCandidates renders the element list appended to a mapping prompt.
func describeCandidates(els []CoarseElement) string {
	var b strings.Builder
	b.WriteString("Elements to locate:\n")
	for _, el := range els {
		fmt.Fprintf(&b, "- element_id: %s (%s): %s\n", el.ElementID, el.Kind, el.Description)
	}
	return b.String()
}

func promptName(cat Category) string {
	switch cat {
	case CategoryHorizontals:
		return prompt.CoarseHorizontals
	case CategoryDiagonals:
		return prompt.CoarseDiagonals
	default:
		return prompt.CoarseZones
	}
}

func descriptionIndex(els []CoarseElement) map[string]string {
	m := make(map[string]string, len(els))
	for _, el := range els {
		m[el.ElementID] = el.Description
	}
	return m
}

// The decode helpers tolerate an absent or malformed key by returning no
// elements; a category with nothing recognizable maps to empty, not to an
// error. Entries missing their location field are dropped individually.

func decodeRows(raw json.RawMessage, descs map[string]string) []CoarseElement {
	var rows []wireRow
	if len(raw) == 0 || json.Unmarshal(raw, &rows) != nil {
		return nil
	}
	var out []CoarseElement
	for _, w := range rows {
		if w.ElementID == "" || strings.TrimSpace(w.Row) == "" {
			continue
		}
		out = append(out, CoarseElement{
			ElementID:   w.ElementID,
			Kind:        KindHorizontalLine,
			Description: descs[w.ElementID],
			Row:         strings.TrimSpace(w.Row),
		})
	}
	return out
}

func decodeSpans(raw json.RawMessage, kind string, descs map[string]string) []CoarseElement {
	var spans []wireSpan
	if len(raw) == 0 || json.Unmarshal(raw, &spans) != nil {
		return nil
	}
	var out []CoarseElement
	for _, w := range spans {
		if w.ElementID == "" || w.Start == "" || w.End == "" {
			continue
		}
		out = append(out, CoarseElement{
			ElementID:   w.ElementID,
			Kind:        kind,
			Description: descs[w.ElementID],
			Start:       strings.TrimSpace(w.Start),
			End:         strings.TrimSpace(w.End),
		})
	}
	return out
}

func decodeAreas(raw json.RawMessage, descs map[string]string) []CoarseElement {
	var areas []wireArea
	if len(raw) == 0 || json.Unmarshal(raw, &areas) != nil {
		return nil
	}
	var out []CoarseElement
	for _, w := range areas {
		if w.ElementID == "" || strings.TrimSpace(w.Area) == "" {
			continue
		}
		out = append(out, CoarseElement{
			ElementID:   w.ElementID,
			Kind:        KindZone,
			Description: descs[w.ElementID],
			Area:        strings.TrimSpace(w.Area),
		})
	}
	return out
}

func decodeCells(raw json.RawMessage, descs map[string]string) []CoarseElement {
	var cells []wireCell
	if len(raw) == 0 || json.Unmarshal(raw, &cells) != nil {
		return nil
	}
	var out []CoarseElement
	for _, w := range cells {
		if w.ElementID == "" || strings.TrimSpace(w.Cell) == "" {
			continue
		}
		out = append(out, CoarseElement{
			ElementID:   w.ElementID,
			Kind:        KindTextLabel,
			Description: descs[w.ElementID],
			Cell:        strings.TrimSpace(w.Cell),
		})
	}
	return out
}
