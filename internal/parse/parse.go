// Package parse converts free-form vision model replies into structured
// records.
//
// The model is asked for fenced JSON but does not always comply, so every
// parse tries the structured form first and falls back to a line-oriented
// scan of "key: value" pairs. A reply that yields nothing from either path
// is reported as unparsable; the caller drops the element rather than
// failing the run.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnparsable is returned when neither the structured nor the line-oriented
// parse produces any usable field.
var ErrUnparsable = errors.New("reply not parsable")

// Point is one detected micro-grid point. Cell and Touch are empty strings
// when the model's point text did not match the expected format; downstream
// consumers treat empty as unresolved, never as an error.
type Point struct {
	Cell  string `json:"cell"`
	Touch string `json:"touch"`
}

// PointRecord is the parsed form of a two-point refinement reply.
type PointRecord struct {
	ElementID  string `json:"element_id"`
	Point1     Point  `json:"point_1"`
	Point2     Point  `json:"point_2"`
	Confidence string `json:"confidence"`
	Notes      string `json:"notes"`
}

// ZoneRecord is the parsed form of one zone boundary block.
// ClosestLine is 0 when the model did not return a usable ruler index;
// valid indices start at 1.
type ZoneRecord struct {
	ElementID   string `json:"element_id"`
	CellRole    string `json:"cell_role"`
	ClosestLine int    `json:"closest_line"`
	Confidence  string `json:"confidence"`
	Notes       string `json:"notes"`
}

// pointPattern is the strict shape of a point value: micro-grid cell A1..H6
// plus the candle part the line touches.
var pointPattern = regexp.MustCompile(`(?i)^([A-H])([1-6])\s*,\s*touch:\s*(body|wick)$`)

// ParsePointReply parses a diagonal/arrow refinement reply.
//
// fallbackID fills the element id when the reply omits it, so a sloppy model
// answer still attaches to the right element.
func ParsePointReply(raw, fallbackID string) (*PointRecord, error) {
	fields, err := extractFields(raw, []string{
		"element_id", "point_1_cell", "point_2_cell", "confidence", "notes",
	})
	if err != nil {
		return nil, err
	}

	rec := &PointRecord{
		ElementID:  fields["element_id"],
		Point1:     parsePoint(fields["point_1_cell"]),
		Point2:     parsePoint(fields["point_2_cell"]),
		Confidence: fields["confidence"],
		Notes:      fields["notes"],
	}
	if rec.ElementID == "" {
		rec.ElementID = fallbackID
	}
	return rec, nil
}

// ParseZoneReply parses a single five-line zone boundary block.
func ParseZoneReply(raw, fallbackID string) (*ZoneRecord, error) {
	fields, err := extractFields(raw, []string{
		"element_id", "cell_role", "closest_line", "confidence", "notes",
	})
	if err != nil {
		return nil, err
	}

	rec := &ZoneRecord{
		ElementID:  fields["element_id"],
		CellRole:   strings.ToLower(fields["cell_role"]),
		Confidence: fields["confidence"],
		Notes:      fields["notes"],
	}
	if rec.ElementID == "" {
		rec.ElementID = fallbackID
	}
	if n, err := strconv.Atoi(strings.TrimSpace(fields["closest_line"])); err == nil && n > 0 {
		rec.ClosestLine = n
	}
	return rec, nil
}

// SplitZoneReply splits a concatenated ten-line zone reply into the
// top-boundary block and the bottom-boundary block. Returns ok=false when
// the reply does not have at least ten non-empty lines.
func SplitZoneReply(raw string) (top, bottom string, ok bool) {
	lines := nonEmptyLines(StripCodeFences(raw))
	if len(lines) < 10 {
		return "", "", false
	}
	return strings.Join(lines[0:5], "\n"), strings.Join(lines[5:10], "\n"), true
}

// StripCodeFences removes leading/trailing markdown code fence markers
// (``` or ```json) from a reply.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag on the opening fence.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractFields pulls the requested keys out of a reply, trying fenced JSON
// first and a line scan second.
func extractFields(raw string, keys []string) (map[string]string, error) {
	text := StripCodeFences(raw)

	if fields, ok := tryJSON(text, keys); ok {
		return fields, nil
	}

	fields := make(map[string]string, len(keys))
	lines := nonEmptyLines(text)
	usable := false
	for _, key := range keys {
		prefix := key + ":"
		for _, line := range lines {
			if !strings.HasPrefix(strings.ToLower(line), prefix) {
				continue
			}
			if idx := strings.IndexByte(line, ':'); idx >= 0 {
				fields[key] = strings.TrimSpace(line[idx+1:])
				if fields[key] != "" {
					usable = true
				}
			}
			break
		}
	}
	if !usable {
		return nil, fmt.Errorf("%w: no recognized fields in %d lines", ErrUnparsable, len(lines))
	}
	return fields, nil
}

// tryJSON attempts a strict structured parse. Values may be strings or
// numbers; numbers are stringified so confidence can be either.
func tryJSON(text string, keys []string) (map[string]string, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, false
	}

	fields := make(map[string]string, len(keys))
	usable := false
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			fields[key] = strings.TrimSpace(v)
		case float64:
			fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if fields[key] != "" {
			usable = true
		}
	}
	// A JSON object with none of our keys is not a usable structured reply;
	// let the line scanner have a try.
	return fields, usable
}

func parsePoint(value string) Point {
	m := pointPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return Point{}
	}
	return Point{
		Cell:  strings.ToUpper(m[1]) + m[2],
		Touch: strings.ToLower(m[3]),
	}
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
