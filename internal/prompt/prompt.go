// Package prompt loads the instruction texts sent to the vision model.
//
// Prompts are a collaborator concern: operators tune them without
// recompiling by dropping <name>.txt files into the configured prompt
// directory. Names without an override fall back to the embedded defaults.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed templates/*.txt
var templates embed.FS

// Template names used by the pipeline.
const (
	CoarseHorizontals = "coarse_horizontals"
	CoarseDiagonals   = "coarse_diagonals"
	CoarseZones       = "coarse_zones"
	RefineDiagonal    = "refine_diagonal"
	RefineZoneSingle  = "refine_zone_single"
	RefineZoneBound   = "refine_zone_boundary"
	Validation        = "validation"
)

// Load returns the prompt text for name. A file <dir>/<name>.txt wins when
// present and non-empty; otherwise the embedded default is used. A name with
// neither is an error the caller treats as a per-category failure.
func Load(dir, name string) (string, error) {
	if dir != "" {
		p := filepath.Join(dir, name+".txt")
		if b, err := os.ReadFile(p); err == nil && len(strings.TrimSpace(string(b))) > 0 {
			return strings.TrimSpace(string(b)), nil
		}
	}

	b, err := templates.ReadFile("templates/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("prompt %q not found in %q or embedded defaults", name, dir)
	}
	return strings.TrimSpace(string(b)), nil
}
