// Package config loads the pipeline configuration from a YAML file with
// sensible defaults for everything but the API key.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the complete runtime configuration.
type Config struct {
	// APIKey authenticates against the Gemini API. The GEMINI_API_KEY
	// environment variable overrides the file value so keys stay out of
	// checked-in configs.
	APIKey string `yaml:"api_key"`

	// Model is the Gemini model name used for every vision call.
	Model string `yaml:"model"`

	// MaxOutputTokens caps each model reply.
	MaxOutputTokens int32 `yaml:"max_output_tokens"`

	// PromptDir optionally overrides the embedded prompt templates.
	PromptDir string `yaml:"prompt_dir"`

	// OutputDir receives the grid overlay and the result bundle.
	OutputDir string `yaml:"output_dir"`

	// DebugDir receives per-element debug crops when set.
	DebugDir string `yaml:"debug_dir"`

	Grid GridConfig `yaml:"grid"`
}

// GridConfig shapes the reference grid.
type GridConfig struct {
	Rows    int `yaml:"rows"`
	Cols    int `yaml:"cols"`
	Padding int `yaml:"padding"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Model:           "gemini-2.5-flash",
		MaxOutputTokens: 4096,
		OutputDir:       "output",
		Grid: GridConfig{
			Rows:    6,
			Cols:    8,
			Padding: 10,
		},
	}
}

// Load reads the configuration from path, filling unset fields with
// defaults. An empty path yields the defaults. The GEMINI_API_KEY
// environment variable, when set, always wins over the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config parse: %w", err)
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.APIKey = key
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Model == "" {
		return errors.New("model must not be empty")
	}
	if c.MaxOutputTokens < 1 {
		return fmt.Errorf("max_output_tokens must be positive, got %d", c.MaxOutputTokens)
	}
	if c.Grid.Rows < 1 || c.Grid.Cols < 1 {
		return fmt.Errorf("grid needs positive dimensions, got %dx%d", c.Grid.Cols, c.Grid.Rows)
	}
	if c.Grid.Padding < 0 {
		return fmt.Errorf("grid padding must not be negative, got %d", c.Grid.Padding)
	}
	if c.OutputDir == "" {
		return errors.New("output_dir must not be empty")
	}
	return nil
}
