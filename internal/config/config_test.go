package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Equal(t, int32(4096), cfg.MaxOutputTokens)
	assert.Equal(t, 6, cfg.Grid.Rows)
	assert.Equal(t, 8, cfg.Grid.Cols)
	assert.Equal(t, 10, cfg.Grid.Padding)
	assert.Empty(t, cfg.APIKey)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_key: file-key
model: gemini-2.5-pro
output_dir: /tmp/charts
grid:
  rows: 4
  cols: 10
  padding: 20
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, "gemini-2.5-pro", cfg.Model)
	assert.Equal(t, "/tmp/charts", cfg.OutputDir)
	assert.Equal(t, 4, cfg.Grid.Rows)
	assert.Equal(t, 10, cfg.Grid.Cols)
	assert.Equal(t, 20, cfg.Grid.Padding)
	// Unset fields keep their defaults.
	assert.Equal(t, int32(4096), cfg.MaxOutputTokens)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: file-key\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	tests := []struct {
		name string
		body string
	}{
		{"empty model", "model: \"\"\n"},
		{"zero grid", "grid:\n  rows: 0\n"},
		{"negative padding", "grid:\n  padding: -1\n"},
		{"negative tokens", "max_output_tokens: -5\n"},
		{"empty output dir", "output_dir: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
