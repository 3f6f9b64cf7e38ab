package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsValid(t *testing.T) {
	cfg, err := LoadWithEnv("", noEnv)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Render.Debounce.Duration)
	assert.Equal(t, 50, cfg.Render.LargeEditThreshold)
	assert.Equal(t, 128, cfg.Render.CacheSize)
	assert.Equal(t, "fraction", cfg.Scroll.Mode)
	assert.Equal(t, 300*time.Millisecond, cfg.Scroll.Guard.Duration)
	assert.Equal(t, 1500*time.Millisecond, cfg.Locate.HighlightDuration.Duration)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "markpane.yaml", `
render:
  debounce: 100ms
  max_parallel: 8
scroll:
  mode: anchored
rasterizers:
  diagram: [dot, -Tsvg]
log:
  level: debug
  file: /tmp/markpane.log
`)
	cfg, err := LoadWithEnv(path, noEnv)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, cfg.Render.Debounce.Duration)
	assert.Equal(t, 8, cfg.Render.MaxParallel)
	assert.Equal(t, 50, cfg.Render.LargeEditThreshold, "unset keys keep defaults")
	assert.Equal(t, "anchored", cfg.Scroll.Mode)
	assert.Equal(t, []string{"dot", "-Tsvg"}, cfg.Rasterizers["diagram"])
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/markpane.log", cfg.Log.File)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "markpane.toml", `
[render]
debounce = "400ms"
code_style = "monokai"

[locate]
highlight_duration = "2s"

[metrics]
addr = "localhost:9464"
`)
	cfg, err := LoadWithEnv(path, noEnv)
	require.NoError(t, err)
	assert.Equal(t, 400*time.Millisecond, cfg.Render.Debounce.Duration)
	assert.Equal(t, "monokai", cfg.Render.CodeStyle)
	assert.Equal(t, 2*time.Second, cfg.Locate.HighlightDuration.Duration)
	assert.Equal(t, "localhost:9464", cfg.Metrics.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "markpane.yaml", "scroll:\n  mode: anchored\n")
	cfg, err := LoadWithEnv(path, env(map[string]string{
		"MARKPANE_SCROLL_MODE":          "fraction",
		"MARKPANE_DEBOUNCE":             "1s",
		"MARKPANE_LARGE_EDIT_THRESHOLD": "10",
		"MARKPANE_STORE":                "/var/tmp/state.db",
	}))
	require.NoError(t, err)
	assert.Equal(t, "fraction", cfg.Scroll.Mode)
	assert.Equal(t, time.Second, cfg.Render.Debounce.Duration)
	assert.Equal(t, 10, cfg.Render.LargeEditThreshold)
	assert.Equal(t, "/var/tmp/state.db", cfg.Store.Path)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		env  map[string]string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.yaml") }, nil},
		{"bad mode", func(t *testing.T) string { return writeFile(t, "c.yaml", "scroll:\n  mode: sideways\n") }, nil},
		{"bad duration", func(t *testing.T) string { return writeFile(t, "c.toml", "[render]\ndebounce = \"soon\"\n") }, nil},
		{"negative duration", func(t *testing.T) string { return writeFile(t, "c.yaml", "scroll:\n  guard: -1s\n") }, nil},
		{"zero parallel", func(t *testing.T) string { return writeFile(t, "c.yaml", "render:\n  max_parallel: 0\n") }, nil},
		{"unknown rasterizer kind", func(t *testing.T) string { return writeFile(t, "c.yaml", "rasterizers:\n  table: [x]\n") }, nil},
		{"bad env", func(*testing.T) string { return "" }, map[string]string{"MARKPANE_LARGE_EDIT_THRESHOLD": "many"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadWithEnv(tc.path(t), env(tc.env))
			assert.Error(t, err)
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "markpane.json", "{}")
	_, err := LoadWithEnv(path, noEnv)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
