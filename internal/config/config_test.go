package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slopemap/internal/slope"
)

const sampleYAML = `
log:
  level: debug
  format: console
  output_paths: ["/tmp/slopemap-test.log"]
provider:
  base_url: "http://localhost:8000"
  timeout: 5s
  resolution: 40
draw:
  epsilon: 0.002
ranges:
  - {min: 0, max: 10, color: "#00ff00", label: "0 – 10%"}
  - {min: 10, max: 50, color: "#ff0000", label: "10 – 50%"}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slopemap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "http://localhost:8000", cfg.Provider.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 40, cfg.Provider.Resolution)
	assert.InDelta(t, 0.002, cfg.Draw.Epsilon, 1e-12)
	require.Len(t, cfg.Ranges, 2)
	assert.Equal(t, slope.Range{Min: 10, Max: 50, Color: "#ff0000", Label: "10 – 50%"}, cfg.Ranges[1])
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultTimeout, cfg.Provider.Timeout)
	assert.Equal(t, DefaultResolution, cfg.Provider.Resolution)
	assert.InDelta(t, DefaultDrawEpsilon, cfg.Draw.Epsilon, 1e-12)
	assert.Equal(t, slope.DefaultRanges(), cfg.Ranges)
	assert.Empty(t, cfg.Provider.BaseURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SLOPEMAP_PROVIDER_RESOLUTION", "55")
	t.Setenv("SLOPEMAP_PROVIDER_BASE_URL", "https://dem.example.org")
	t.Setenv("SLOPEMAP_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 55, cfg.Provider.Resolution)
	assert.Equal(t, "https://dem.example.org", cfg.Provider.BaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"resolution too small", func(c *Config) { c.Provider.Resolution = 2 }},
		{"resolution too large", func(c *Config) { c.Provider.Resolution = 101 }},
		{"negative epsilon", func(c *Config) { c.Draw.Epsilon = -1 }},
		{"one range", func(c *Config) { c.Ranges = c.Ranges[:1] }},
		{"bad scheme", func(c *Config) { c.Provider.BaseURL = "ftp://x" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			ApplyDefaults(cfg)
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
