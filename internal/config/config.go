// Package config loads slopemap settings from an optional YAML file and
// SLOPEMAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"slopemap/internal/logging"
	"slopemap/internal/slope"
)

const envPrefix = "SLOPEMAP"

const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultTimeout     = 30 * time.Second
	DefaultResolution  = 30
	DefaultDrawEpsilon = 0.001
)

// Config is the fully resolved application configuration.
type Config struct {
	Log      logging.LogConfig `mapstructure:"log"`
	Provider ProviderConfig    `mapstructure:"provider"`
	Draw     DrawConfig        `mapstructure:"draw"`
	Ranges   []slope.Range     `mapstructure:"ranges"`
}

// ProviderConfig points at the backend serving slope grids and concessions.
type ProviderConfig struct {
	// BaseURL of the backend. Empty means offline (synthetic grids only).
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Resolution int           `mapstructure:"resolution"`
	Offline    bool          `mapstructure:"offline"`
}

// DrawConfig tunes the rectangle drawer.
type DrawConfig struct {
	// Epsilon is the minimum span, in degrees, on both axes for a commit.
	Epsilon float64 `mapstructure:"epsilon"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// AutomaticEnv only resolves keys viper already knows about.
	for _, k := range []string{
		"log.level", "log.format",
		"provider.base_url", "provider.timeout", "provider.resolution", "provider.offline",
		"draw.epsilon",
	} {
		v.SetDefault(k, nil)
	}
	return v
}

// Load reads configPath when non-empty, merges environment overrides,
// applies defaults and validates.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", configPath, err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills zero-value fields. Explicit values always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{logging.DefaultOutputPath}
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = DefaultTimeout
	}
	if cfg.Provider.Resolution == 0 {
		cfg.Provider.Resolution = DefaultResolution
	}
	if cfg.Draw.Epsilon == 0 {
		cfg.Draw.Epsilon = DefaultDrawEpsilon
	}
	if len(cfg.Ranges) == 0 {
		cfg.Ranges = slope.DefaultRanges()
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Provider.Resolution < slope.MinResolution || c.Provider.Resolution > slope.MaxResolution {
		errs = append(errs, fmt.Errorf("provider.resolution must be in [%d,%d], got %d",
			slope.MinResolution, slope.MaxResolution, c.Provider.Resolution))
	}
	if c.Provider.Timeout < 0 {
		errs = append(errs, fmt.Errorf("provider.timeout must not be negative"))
	}
	if c.Draw.Epsilon < 0 {
		errs = append(errs, fmt.Errorf("draw.epsilon must not be negative"))
	}
	if len(c.Ranges) < slope.MinRanges {
		errs = append(errs, fmt.Errorf("ranges: need at least %d entries, got %d", slope.MinRanges, len(c.Ranges)))
	}
	if c.Provider.BaseURL != "" &&
		!strings.HasPrefix(c.Provider.BaseURL, "http://") && !strings.HasPrefix(c.Provider.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("provider.base_url must be http(s), got %q", c.Provider.BaseURL))
	}
	return errors.Join(errs...)
}
