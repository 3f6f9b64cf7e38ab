// Package config loads markpane settings from defaults, an optional YAML
// or TOML file and MARKPANE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for a config file whose extension is not
// .yaml, .yml or .toml.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Duration is a time.Duration written as a string such as "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the complete set of settings.
type Config struct {
	Render      Render              `yaml:"render" toml:"render"`
	Scroll      Scroll              `yaml:"scroll" toml:"scroll"`
	Locate      Locate              `yaml:"locate" toml:"locate"`
	Layout      Layout              `yaml:"layout" toml:"layout"`
	Breaker     Breaker             `yaml:"breaker" toml:"breaker"`
	Rasterizers map[string][]string `yaml:"rasterizers" toml:"rasterizers" validate:"dive,keys,oneof=diagram chart,endkeys,min=1"`
	Store       Store               `yaml:"store" toml:"store"`
	Log         Log                 `yaml:"log" toml:"log"`
	Metrics     Metrics             `yaml:"metrics" toml:"metrics"`
}

// Render configures the render scheduler.
type Render struct {
	Debounce           Duration `yaml:"debounce" toml:"debounce" validate:"gte=0"`
	LargeEditThreshold int      `yaml:"large_edit_threshold" toml:"large_edit_threshold" validate:"gte=0"`
	MaxParallel        int      `yaml:"max_parallel" toml:"max_parallel" validate:"gte=1,lte=64"`
	CacheSize          int      `yaml:"cache_size" toml:"cache_size" validate:"gte=1"`
	ImageCacheSize     int      `yaml:"image_cache_size" toml:"image_cache_size" validate:"gte=1"`
	RasterizeTimeout   Duration `yaml:"rasterize_timeout" toml:"rasterize_timeout" validate:"gt=0"`
	CodeStyle          string   `yaml:"code_style" toml:"code_style" validate:"required"`
}

// Scroll configures the scroll synchronizer.
type Scroll struct {
	Mode  string   `yaml:"mode" toml:"mode" validate:"oneof=fraction anchored"`
	Guard Duration `yaml:"guard" toml:"guard" validate:"gte=0"`
	Flash Duration `yaml:"flash" toml:"flash" validate:"gte=0"`
}

// Locate configures the selection locator.
type Locate struct {
	HighlightDuration Duration `yaml:"highlight_duration" toml:"highlight_duration" validate:"gt=0"`
}

// Layout is the preview geometry.
type Layout struct {
	LineHeight float64 `yaml:"line_height" toml:"line_height" validate:"gt=0"`
	BlockGap   float64 `yaml:"block_gap" toml:"block_gap" validate:"gte=0"`
	Indent     int     `yaml:"indent" toml:"indent" validate:"gte=0"`
}

// Breaker configures the circuit breaker around external rasterizers.
type Breaker struct {
	ConsecutiveFails uint32   `yaml:"consecutive_fails" toml:"consecutive_fails" validate:"gte=1"`
	OpenTimeout      Duration `yaml:"open_timeout" toml:"open_timeout" validate:"gt=0"`
}

// Store locates the diagram transform database. An empty path disables it.
type Store struct {
	Path string `yaml:"path" toml:"path"`
}

// Log configures logging. Logs go to File, never to the terminal the
// preview draws on.
type Log struct {
	Level string `yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file" toml:"file"`
}

// Metrics configures the Prometheus endpoint. An empty address disables it.
type Metrics struct {
	Addr string `yaml:"addr" toml:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Render: Render{
			Debounce:           Duration{250 * time.Millisecond},
			LargeEditThreshold: 50,
			MaxParallel:        4,
			CacheSize:          128,
			ImageCacheSize:     64,
			RasterizeTimeout:   Duration{10 * time.Second},
			CodeStyle:          "github",
		},
		Scroll: Scroll{
			Mode:  "fraction",
			Guard: Duration{300 * time.Millisecond},
			Flash: Duration{time.Second},
		},
		Locate:      Locate{HighlightDuration: Duration{1500 * time.Millisecond}},
		Layout:      Layout{LineHeight: 1, BlockGap: 1, Indent: 2},
		Breaker:     Breaker{ConsecutiveFails: 3, OpenTimeout: Duration{30 * time.Second}},
		Rasterizers: map[string][]string{},
		Log:         Log{Level: "info"},
	}
}

// Load reads the file at path, if path is not empty, over the defaults and
// applies environment overrides.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", describe(path), err)
	}
	return cfg, nil
}

func describe(path string) string {
	if path == "" {
		return "<defaults>"
	}
	return path
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// envPrefix starts every environment override.
const envPrefix = "MARKPANE_"

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SCROLL_MODE":  &c.Scroll.Mode,
		"LOG_LEVEL":    &c.Log.Level,
		"LOG_FILE":     &c.Log.File,
		"METRICS_ADDR": &c.Metrics.Addr,
		"STORE":        &c.Store.Path,
		"CODE_STYLE":   &c.Render.CodeStyle,
	}
	for name, dst := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	durations := map[string]*Duration{
		"DEBOUNCE":     &c.Render.Debounce,
		"SCROLL_GUARD": &c.Scroll.Guard,
	}
	for name, dst := range durations {
		if v, ok := lookup(envPrefix + name); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
		}
	}
	if v, ok := lookup(envPrefix + "LARGE_EDIT_THRESHOLD"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sLARGE_EDIT_THRESHOLD: %w", envPrefix, err)
		}
		c.Render.LargeEditThreshold = n
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
		return int64(f.Interface().(Duration).Duration)
	}, Duration{})
	return v
}

// Validate checks every setting against its allowed range.
func (c *Config) Validate() error {
	return validate.Struct(c)
}
