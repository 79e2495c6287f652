// Package config provides configuration loading and access for the viewer.
package config

import (
	_ "embed"
	"fmt"
	"image/color"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/streamline"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Service    ServiceConfig    `yaml:"service"`
	Layer      LayerConfig      `yaml:"layer"`
	Visualiser VisualiserConfig `yaml:"visualiser"`
	GPU        GPUConfig        `yaml:"gpu"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	TargetFPS int    `yaml:"target_fps"`
	Title     string `yaml:"title"`
}

// ServiceConfig selects and configures the data service.
type ServiceConfig struct {
	Kind           string  `yaml:"kind"`      // "http" or "directory"
	URL            string  `yaml:"url"`       // base URL for kind=http
	Directory      string  `yaml:"directory"` // root for kind=directory
	Quantity       string  `yaml:"quantity"`  // layer name, e.g. "sea_water_velocity"
	RasterStyle    string  `yaml:"raster_style"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// LayerConfig holds the initial layer state.
type LayerConfig struct {
	NumParticles    int      `yaml:"num_particles"`
	TimeIndex       int      `yaml:"time_index"`
	Elevation       *float64 `yaml:"elevation"`
	ValueMin        *float64 `yaml:"value_min"`
	ValueMax        *float64 `yaml:"value_max"`
	DebounceSeconds float64  `yaml:"debounce_seconds"`
	// Initial view in degrees.
	West  float64 `yaml:"west"`
	South float64 `yaml:"south"`
	East  float64 `yaml:"east"`
	North float64 `yaml:"north"`
}

// VisualiserConfig holds the streamline options.
type VisualiserConfig struct {
	Style                 string  `yaml:"style"`
	NumEliminatePerSecond float64 `yaml:"num_eliminate_per_second"`
	ParticleSize          float64 `yaml:"particle_size"`
	SpeedFactor           float64 `yaml:"speed_factor"`
	FadeAmountPerSecond   float64 `yaml:"fade_amount_per_second"`
	MaxDisplacement       float64 `yaml:"max_displacement"`
	ParticleColor         string  `yaml:"particle_color"` // "" = style default
	Seed                  int64   `yaml:"seed"`           // 0 = clock
}

// GPUConfig holds GPU resource settings.
type GPUConfig struct {
	ColormapSamples     int  `yaml:"colormap_samples"`
	SpriteSize          int  `yaml:"sprite_size"`
	InterpolateVelocity bool `yaml:"interpolate_velocity"`
}

// TelemetryConfig holds performance logging settings.
type TelemetryConfig struct {
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	LogIntervalSeconds  float64 `yaml:"log_interval_seconds"`
	CSVPath             string  `yaml:"csv_path"` // "" disables CSV output
}

// DerivedConfig holds values computed from the loaded configuration.
type DerivedConfig struct {
	Style         streamline.Style
	ParticleColor *color.NRGBA
	ScreenW32     float32
	ScreenH32     float32
}

var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	if err := cfg.Options().Validate(); err != nil {
		return nil, fmt.Errorf("visualiser: %w", err)
	}
	return cfg, nil
}

func (c *Config) computeDerived() error {
	style, err := streamline.ParseStyle(c.Visualiser.Style)
	if err != nil {
		return fmt.Errorf("visualiser.style: %w", err)
	}
	c.Derived.Style = style

	c.Derived.ParticleColor = nil
	if c.Visualiser.ParticleColor != "" {
		col, err := colormap.ParseColor(c.Visualiser.ParticleColor)
		if err != nil {
			return fmt.Errorf("visualiser.particle_color: %w", err)
		}
		c.Derived.ParticleColor = &col
	}

	if c.Layer.NumParticles <= 0 {
		return fmt.Errorf("layer.num_particles must be > 0, got %d", c.Layer.NumParticles)
	}
	if c.GPU.ColormapSamples < 2 {
		return fmt.Errorf("gpu.colormap_samples must be >= 2, got %d", c.GPU.ColormapSamples)
	}

	c.Derived.ScreenW32 = float32(c.Screen.Width)
	c.Derived.ScreenH32 = float32(c.Screen.Height)
	return nil
}

// Options returns the visualiser options described by the configuration.
func (c *Config) Options() streamline.Options {
	return streamline.Options{
		Style:                 c.Derived.Style,
		NumEliminatePerSecond: c.Visualiser.NumEliminatePerSecond,
		ParticleSize:          c.Visualiser.ParticleSize,
		SpeedFactor:           c.Visualiser.SpeedFactor,
		FadeAmountPerSecond:   c.Visualiser.FadeAmountPerSecond,
		MaxDisplacement:       c.Visualiser.MaxDisplacement,
		ParticleColor:         c.Derived.ParticleColor,
	}
}

// InitialView returns the configured starting view.
func (c *Config) InitialView() streamline.GeoBoundingBox {
	return streamline.GeoBoundingBox{
		West:  c.Layer.West,
		South: c.Layer.South,
		East:  c.Layer.East,
		North: c.Layer.North,
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
