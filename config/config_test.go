package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/streamflow/streamline"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	opts := cfg.Options()
	want := streamline.DefaultOptions()
	if opts.Style != want.Style || opts.SpeedFactor != want.SpeedFactor ||
		opts.FadeAmountPerSecond != want.FadeAmountPerSecond ||
		opts.NumEliminatePerSecond != want.NumEliminatePerSecond ||
		opts.ParticleSize != want.ParticleSize || opts.MaxDisplacement != want.MaxDisplacement {
		t.Errorf("expected defaults to match streamline.DefaultOptions, got %+v", opts)
	}
	if opts.ParticleColor != nil {
		t.Errorf("expected no particle colour override, got %v", *opts.ParticleColor)
	}
	if cfg.Layer.Elevation != nil {
		t.Errorf("expected no default elevation, got %v", *cfg.Layer.Elevation)
	}
	if cfg.GPU.ColormapSamples != 256 {
		t.Errorf("expected 256 colormap samples, got %d", cfg.GPU.ColormapSamples)
	}
}

func TestOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.yaml")
	data := []byte("visualiser:\n  style: magnitude-colored-particles\n  particle_color: \"#ff0000\"\nlayer:\n  elevation: -5\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Derived.Style != streamline.MagnitudeColoredParticles {
		t.Errorf("expected overlaid style, got %v", cfg.Derived.Style)
	}
	if c := cfg.Derived.ParticleColor; c == nil || c.R != 255 || c.G != 0 {
		t.Errorf("expected red particle colour, got %v", c)
	}
	if cfg.Layer.Elevation == nil || *cfg.Layer.Elevation != -5 {
		t.Errorf("expected elevation -5, got %v", cfg.Layer.Elevation)
	}
	// Untouched fields keep their defaults.
	if cfg.Visualiser.SpeedFactor != 0.2 {
		t.Errorf("expected default speed factor, got %v", cfg.Visualiser.SpeedFactor)
	}
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"style", "visualiser:\n  style: sparkles\n"},
		{"colour", "visualiser:\n  particle_color: \"#zz\"\n"},
		{"particles", "layer:\n  num_particles: 0\n"},
		{"size", "visualiser:\n  particle_size: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatal(err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Options().Style != cfg.Options().Style || again.Screen != cfg.Screen {
		t.Errorf("expected round trip to preserve config")
	}
}
