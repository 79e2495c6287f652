package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/streamflow/config"
)

func TestParamVectorRoundTrip(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()
	raw := pv.ExtractFromConfig(cfg)
	if len(raw) != pv.Dim() {
		t.Fatalf("expected %d values, got %d", pv.Dim(), len(raw))
	}

	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-9 {
			t.Errorf("%s: expected %v, got %v", pv.Specs[i].Name, raw[i], back[i])
		}
	}

	pv.ApplyToConfig(cfg, []float64{100, 0, 1000})
	if cfg.Visualiser.FadeAmountPerSecond != 10 || cfg.Visualiser.ParticleSize != 1 {
		t.Errorf("expected values clamped to bounds, got fade=%v size=%v",
			cfg.Visualiser.FadeAmountPerSecond, cfg.Visualiser.ParticleSize)
	}
	if cfg.Visualiser.NumEliminatePerSecond != 1000 {
		t.Errorf("expected elimination rate 1000, got %v", cfg.Visualiser.NumEliminatePerSecond)
	}
}

func TestRelErr(t *testing.T) {
	tests := []struct {
		got, want, expected float64
	}{
		{0.25, 0.25, 0},
		{0.5, 0.25, 1},
		{0, 0.5, 1},
		{0.1, 0, 0.01},
	}
	for _, tt := range tests {
		if r := relErr(tt.got, tt.want); math.Abs(r-tt.expected) > 1e-12 {
			t.Errorf("relErr(%v, %v) = %v, want %v", tt.got, tt.want, r, tt.expected)
		}
	}
}
