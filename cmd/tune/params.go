// Package main provides CMA-ES tuning of the streamline options against a
// target trail density.
package main

import (
	"github.com/pthm-cable/streamflow/config"
)

// ParamSpec is one tunable visualiser option and its search interval.
type ParamSpec struct {
	Name     string
	Path     string // YAML key in config.yaml
	Min, Max float64

	get func(*config.VisualiserConfig) float64
	set func(*config.VisualiserConfig, float64)
}

func (s ParamSpec) clamp(v float64) float64 {
	return min(max(v, s.Min), s.Max)
}

// ParamVector is the search space. The optimiser sees every parameter
// scaled to [0, 1].
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector returns the options that shape trail density.
func NewParamVector() *ParamVector {
	return &ParamVector{Specs: []ParamSpec{
		{
			Name: "fade_amount_per_second", Path: "visualiser.fade_amount_per_second", Min: 0.2, Max: 10,
			get: func(v *config.VisualiserConfig) float64 { return v.FadeAmountPerSecond },
			set: func(v *config.VisualiserConfig, x float64) { v.FadeAmountPerSecond = x },
		},
		{
			Name: "particle_size", Path: "visualiser.particle_size", Min: 1, Max: 8,
			get: func(v *config.VisualiserConfig) float64 { return v.ParticleSize },
			set: func(v *config.VisualiserConfig, x float64) { v.ParticleSize = x },
		},
		{
			Name: "num_eliminate_per_second", Path: "visualiser.num_eliminate_per_second", Min: 0, Max: 5000,
			get: func(v *config.VisualiserConfig) float64 { return v.NumEliminatePerSecond },
			set: func(v *config.VisualiserConfig, x float64) { v.NumEliminatePerSecond = x },
		},
	}}
}

func (pv *ParamVector) Dim() int { return len(pv.Specs) }

// each maps f over xs paired with the specs.
func (pv *ParamVector) each(xs []float64, f func(ParamSpec, float64) float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, s := range pv.Specs {
		out[i] = f(s, xs[i])
	}
	return out
}

// Normalize maps raw values onto [0, 1].
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	return pv.each(raw, func(s ParamSpec, x float64) float64 { return (x - s.Min) / (s.Max - s.Min) })
}

// Denormalize is the inverse of Normalize.
func (pv *ParamVector) Denormalize(unit []float64) []float64 {
	return pv.each(unit, func(s ParamSpec, u float64) float64 { return s.Min + u*(s.Max-s.Min) })
}

// Clamp limits each value to its interval.
func (pv *ParamVector) Clamp(raw []float64) []float64 {
	return pv.each(raw, func(s ParamSpec, x float64) float64 { return s.clamp(x) })
}

// ApplyToConfig writes clamped values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i, s := range pv.Specs {
		s.set(&cfg.Visualiser, s.clamp(values[i]))
	}
}

// ExtractFromConfig reads the current values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, s := range pv.Specs {
		out[i] = s.get(&cfg.Visualiser)
	}
	return out
}
