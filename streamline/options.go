package streamline

import (
	"fmt"
	"image/color"
	"strings"
)

// Style selects how particles and velocity magnitude are composited.
type Style int

const (
	// LightParticlesOnMagnitude draws light particles over the magnitude colormap.
	LightParticlesOnMagnitude Style = iota
	// DarkParticlesOnMagnitude draws dark particles over the magnitude colormap.
	DarkParticlesOnMagnitude
	// MagnitudeColoredParticles colours the particles themselves by magnitude
	// over a transparent background.
	MagnitudeColoredParticles
)

var styleNames = map[Style]string{
	LightParticlesOnMagnitude: "light-particles-on-magnitude",
	DarkParticlesOnMagnitude:  "dark-particles-on-magnitude",
	MagnitudeColoredParticles: "magnitude-colored-particles",
}

// Styles lists all styles in declaration order.
var Styles = []Style{LightParticlesOnMagnitude, DarkParticlesOnMagnitude, MagnitudeColoredParticles}

func (s Style) String() string {
	if name, ok := styleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

// ParseStyle parses a style name as produced by String.
func ParseStyle(name string) (Style, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range styleNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown streamline style %q", name)
}

// Options is an immutable snapshot of the visualiser configuration.
type Options struct {
	Style                 Style
	NumEliminatePerSecond float64 // particles respawned per second
	ParticleSize          float64 // sprite size in pixels
	SpeedFactor           float64 // clip units per second per physical unit
	FadeAmountPerSecond   float64 // trail alpha removed per second
	MaxDisplacement       float64 // pixels a particle may move in one sub-step
	ParticleColor         *color.NRGBA
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Style:                 LightParticlesOnMagnitude,
		NumEliminatePerSecond: 1000,
		ParticleSize:          3,
		SpeedFactor:           0.2,
		FadeAmountPerSecond:   3,
		MaxDisplacement:       1,
	}
}

// EffectiveParticleColor returns ParticleColor, or solid black. The light and
// dark styles derive their tone from it in the final pass.
func (o Options) EffectiveParticleColor() color.NRGBA {
	if o.ParticleColor != nil {
		return *o.ParticleColor
	}
	return color.NRGBA{A: 255}
}

// ToneMix is how far the light and dark styles pull the trail colour towards
// white or black before it is blended over the magnitude.
const ToneMix = 0.85

// ParticleTone returns the colour a trail of colour c is drawn with in style
// s. MagnitudeColoredParticles ignores it.
func ParticleTone(s Style, c color.NRGBA) color.NRGBA {
	var target float64
	switch s {
	case LightParticlesOnMagnitude:
		target = 255
	case DarkParticlesOnMagnitude:
		target = 0
	default:
		return c
	}
	mix := func(v uint8) uint8 {
		return uint8(float64(v)*(1-ToneMix) + target*ToneMix + 0.5)
	}
	return color.NRGBA{R: mix(c.R), G: mix(c.G), B: mix(c.B), A: c.A}
}

// OptionsPatch is a partial update. Nil fields are left unchanged.
type OptionsPatch struct {
	Style                 *Style
	NumEliminatePerSecond *float64
	ParticleSize          *float64
	SpeedFactor           *float64
	FadeAmountPerSecond   *float64
	MaxDisplacement       *float64
	ParticleColor         *color.NRGBA
	ResetParticleColor    bool
}

// Change flags the option fields modified by a patch.
type Change uint8

const (
	ChangedStyle Change = 1 << iota
	ChangedNumEliminate
	ChangedParticleSize
	ChangedSpeedFactor
	ChangedFadeAmount
	ChangedMaxDisplacement
	ChangedParticleColor
)

// Has reports whether any of the given flags are set.
func (c Change) Has(flags Change) bool { return c&flags != 0 }

// AffectsDtMin reports whether the change requires recomputing dtMin.
func (c Change) AffectsDtMin() bool {
	return c.Has(ChangedSpeedFactor | ChangedMaxDisplacement)
}

// Apply merges p into a copy of o and reports which fields actually changed.
func (o Options) Apply(p OptionsPatch) (Options, Change) {
	var changed Change

	setFloat := func(dst *float64, src *float64, flag Change) {
		if src != nil && *src != *dst {
			*dst = *src
			changed |= flag
		}
	}

	if p.Style != nil && *p.Style != o.Style {
		o.Style = *p.Style
		changed |= ChangedStyle
	}
	setFloat(&o.NumEliminatePerSecond, p.NumEliminatePerSecond, ChangedNumEliminate)
	setFloat(&o.ParticleSize, p.ParticleSize, ChangedParticleSize)
	setFloat(&o.SpeedFactor, p.SpeedFactor, ChangedSpeedFactor)
	setFloat(&o.FadeAmountPerSecond, p.FadeAmountPerSecond, ChangedFadeAmount)
	setFloat(&o.MaxDisplacement, p.MaxDisplacement, ChangedMaxDisplacement)

	switch {
	case p.ResetParticleColor:
		if o.ParticleColor != nil {
			o.ParticleColor = nil
			changed |= ChangedParticleColor
		}
	case p.ParticleColor != nil:
		if o.ParticleColor == nil || *o.ParticleColor != *p.ParticleColor {
			c := *p.ParticleColor
			o.ParticleColor = &c
			changed |= ChangedParticleColor
		}
	}

	return o, changed
}

// Validate checks option ranges.
func (o Options) Validate() error {
	switch {
	case o.NumEliminatePerSecond < 0:
		return fmt.Errorf("num_eliminate_per_second must be >= 0, got %g", o.NumEliminatePerSecond)
	case o.ParticleSize <= 0:
		return fmt.Errorf("particle_size must be > 0, got %g", o.ParticleSize)
	case o.SpeedFactor < 0:
		return fmt.Errorf("speed_factor must be >= 0, got %g", o.SpeedFactor)
	case o.FadeAmountPerSecond < 0:
		return fmt.Errorf("fade_amount_per_second must be >= 0, got %g", o.FadeAmountPerSecond)
	case o.MaxDisplacement <= 0:
		return fmt.Errorf("max_displacement must be > 0, got %g", o.MaxDisplacement)
	}
	if _, ok := styleNames[o.Style]; !ok {
		return fmt.Errorf("invalid style %d", int(o.Style))
	}
	return nil
}

// Float returns a pointer to f, for building patches.
func Float(f float64) *float64 { return &f }

// StylePtr returns a pointer to s, for building patches.
func StylePtr(s Style) *Style { return &s }
