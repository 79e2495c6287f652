package streamline

import (
	"image/color"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/velocity"
)

// Positions is an opaque handle to the particle position buffer produced by a
// Propagator. Only the backend that created it can interpret it.
type Positions any

// Trail is an offscreen RGBA target holding the fading particle trails.
type Trail interface {
	Clear()
	Unload()
}

// Propagator advances particles through the velocity field.
type Propagator interface {
	// Initialise (re)seeds all positions uniformly in the clip square.
	Initialise()
	SetVelocityImage(img *velocity.Image)
	SetDimensions(width, height int)
	SetNumParticles(n int)
	SetSpeedFactor(f float64)
	SetNumEliminatePerSecond(n float64)
	// Update swaps the position buffers and integrates one sub-step of dt
	// seconds into the new write buffer.
	Update(dt float64)
	// Positions returns the most recently written buffer.
	Positions() Positions
	NumParticles() int
	Unload()
}

// ParticleRenderer draws one sprite per particle into a trail.
type ParticleRenderer interface {
	SetDimensions(width, height int)
	SetNumParticles(n int)
	SetParticleSize(pixels float64)
	SetParticleColor(c color.NRGBA)
	Render(pos Positions, dst Trail)
	Unload()
}

// TextureRenderer copies a trail while reducing its alpha by fade. A nil
// destination renders to the screen.
type TextureRenderer interface {
	Render(src Trail, fade float64, dst Trail)
	Unload()
}

// FinalRenderer composites the velocity magnitude and the trail to the screen.
type FinalRenderer interface {
	SetDimensions(width, height int)
	SetVelocityImage(img *velocity.Image)
	SetColormap(cm *colormap.Colormap)
	SetStyle(s Style)
	Render(trail Trail, scaling Scaling)
	Unload()
}

// Backend creates the rendering components for one graphics implementation.
type Backend interface {
	NewPropagator(numParticles, width, height int) Propagator
	NewParticleRenderer(numParticles, width, height int) ParticleRenderer
	NewTextureRenderer(width, height int) TextureRenderer
	NewFinalRenderer(cm *colormap.Colormap, width, height int) FinalRenderer
	NewTrail(width, height int) Trail
}
