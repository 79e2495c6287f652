// Package streamline animates particles advected through a 2D velocity field
// and composites their fading trails over the field's magnitude.
package streamline

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/velocity"
)

// FrameStats describes the work done by the last RenderFrame call.
type FrameStats struct {
	Substeps     int
	Step         float64 // seconds per sub-step
	DtMin        float64
	Fade         float64 // requested fade per sub-step
	DitheredFade int     // sub-steps whose fade was dithered
	AppliedFade  int     // sub-steps that actually faded
}

// Visualiser orchestrates propagation, sprite drawing, trail fading and
// compositing. It is not safe for concurrent use; every method must be called
// from the goroutine that owns the graphics context.
type Visualiser struct {
	backend Backend
	rng     *rand.Rand

	opts         Options
	width        int
	height       int
	numParticles int
	velocity     *velocity.Image
	colormap     *colormap.Colormap
	dtMin        float64

	initialised bool
	running     bool

	propagator Propagator
	particles  ParticleRenderer
	textures   TextureRenderer
	final      FinalRenderer
	trails     *PingPong[Trail]

	stats FrameStats
}

// New creates an uninitialised visualiser. A nil rng is seeded from the clock.
func New(backend Backend, width, height, numParticles int, opts Options, rng *rand.Rand) (*Visualiser, error) {
	if backend == nil {
		return nil, fmt.Errorf("streamline: nil backend")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("streamline: invalid dimensions %dx%d", width, height)
	}
	if numParticles <= 0 {
		return nil, fmt.Errorf("streamline: invalid particle count %d", numParticles)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("streamline: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Visualiser{
		backend:      backend,
		rng:          rng,
		opts:         opts,
		width:        width,
		height:       height,
		numParticles: numParticles,
		dtMin:        math.Inf(1),
	}, nil
}

// Initialise builds all components and zero-filled trails.
func (v *Visualiser) Initialise(cm *colormap.Colormap) {
	if v.initialised {
		panic("streamline: Initialise called twice")
	}
	if cm == nil {
		panic("streamline: Initialise with nil colormap")
	}
	v.colormap = cm

	v.propagator = v.backend.NewPropagator(v.numParticles, v.width, v.height)
	v.propagator.SetSpeedFactor(v.opts.SpeedFactor)
	v.propagator.SetNumEliminatePerSecond(v.opts.NumEliminatePerSecond)
	v.propagator.Initialise()

	v.particles = v.backend.NewParticleRenderer(v.numParticles, v.width, v.height)
	v.particles.SetParticleSize(v.opts.ParticleSize)
	v.particles.SetParticleColor(v.opts.EffectiveParticleColor())

	v.textures = v.backend.NewTextureRenderer(v.width, v.height)

	v.final = v.backend.NewFinalRenderer(cm, v.width, v.height)
	v.final.SetStyle(v.opts.Style)

	v.trails = v.newTrails()

	if v.velocity != nil {
		v.propagator.SetVelocityImage(v.velocity)
		v.final.SetVelocityImage(v.velocity)
	}
	v.initialised = true
}

func (v *Visualiser) newTrails() *PingPong[Trail] {
	a := v.backend.NewTrail(v.width, v.height)
	b := v.backend.NewTrail(v.width, v.height)
	a.Clear()
	b.Clear()
	return NewPingPong(a, b)
}

// Start enables animation.
func (v *Visualiser) Start() { v.running = true }

// Stop disables animation. The trails are kept so Present can still show the
// last frame.
func (v *Visualiser) Stop() { v.running = false }

// IsRunning reports whether RenderFrame advances the animation.
func (v *Visualiser) IsRunning() bool { return v.running }

// IsInitialised reports whether Initialise has been called.
func (v *Visualiser) IsInitialised() bool { return v.initialised }

// HasVelocity reports whether a velocity image has been set.
func (v *Visualiser) HasVelocity() bool { return v.velocity != nil }

// Destruct releases every component. The visualiser returns to the
// uninitialised state and may be initialised again.
func (v *Visualiser) Destruct() {
	if !v.initialised {
		return
	}
	v.propagator.Unload()
	v.particles.Unload()
	v.textures.Unload()
	v.final.Unload()
	v.trails.Each(func(t Trail) { t.Unload() })

	v.propagator, v.particles, v.textures, v.final, v.trails = nil, nil, nil, nil, nil
	v.initialised = false
	v.running = false
}

// RenderFrame advances the animation by dt seconds and composites the result.
func (v *Visualiser) RenderFrame(dt float64, scaling Scaling) {
	if !v.initialised {
		panic("streamline: RenderFrame called before Initialise")
	}
	if !v.running || v.velocity == nil {
		return
	}

	n, step := Substeps(dt, v.dtMin)
	v.stats = FrameStats{Substeps: n, Step: step, DtMin: v.dtMin}
	if n == 0 {
		v.final.Render(v.trails.Write(), scaling)
		return
	}

	fadeAmount := v.opts.FadeAmountPerSecond * step
	v.stats.Fade = fadeAmount

	// The previous frame's freshest trail becomes the read side.
	v.trails.Swap()
	for i := 0; i < n; i++ {
		fade, dithered := EffectiveFade(fadeAmount, v.rng)
		if dithered {
			v.stats.DitheredFade++
		}
		if fade > 0 {
			v.stats.AppliedFade++
		}
		v.textures.Render(v.trails.Read(), fade, v.trails.Write())
		v.propagator.Update(step)
		v.particles.Render(v.propagator.Positions(), v.trails.Write())
		if i < n-1 {
			v.trails.Swap()
		}
	}
	v.final.Render(v.trails.Write(), scaling)
}

// Present composites the current trail without advancing the animation.
func (v *Visualiser) Present(scaling Scaling) {
	if !v.initialised {
		panic("streamline: Present called before Initialise")
	}
	if v.velocity == nil {
		return
	}
	v.final.Render(v.trails.Write(), scaling)
}

// SetVelocityImage replaces the velocity field. With resetParticles the
// particles are reseeded and the trails cleared.
func (v *Visualiser) SetVelocityImage(img *velocity.Image, resetParticles bool) {
	if img == nil {
		panic("streamline: nil velocity image")
	}
	v.velocity = img
	v.updateDtMin()
	if !v.initialised {
		return
	}
	v.propagator.SetVelocityImage(img)
	v.final.SetVelocityImage(img)
	if resetParticles {
		v.propagator.Initialise()
		v.trails.Each(func(t Trail) { t.Clear() })
	}
}

// SetDimensions resizes every size-dependent resource.
func (v *Visualiser) SetDimensions(width, height int) {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("streamline: invalid dimensions %dx%d", width, height))
	}
	if width == v.width && height == v.height {
		return
	}
	v.width, v.height = width, height
	v.updateDtMin()
	if !v.initialised {
		return
	}
	v.propagator.SetDimensions(width, height)
	v.particles.SetDimensions(width, height)
	v.final.SetDimensions(width, height)
	v.textures.Unload()
	v.textures = v.backend.NewTextureRenderer(width, height)
	v.trails.Each(func(t Trail) { t.Unload() })
	v.trails = v.newTrails()
}

// SetNumParticles changes the particle count; the particles are reseeded.
func (v *Visualiser) SetNumParticles(n int) {
	if n <= 0 {
		panic(fmt.Sprintf("streamline: invalid particle count %d", n))
	}
	if n == v.numParticles {
		return
	}
	v.numParticles = n
	if !v.initialised {
		return
	}
	v.propagator.SetNumParticles(n)
	v.particles.SetNumParticles(n)
	v.trails.Each(func(t Trail) { t.Clear() })
}

// SetColormap replaces the magnitude colormap.
func (v *Visualiser) SetColormap(cm *colormap.Colormap) {
	if cm == nil {
		panic("streamline: nil colormap")
	}
	v.colormap = cm
	if v.initialised {
		v.final.SetColormap(cm)
	}
}

// UpdateOptions merges a partial update and forwards what changed.
func (v *Visualiser) UpdateOptions(p OptionsPatch) error {
	next, changed := v.opts.Apply(p)
	if changed == 0 {
		return nil
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("streamline: %w", err)
	}
	v.opts = next
	if changed.AffectsDtMin() {
		v.updateDtMin()
	}
	if !v.initialised {
		return nil
	}
	if changed.Has(ChangedSpeedFactor) {
		v.propagator.SetSpeedFactor(next.SpeedFactor)
	}
	if changed.Has(ChangedNumEliminate) {
		v.propagator.SetNumEliminatePerSecond(next.NumEliminatePerSecond)
	}
	if changed.Has(ChangedParticleSize) {
		v.particles.SetParticleSize(next.ParticleSize)
	}
	if changed.Has(ChangedParticleColor) {
		v.particles.SetParticleColor(next.EffectiveParticleColor())
	}
	if changed.Has(ChangedStyle) {
		v.final.SetStyle(next.Style)
	}
	return nil
}

func (v *Visualiser) updateDtMin() {
	if v.velocity == nil {
		v.dtMin = math.Inf(1)
		return
	}
	maxU, maxV := v.velocity.MaxVelocity()
	v.dtMin = DtMin(v.opts.MaxDisplacement, v.width, v.height, maxU, maxV, v.opts.SpeedFactor)
}

// DtMin returns the largest sub-step that keeps displacement within
// MaxDisplacement pixels.
func (v *Visualiser) DtMin() float64 { return v.dtMin }

// Options returns the current option snapshot.
func (v *Visualiser) Options() Options { return v.opts }

// Dimensions returns the render size in pixels.
func (v *Visualiser) Dimensions() (int, int) { return v.width, v.height }

// Colormap returns the magnitude colormap, nil before Initialise.
func (v *Visualiser) Colormap() *colormap.Colormap { return v.colormap }

// NumParticles returns the requested particle count.
func (v *Visualiser) NumParticles() int { return v.numParticles }

// Stats returns statistics of the last advancing frame.
func (v *Visualiser) Stats() FrameStats { return v.stats }
