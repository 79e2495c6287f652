package renderer

import (
	"fmt"
	"math/rand"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/config"
	"github.com/pthm-cable/streamflow/sprite"
	"github.com/pthm-cable/streamflow/streamline"
)

// Backend owns the compiled programs and the sprite texture shared by the
// GPU components. It requires an open raylib window.
type Backend struct {
	rng *rand.Rand

	update   *program
	particle *program
	fade     *program
	final    *program

	sprite rl.Texture2D

	colormapSamples int
	interpolate     bool
}

// NewBackend compiles all programs and uploads the particle sprite.
func NewBackend(rng *rand.Rand) (*Backend, error) {
	cfg := config.Cfg().GPU
	b := &Backend{
		rng:             rng,
		colormapSamples: cfg.ColormapSamples,
		interpolate:     cfg.InterpolateVelocity,
	}

	var err error
	load := func(dst **program, vs, fs string) {
		if err != nil {
			return
		}
		*dst, err = loadProgram(vs, fs)
	}
	load(&b.update, "", "update.fs")
	load(&b.particle, "particle.vs", "particle.fs")
	load(&b.fade, "", "fade.fs")
	load(&b.final, "", "final.fs")
	if err != nil {
		b.Unload()
		return nil, fmt.Errorf("loading shaders: %w", err)
	}

	img, err := sprite.Circle(cfg.SpriteSize)
	if err != nil {
		b.Unload()
		return nil, err
	}
	b.sprite = imageTexture(img, rl.FilterBilinear)
	return b, nil
}

// NewPropagator implements streamline.Backend.
func (b *Backend) NewPropagator(numParticles, width, height int) streamline.Propagator {
	return &Propagator{
		program:      b.update,
		rng:          b.rng,
		eliminator:   streamline.NewEliminator(b.rng),
		interpolate:  b.interpolate,
		numParticles: numParticles,
		width:        width,
		height:       height,
		speedFactor:  1,
	}
}

// NewParticleRenderer implements streamline.Backend.
func (b *Backend) NewParticleRenderer(numParticles, width, height int) streamline.ParticleRenderer {
	return newParticleRenderer(b.particle, b.sprite, numParticles, width, height)
}

// NewTextureRenderer implements streamline.Backend.
func (b *Backend) NewTextureRenderer(width, height int) streamline.TextureRenderer {
	return &TextureRenderer{program: b.fade, width: int32(width), height: int32(height)}
}

// NewFinalRenderer implements streamline.Backend.
func (b *Backend) NewFinalRenderer(cm *colormap.Colormap, width, height int) streamline.FinalRenderer {
	return newFinalRenderer(b.final, cm, b.colormapSamples, b.interpolate, width, height)
}

// NewTrail implements streamline.Backend.
func (b *Backend) NewTrail(width, height int) streamline.Trail {
	return newTrail(width, height)
}

// Unload releases the programs and the sprite. Components created by the
// backend must be unloaded first.
func (b *Backend) Unload() {
	for _, p := range []*program{b.update, b.particle, b.fade, b.final} {
		if p != nil {
			p.unload()
		}
	}
	b.update, b.particle, b.fade, b.final = nil, nil, nil, nil
	if b.sprite.ID != 0 {
		rl.UnloadTexture(b.sprite)
		b.sprite = rl.Texture2D{}
	}
}
