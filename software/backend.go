// Package software is a CPU implementation of the streamline rendering
// components. It renders into an in-memory frame and is used for headless
// output, tests and machines without a usable GPU.
package software

import (
	"image"
	"math/rand"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/streamline"
)

// Backend creates CPU rendering components. The final composite is written to
// Frame; a nil destination in a texture pass also targets Frame.
type Backend struct {
	rng       *rand.Rand
	frame     *image.NRGBA
	lastTrail *Trail
}

// NewBackend creates a software backend drawing randomness from rng.
func NewBackend(rng *rand.Rand) *Backend {
	return &Backend{rng: rng, frame: image.NewNRGBA(image.Rect(0, 0, 1, 1))}
}

// Frame returns the most recent composited frame.
func (b *Backend) Frame() *image.NRGBA { return b.frame }

// LastTrail returns the trail used by the most recent final pass, nil before
// the first one. Its pixels are released when the visualiser is destructed.
func (b *Backend) LastTrail() *Trail { return b.lastTrail }

func (b *Backend) resizeFrame(width, height int) {
	r := b.frame.Bounds()
	if r.Dx() == width && r.Dy() == height {
		return
	}
	b.frame = image.NewNRGBA(image.Rect(0, 0, width, height))
}

// NewPropagator implements streamline.Backend.
func (b *Backend) NewPropagator(numParticles, width, height int) streamline.Propagator {
	return NewPropagator(b.rng, numParticles, width, height)
}

// NewParticleRenderer implements streamline.Backend.
func (b *Backend) NewParticleRenderer(numParticles, width, height int) streamline.ParticleRenderer {
	return NewParticleRenderer(numParticles, width, height)
}

// NewTextureRenderer implements streamline.Backend.
func (b *Backend) NewTextureRenderer(width, height int) streamline.TextureRenderer {
	b.resizeFrame(width, height)
	return &TextureRenderer{backend: b}
}

// NewFinalRenderer implements streamline.Backend.
func (b *Backend) NewFinalRenderer(cm *colormap.Colormap, width, height int) streamline.FinalRenderer {
	b.resizeFrame(width, height)
	return &FinalRenderer{backend: b, colormap: cm}
}

// NewTrail implements streamline.Backend.
func (b *Backend) NewTrail(width, height int) streamline.Trail {
	return NewTrail(width, height)
}

// Trail is an 8-bit RGBA trail buffer with straight (non-premultiplied) colour.
type Trail struct {
	*image.NRGBA
}

// NewTrail allocates a cleared trail.
func NewTrail(width, height int) *Trail {
	return &Trail{NRGBA: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// Clear zeroes every pixel.
func (t *Trail) Clear() { clear(t.Pix) }

// Coverage returns the fraction of pixels whose alpha is at least threshold,
// and their mean alpha in [0, 1].
func (t *Trail) Coverage(threshold uint8) (frac, meanAlpha float64) {
	n := len(t.Pix) / 4
	if n == 0 {
		return 0, 0
	}
	covered, sum := 0, 0
	for i := 3; i < len(t.Pix); i += 4 {
		if a := t.Pix[i]; a >= threshold && a > 0 {
			covered++
			sum += int(a)
		}
	}
	if covered == 0 {
		return 0, 0
	}
	return float64(covered) / float64(n), float64(sum) / float64(covered) / 255
}

// Unload releases the pixel buffer.
func (t *Trail) Unload() { t.Pix = nil }
