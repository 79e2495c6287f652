package software

import (
	"math/rand"

	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/velocity"
)

// Propagator integrates particle positions on the CPU. Positions are clip
// coordinates stored as interleaved x, y pairs.
type Propagator struct {
	rng        *rand.Rand
	eliminator *streamline.Eliminator
	buffers    *streamline.PingPong[[]float64]

	velocity        *velocity.Image
	numParticles    int
	width, height   int
	speedFactor     float64
	eliminatePerSec float64
	initialised     bool

	lastRespawn streamline.RespawnRange
}

// NewPropagator creates an uninitialised propagator.
func NewPropagator(rng *rand.Rand, numParticles, width, height int) *Propagator {
	return &Propagator{
		rng:          rng,
		eliminator:   streamline.NewEliminator(rng),
		numParticles: numParticles,
		width:        width,
		height:       height,
		speedFactor:  1,
	}
}

// Initialise allocates both buffers and seeds uniformly in the clip square.
func (p *Propagator) Initialise() {
	n := streamline.AllocationSize(p.numParticles)
	in := make([]float64, n*2)
	for i := range in {
		in[i] = p.rng.Float64()*2 - 1
	}
	p.buffers = streamline.NewPingPong(in, make([]float64, n*2))
	// Update swaps before integrating, so the seeded buffer waits on the write
	// side and is read first.
	p.buffers.Swap()
	p.initialised = true
}

func (p *Propagator) SetVelocityImage(img *velocity.Image) { p.velocity = img }

func (p *Propagator) SetDimensions(width, height int) {
	p.width, p.height = width, height
}

// SetNumParticles reallocates and reseeds when the count changes.
func (p *Propagator) SetNumParticles(n int) {
	if n == p.numParticles {
		return
	}
	p.numParticles = n
	if p.initialised {
		p.Initialise()
	}
}

func (p *Propagator) SetSpeedFactor(f float64) { p.speedFactor = f }

func (p *Propagator) SetNumEliminatePerSecond(n float64) { p.eliminatePerSec = n }

// Update swaps buffers and advances every particle by dt seconds.
func (p *Propagator) Update(dt float64) {
	if !p.initialised {
		panic("software: Update called before Initialise")
	}
	if p.velocity == nil {
		panic("software: Update called before SetVelocityImage")
	}

	p.buffers.Swap()
	src, dst := p.buffers.Read(), p.buffers.Write()
	n := len(src) / 2
	aspect := float64(p.width) / float64(p.height)
	respawn := p.eliminator.Next(p.eliminatePerSec, dt, p.numParticles)
	p.lastRespawn = respawn

	for i := 0; i < n; i++ {
		if respawn.Contains(i) {
			dst[i*2] = p.rng.Float64()*2 - 1
			dst[i*2+1] = p.rng.Float64()*2 - 1
			continue
		}
		x, y := src[i*2], src[i*2+1]
		u, v := p.velocity.Sample(streamline.ClipToRaster(x, y))
		dst[i*2], dst[i*2+1] = streamline.Advect(x, y, u, v, dt, p.speedFactor, aspect)
	}
}

// Positions returns the current positions as interleaved clip coordinates.
// Only the first NumParticles pairs are live.
func (p *Propagator) Positions() streamline.Positions {
	if p.buffers == nil {
		return []float64(nil)
	}
	return p.buffers.Write()[:p.numParticles*2]
}

func (p *Propagator) NumParticles() int { return p.numParticles }

// LastRespawn returns the range respawned by the most recent Update.
func (p *Propagator) LastRespawn() streamline.RespawnRange { return p.lastRespawn }

func (p *Propagator) Unload() {
	p.buffers = nil
	p.initialised = false
}
