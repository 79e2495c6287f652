package renderer

import (
	"image/color"
	"math"
	"math/rand"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/velocity"
)

// Propagator advances particles in a fragment pass over a square state
// texture. Each texel holds one position as 16-bit fixed point.
type Propagator struct {
	program     *program
	rng         *rand.Rand
	eliminator  *streamline.Eliminator
	interpolate bool

	states *streamline.PingPong[rl.RenderTexture2D]
	side   int

	velocity    rl.Texture2D
	hasVelocity bool
	params      [4]float32

	numParticles    int
	width, height   int
	speedFactor     float64
	eliminatePerSec float64
}

// encodePosition packs a clip coordinate into a state texel.
func encodePosition(x, y float64) color.RGBA {
	px := (x + 1) / 2 * 255
	py := (y + 1) / 2 * 255
	hx, hy := math.Floor(px), math.Floor(py)
	return color.RGBA{
		R: uint8(math.Round((px - hx) * 255)),
		G: uint8(math.Round((py - hy) * 255)),
		B: uint8(hx),
		A: uint8(hy),
	}
}

// decodePosition inverts encodePosition.
func decodePosition(c color.RGBA) (x, y float64) {
	px := float64(c.R)/255/255 + float64(c.B)/255
	py := float64(c.G)/255/255 + float64(c.A)/255
	return px*2 - 1, py*2 - 1
}

// Initialise allocates the state textures and seeds them uniformly.
func (p *Propagator) Initialise() {
	p.unloadStates()

	p.side = streamline.TextureSide(p.numParticles)
	a := rl.LoadRenderTexture(int32(p.side), int32(p.side))
	b := rl.LoadRenderTexture(int32(p.side), int32(p.side))

	seed := make([]color.RGBA, p.side*p.side)
	for i := range seed {
		seed[i] = encodePosition(p.rng.Float64()*2-1, p.rng.Float64()*2-1)
	}
	rl.UpdateTexture(a.Texture, seed)

	p.states = streamline.NewPingPong(a, b)
	// Update swaps first, so the seeded texture waits on the write side.
	p.states.Swap()
}

func (p *Propagator) unloadStates() {
	if p.states == nil {
		return
	}
	p.states.Each(func(rt rl.RenderTexture2D) { rl.UnloadRenderTexture(rt) })
	p.states = nil
}

// SetVelocityImage replaces the sampled velocity texture.
func (p *Propagator) SetVelocityImage(img *velocity.Image) {
	if p.hasVelocity {
		rl.UnloadTexture(p.velocity)
	}
	p.velocity = velocityTexture(img, p.interpolate)
	p.params = velocityParams(img)
	p.hasVelocity = true
}

func (p *Propagator) SetDimensions(width, height int) { p.width, p.height = width, height }

// SetNumParticles reallocates and reseeds on a count change.
func (p *Propagator) SetNumParticles(n int) {
	if n == p.numParticles {
		return
	}
	p.numParticles = n
	if p.states != nil {
		p.Initialise()
	}
}

func (p *Propagator) SetSpeedFactor(f float64) { p.speedFactor = f }

func (p *Propagator) SetNumEliminatePerSecond(n float64) { p.eliminatePerSec = n }

// Update integrates one sub-step into the write texture.
func (p *Propagator) Update(dt float64) {
	if p.states == nil {
		panic("renderer: Update called before Initialise")
	}
	if !p.hasVelocity {
		panic("renderer: Update called before SetVelocityImage")
	}

	p.states.Swap()
	respawn := p.eliminator.Next(p.eliminatePerSec, dt, p.numParticles)
	side := int32(p.side)

	rl.BeginTextureMode(p.states.Write())
	withoutBlending(func() {
		rl.BeginShaderMode(p.program.shader)
		p.program.setTexture("positions", p.states.Read().Texture)
		p.program.setTexture("velocity", p.velocity)
		p.program.setVec4("velocityParams", p.params)
		p.program.setFloat("dt", float32(dt))
		p.program.setFloat("speedFactor", float32(p.speedFactor))
		p.program.setFloat("aspect", float32(p.width)/float32(p.height))
		p.program.setFloat("side", float32(p.side))
		p.program.setFloat("numParticles", float32(p.numParticles))
		p.program.setFloat("respawnStart", float32(respawn.Start))
		p.program.setFloat("respawnCount", float32(respawn.Count))
		p.program.setVec2("seed", float32(p.rng.Float64()*1000), float32(p.rng.Float64()*1000))
		rl.DrawRectangle(0, 0, side, side, rl.White)
		rl.EndShaderMode()
	})
	rl.EndTextureMode()
}

// Positions returns the most recently written state texture.
func (p *Propagator) Positions() streamline.Positions {
	return p.states.Write().Texture
}

func (p *Propagator) NumParticles() int { return p.numParticles }

// Unload releases the state and velocity textures.
func (p *Propagator) Unload() {
	p.unloadStates()
	if p.hasVelocity {
		rl.UnloadTexture(p.velocity)
		p.hasVelocity = false
	}
}
