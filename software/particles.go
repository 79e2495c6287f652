package software

import (
	"image/color"
	"math"

	"github.com/pthm-cable/streamflow/sprite"
	"github.com/pthm-cable/streamflow/streamline"
)

// ParticleRenderer stamps the circle sprite at every particle position with
// saturating additive blending.
type ParticleRenderer struct {
	numParticles  int
	width, height int
	size          float64
	color         color.NRGBA

	coverage []float64
	side     int
}

// NewParticleRenderer creates a renderer for numParticles particles.
func NewParticleRenderer(numParticles, width, height int) *ParticleRenderer {
	return &ParticleRenderer{numParticles: numParticles, width: width, height: height}
}

func (r *ParticleRenderer) SetDimensions(width, height int) { r.width, r.height = width, height }

func (r *ParticleRenderer) SetNumParticles(n int) { r.numParticles = n }

// SetParticleSize sets the sprite diameter in pixels and rasterises it.
func (r *ParticleRenderer) SetParticleSize(pixels float64) {
	if pixels == r.size && r.coverage != nil {
		return
	}
	cov, side, err := sprite.Coverage(pixels)
	if err != nil {
		panic(err)
	}
	r.size, r.coverage, r.side = pixels, cov, side
}

func (r *ParticleRenderer) SetParticleColor(c color.NRGBA) { r.color = c }

// Render draws the sprites into dst.
func (r *ParticleRenderer) Render(pos streamline.Positions, dst streamline.Trail) {
	xy := pos.([]float64)
	t := dst.(*Trail)
	if r.coverage == nil {
		panic("software: particle size not set")
	}

	half := float64(r.side) / 2
	for i := 0; i+1 < len(xy) && i/2 < r.numParticles; i += 2 {
		px := (xy[i] + 1) / 2 * float64(r.width)
		py := (1 - xy[i+1]) / 2 * float64(r.height)
		x0 := int(math.Floor(px - half))
		y0 := int(math.Floor(py - half))
		r.stamp(t, x0, y0)
	}
}

func (r *ParticleRenderer) stamp(t *Trail, x0, y0 int) {
	b := t.Bounds()
	for sy := 0; sy < r.side; sy++ {
		y := y0 + sy
		if y < b.Min.Y || y >= b.Max.Y {
			continue
		}
		for sx := 0; sx < r.side; sx++ {
			x := x0 + sx
			if x < b.Min.X || x >= b.Max.X {
				continue
			}
			cov := r.coverage[sy*r.side+sx]
			if cov <= 0 {
				continue
			}
			k := t.PixOffset(x, y)
			p := t.Pix[k : k+4 : k+4]
			p[0] = addSat(p[0], float64(r.color.R))
			p[1] = addSat(p[1], float64(r.color.G))
			p[2] = addSat(p[2], float64(r.color.B))
			p[3] = addSat(p[3], float64(r.color.A)*cov)
		}
	}
}

func (r *ParticleRenderer) Unload() { r.coverage = nil }

func addSat(a uint8, b float64) uint8 {
	v := float64(a) + math.Round(b)
	if v > 255 {
		return 255
	}
	return uint8(v)
}
