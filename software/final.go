package software

import (
	"image/color"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/velocity"
)

// FinalRenderer composites magnitude and trails into the backend frame.
type FinalRenderer struct {
	backend  *Backend
	colormap *colormap.Colormap
	velocity *velocity.Image
	style    streamline.Style
}

func (r *FinalRenderer) SetDimensions(width, height int) { r.backend.resizeFrame(width, height) }

func (r *FinalRenderer) SetVelocityImage(img *velocity.Image) { r.velocity = img }

func (r *FinalRenderer) SetColormap(cm *colormap.Colormap) { r.colormap = cm }

func (r *FinalRenderer) SetStyle(s streamline.Style) { r.style = s }

// Render writes every frame pixel. Pixels that map outside the fetched raster
// are transparent.
func (r *FinalRenderer) Render(trail streamline.Trail, scaling streamline.Scaling) {
	if r.velocity == nil {
		panic("software: final render before SetVelocityImage")
	}
	t := trail.(*Trail)
	r.backend.lastTrail = t
	frame := r.backend.frame
	b := frame.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	for j := 0; j < b.Dy(); j++ {
		for i := 0; i < b.Dx(); i++ {
			cx := (float64(i)+0.5)/w*2 - 1
			cy := 1 - (float64(j)+0.5)/h*2
			fx, fy := scaling.Apply(cx, cy)
			k := frame.PixOffset(i, j)
			if fx < -1 || fx > 1 || fy < -1 || fy > 1 {
				setPix(frame.Pix[k:k+4], color.NRGBA{})
				continue
			}
			rx, ry := streamline.ClipToRaster(fx, fy)
			c := r.colormap.At(r.velocity.Magnitude(rx, ry))
			p := trailAt(t, rx, ry)
			setPix(frame.Pix[k:k+4], composite(r.style, c, p))
		}
	}
}

func (r *FinalRenderer) Unload() {}

// trailAt samples the trail nearest to normalised raster coordinates.
func trailAt(t *Trail, rx, ry float64) color.NRGBA {
	b := t.Bounds()
	x := clamp(int(rx*float64(b.Dx())), 0, b.Dx()-1)
	y := clamp(int(ry*float64(b.Dy())), 0, b.Dy()-1)
	return t.NRGBAAt(b.Min.X+x, b.Min.Y+y)
}

// composite blends the trail over the magnitude colour for a style. The
// light and dark styles pull the trail colour towards white or black first.
func composite(style streamline.Style, c, trail color.NRGBA) color.NRGBA {
	if style == streamline.MagnitudeColoredParticles {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: trail.A}
	}
	tone := streamline.ParticleTone(style, trail)
	a := float64(trail.A) / 255
	mix := func(bg, fg uint8) uint8 {
		return uint8(float64(bg)*(1-a) + float64(fg)*a + 0.5)
	}
	return color.NRGBA{R: mix(c.R, tone.R), G: mix(c.G, tone.G), B: mix(c.B, tone.B), A: c.A}
}

func setPix(p []uint8, c color.NRGBA) {
	p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
