// Package camera provides a pan/zoom viewport over the Web Mercator plane. It
// plays the host map role for the streamline layer.
package camera

import (
	"math"

	"github.com/pthm-cable/streamflow/streamline"
)

// WorldSize is the width of the Web Mercator plane in metres.
var WorldSize = 2 * math.Pi * 6378137.0

// Camera controls the viewport into the map.
// X wraps around the antimeridian; Y is clamped to the Mercator square.
type Camera struct {
	// Position is the view center in Mercator metres, Y up
	X, Y float64

	// Resolution in metres per screen pixel
	Resolution float64

	// Viewport dimensions (screen size)
	ViewportW, ViewportH int

	// Resolution constraints
	MinResolution, MaxResolution float64

	home streamline.GeoBoundingBox
}

// New creates a camera showing view on a viewport of the given size.
func New(viewportW, viewportH int, view streamline.GeoBoundingBox) *Camera {
	c := &Camera{
		ViewportW:     viewportW,
		ViewportH:     viewportH,
		MinResolution: 0.5,
		home:          view,
	}
	c.updateMaxResolution()
	c.Reset()
	return c
}

// Fit centres the view on a geographic box, zooming so that it fits entirely.
func (c *Camera) Fit(view streamline.GeoBoundingBox) {
	b := view.Mercator()
	if b.IsEmpty() {
		return
	}
	c.X = (b.MinX + b.MaxX) / 2
	c.Y = (b.MinY + b.MaxY) / 2
	c.SetResolution(math.Max(b.Width()/float64(c.ViewportW), b.Height()/float64(c.ViewportH)))
}

// Reset returns the camera to the initial view.
func (c *Camera) Reset() {
	c.Fit(c.home)
}

// WorldToScreen converts Mercator coordinates to screen coordinates.
// X takes the shortest path around the antimeridian.
func (c *Camera) WorldToScreen(wx, wy float64) (sx, sy float64) {
	dx := toroidalDelta(wx, c.X, WorldSize)
	dy := wy - c.Y
	sx = float64(c.ViewportW)/2 + dx/c.Resolution
	sy = float64(c.ViewportH)/2 - dy/c.Resolution
	return sx, sy
}

// ScreenToWorld converts screen coordinates to Mercator coordinates.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	dx := (sx - float64(c.ViewportW)/2) * c.Resolution
	dy := (float64(c.ViewportH)/2 - sy) * c.Resolution
	return wrap(c.X + dx), c.Y + dy
}

// Bounds returns the visible area in Mercator metres. MinX may lie west of
// the antimeridian when the view straddles it.
func (c *Camera) Bounds() streamline.BoundingBox {
	halfW := float64(c.ViewportW) * c.Resolution / 2
	halfH := float64(c.ViewportH) * c.Resolution / 2
	return streamline.BoundingBox{
		MinX: c.X - halfW,
		MinY: c.Y - halfH,
		MaxX: c.X + halfW,
		MaxY: c.Y + halfH,
	}
}

// GeoBounds returns the visible area in degrees.
func (c *Camera) GeoBounds() streamline.GeoBoundingBox {
	b := c.Bounds()
	west, south := streamline.MercatorToLonLat(b.MinX, b.MinY)
	east, north := streamline.MercatorToLonLat(b.MaxX, b.MaxY)
	return streamline.GeoBoundingBox{West: west, South: south, East: east, North: north}
}

// Size returns the viewport size in pixels.
func (c *Camera) Size() (int, int) { return c.ViewportW, c.ViewportH }

// Resize updates viewport dimensions and recalculates zoom constraints.
// Returns true when the size changed.
func (c *Camera) Resize(viewportW, viewportH int) bool {
	if viewportW == c.ViewportW && viewportH == c.ViewportH {
		return false
	}
	c.ViewportW = viewportW
	c.ViewportH = viewportH
	c.updateMaxResolution()
	c.SetResolution(c.Resolution)
	return true
}

// Pan moves the camera by the given delta in screen pixels.
func (c *Camera) Pan(dx, dy float64) {
	c.X = wrap(c.X + dx*c.Resolution)
	c.Y -= dy * c.Resolution
	c.clampY()
}

// SetResolution sets the resolution, clamped to min/max.
func (c *Camera) SetResolution(r float64) {
	c.Resolution = clamp(r, c.MinResolution, c.MaxResolution)
	c.clampY()
}

// ZoomAt zooms by factor (>1 zooms in) keeping the world point under the
// screen position (sx, sy) fixed.
func (c *Camera) ZoomAt(factor, sx, sy float64) {
	if factor <= 0 {
		return
	}
	wx, wy := c.ScreenToWorld(sx, sy)
	c.SetResolution(c.Resolution / factor)
	nx, ny := c.ScreenToWorld(sx, sy)
	c.X = wrap(c.X + toroidalDelta(wx, nx, WorldSize))
	c.Y += wy - ny
	c.clampY()
}

func (c *Camera) updateMaxResolution() {
	// The whole world fits vertically at the coarsest zoom.
	c.MaxResolution = WorldSize / float64(max(c.ViewportH, 1))
}

func (c *Camera) clampY() {
	half := WorldSize / 2
	halfH := float64(c.ViewportH) * c.Resolution / 2
	if halfH >= half {
		c.Y = 0
		return
	}
	c.Y = clamp(c.Y, -half+halfH, half-halfH)
}

// toroidalDelta computes the shortest signed distance from 'from' to 'to'
// in a toroidal space of the given size.
func toroidalDelta(to, from, size float64) float64 {
	d := to - from
	if d > size/2 {
		d -= size
	} else if d < -size/2 {
		d += size
	}
	return d
}

// wrap maps x into [-WorldSize/2, WorldSize/2).
func wrap(x float64) float64 {
	half := WorldSize / 2
	r := math.Mod(x+half, WorldSize)
	if r < 0 {
		r += WorldSize
	}
	return r - half
}

// clamp restricts a value to a range.
func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
