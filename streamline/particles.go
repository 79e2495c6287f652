package streamline

import "math"

// TextureSide returns the side of the square texture holding n particles.
func TextureSide(n int) int {
	if n <= 0 {
		return 0
	}
	side := int(math.Ceil(math.Sqrt(float64(n))))
	// Guard against sqrt rounding for large perfect squares.
	for side*side < n {
		side++
	}
	for side > 1 && (side-1)*(side-1) >= n {
		side--
	}
	return side
}

// AllocationSize returns the smallest perfect square >= n. Positions are
// packed into a square 2D texture because 1D texture limits would cap the
// particle count.
func AllocationSize(n int) int {
	s := TextureSide(n)
	return s * s
}

// ClipToRaster converts a clip coordinate (y up, [-1, 1]) to normalised
// raster coordinates (y down, [0, 1]).
func ClipToRaster(x, y float64) (rx, ry float64) {
	return (x + 1) / 2, (1 - y) / 2
}

// Advect moves a clip-space position by a physical velocity for dt seconds.
// The x component is divided by the aspect ratio so that physical units are
// isotropic on screen. Positions wrap periodically in [-1, 1).
func Advect(x, y, u, v, dt, speedFactor, aspect float64) (float64, float64) {
	x += u * speedFactor / aspect * dt
	y += v * speedFactor * dt
	return WrapClip(x), WrapClip(y)
}

// WrapClip wraps a coordinate into [-1, 1).
func WrapClip(c float64) float64 {
	if c >= -1 && c < 1 {
		return c
	}
	c = math.Mod(c+1, 2)
	if c < 0 {
		c += 2
	}
	return c - 1
}

// ClipDelta returns the shortest signed periodic distance from a to b.
func ClipDelta(a, b float64) float64 {
	d := b - a
	if d > 1 {
		d -= 2
	} else if d < -1 {
		d += 2
	}
	return d
}
