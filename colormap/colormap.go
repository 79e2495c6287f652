// Package colormap provides the non-uniform value to colour lookup used to
// shade velocity magnitude.
package colormap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

// Precondition errors returned by New.
var (
	ErrLengthMismatch = errors.New("colormap: values and colors differ in length")
	ErrTooFewEntries  = errors.New("colormap: at least two entries are required")
	ErrNotIncreasing  = errors.New("colormap: values must be strictly increasing")
)

// Colormap maps scalar values to colours by linear interpolation between
// non-uniformly spaced entries.
type Colormap struct {
	values []float64
	colors []color.NRGBA
}

// New creates a colormap. The slices are copied.
func New(values []float64, colors []color.NRGBA) (*Colormap, error) {
	if len(values) != len(colors) {
		return nil, fmt.Errorf("%w: %d values, %d colors", ErrLengthMismatch, len(values), len(colors))
	}
	if len(values) < 2 {
		return nil, ErrTooFewEntries
	}
	for i := 1; i < len(values); i++ {
		if !(values[i] > values[i-1]) {
			return nil, fmt.Errorf("%w: values[%d]=%g after %g", ErrNotIncreasing, i, values[i], values[i-1])
		}
	}

	cm := &Colormap{
		values: make([]float64, len(values)),
		colors: make([]color.NRGBA, len(colors)),
	}
	copy(cm.values, values)
	copy(cm.colors, colors)
	return cm, nil
}

// Start returns the first value.
func (c *Colormap) Start() float64 { return c.values[0] }

// End returns the last value.
func (c *Colormap) End() float64 { return c.values[len(c.values)-1] }

// Range returns End - Start.
func (c *Colormap) Range() float64 { return c.End() - c.Start() }

// Len returns the number of entries.
func (c *Colormap) Len() int { return len(c.values) }

// Entry returns the value and colour at index i.
func (c *Colormap) Entry(i int) (float64, color.NRGBA) {
	return c.values[i], c.colors[i]
}

// At returns the interpolated colour for value, clamped to the first and last
// colours outside [Start, End].
func (c *Colormap) At(value float64) color.NRGBA {
	if math.IsNaN(value) || value <= c.values[0] {
		return c.colors[0]
	}
	last := len(c.values) - 1
	if value >= c.values[last] {
		return c.colors[last]
	}

	hi := 1
	for c.values[hi] < value {
		hi++
	}
	lo := hi - 1
	t := (value - c.values[lo]) / (c.values[hi] - c.values[lo])
	return lerp(c.colors[lo], c.colors[hi], t)
}

// Sample resamples the colormap to n uniformly spaced values between Start and
// End. The first and last samples are exactly the first and last colours.
func (c *Colormap) Sample(n int) []color.NRGBA {
	if n < 2 {
		panic(fmt.Sprintf("colormap: Sample needs at least 2 samples, got %d", n))
	}

	out := make([]color.NRGBA, n)
	step := c.Range() / float64(n-1)
	for i := range out {
		out[i] = c.At(c.Start() + float64(i)*step)
	}
	out[0] = c.colors[0]
	out[n-1] = c.colors[len(c.colors)-1]
	return out
}

// Image returns Sample(n) as an n×1 image, the layout uploaded as the 1D
// lookup texture.
func (c *Colormap) Image(n int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, n, 1))
	for i, col := range c.Sample(n) {
		img.SetNRGBA(i, 0, col)
	}
	return img
}

// Normalise maps value into [0, 1] over the colormap range, clamped.
func (c *Colormap) Normalise(value float64) float64 {
	t := (value - c.Start()) / c.Range()
	return math.Max(0, math.Min(1, t))
}

func lerp(a, b color.NRGBA, t float64) color.NRGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + t*(float64(y)-float64(x))))
	}
	return color.NRGBA{
		R: mix(a.R, b.R),
		G: mix(a.G, b.G),
		B: mix(a.B, b.B),
		A: mix(a.A, b.A),
	}
}
