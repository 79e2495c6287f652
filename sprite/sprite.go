// Package sprite rasterises the anti-aliased particle sprite shared by the
// GPU and software backends.
package sprite

import (
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
)

// DefaultSize is the resolution of the sprite uploaded as a GPU texture. The
// GPU scales it to the particle size with linear filtering.
const DefaultSize = 64

// Circle returns a size×size white disc with anti-aliased coverage in alpha.
// The disc touches the image edges.
func Circle(size int) (*image.NRGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("sprite: invalid size %d", size)
	}
	dc := gg.NewContext(size, size)
	defer dc.Close()

	dc.Clear()
	dc.SetRGBA(1, 1, 1, 1)
	r := float64(size) / 2
	dc.DrawCircle(r, r, r)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("sprite: filling circle: %w", err)
	}

	out := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), dc.Image(), image.Point{}, draw.Src)
	return out, nil
}

// Coverage returns the alpha channel of a Circle sprite scaled to pixels×pixels
// as values in [0, 1], row-major.
func Coverage(pixels float64) ([]float64, int, error) {
	size := int(math.Ceil(pixels))
	if size < 1 {
		size = 1
	}
	img, err := Circle(size)
	if err != nil {
		return nil, 0, err
	}
	cov := make([]float64, size*size)
	for i := range cov {
		cov[i] = float64(img.Pix[i*4+3]) / 255
	}
	return cov, size, nil
}

// MustCircle is like Circle but panics on error.
func MustCircle(size int) *image.NRGBA {
	img, err := Circle(size)
	if err != nil {
		panic(err)
	}
	return img
}
