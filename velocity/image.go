// Package velocity holds decoded vector-field rasters and their linear decode
// parameters.
package velocity

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Image is a 2-band velocity raster. Pixels are stored as RGBA rows with the
// u component in R and v in G, so the buffer uploads directly as a texture.
// An Image is immutable once constructed.
type Image struct {
	data          []byte
	width, height int

	uOffset, vOffset float64
	uScale, vScale   float64
}

// Params are the per-channel linear decode parameters as served alongside the
// raster: value = raw*Scale + Offset for a raw 8-bit sample.
type Params struct {
	UOffset, VOffset float64
	UScale, VScale   float64
}

// New creates an image from RGBA pixel rows. uScale and vScale are per raw
// unit and are stored pre-multiplied by 255 so that they apply to normalised
// samples in [0, 1].
func New(data []byte, width, height int, uOffset, vOffset, uScale, vScale float64) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("velocity: invalid dimensions %dx%d", width, height)
	}
	if len(data) != width*height*4 {
		return nil, fmt.Errorf("velocity: expected %d bytes for %dx%d, got %d", width*height*4, width, height, len(data))
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Image{
		data:    buf,
		width:   width,
		height:  height,
		uOffset: uOffset,
		vOffset: vOffset,
		uScale:  uScale * 255,
		vScale:  vScale * 255,
	}, nil
}

// FromImage copies the first two channels of src into a new Image.
func FromImage(src image.Image, p Params) (*Image, error) {
	b := src.Bounds()
	data := make([]byte, b.Dx()*b.Dy()*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			i := ((y-b.Min.Y)*b.Dx() + (x - b.Min.X)) * 4
			data[i] = c.R
			data[i+1] = c.G
			data[i+3] = 255
		}
	}
	return New(data, b.Dx(), b.Dy(), p.UOffset, p.VOffset, p.UScale, p.VScale)
}

// Width returns the raster width in pixels.
func (im *Image) Width() int { return im.width }

// Height returns the raster height in pixels.
func (im *Image) Height() int { return im.height }

// Pixels returns the RGBA pixel rows. Callers must not modify the slice.
func (im *Image) Pixels() []byte { return im.data }

// Offsets returns the u and v offsets.
func (im *Image) Offsets() (u, v float64) { return im.uOffset, im.vOffset }

// Scales returns the u and v scales applied to normalised samples.
func (im *Image) Scales() (u, v float64) { return im.uScale, im.vScale }

// Params returns the decode parameters in the per-raw-unit form.
func (im *Image) Params() Params {
	return Params{
		UOffset: im.uOffset,
		VOffset: im.vOffset,
		UScale:  im.uScale / 255,
		VScale:  im.vScale / 255,
	}
}

// Decode converts normalised channel samples into physical velocity.
func (im *Image) Decode(su, sv float64) (u, v float64) {
	return su*im.uScale + im.uOffset, sv*im.vScale + im.vOffset
}

// MaxVelocity bounds the physical speed representable per channel: the larger
// magnitude of the values decoded from raw samples 0 and 255.
func (im *Image) MaxVelocity() (maxU, maxV float64) {
	maxU = math.Max(math.Abs(im.uOffset), math.Abs(im.uScale+im.uOffset))
	maxV = math.Max(math.Abs(im.vOffset), math.Abs(im.vScale+im.vOffset))
	return maxU, maxV
}

// At returns the decoded velocity of pixel (i, j), row 0 being the top.
func (im *Image) At(i, j int) (u, v float64) {
	k := (j*im.width + i) * 4
	return im.Decode(float64(im.data[k])/255, float64(im.data[k+1])/255)
}

// Sample returns the bilinearly interpolated velocity at normalised raster
// coordinates (x right, y down, both in [0, 1]). Texel centres and
// clamp-to-edge addressing match linear texture filtering on the GPU.
func (im *Image) Sample(x, y float64) (u, v float64) {
	fx := x*float64(im.width) - 0.5
	fy := y*float64(im.height) - 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	x1 := clampIndex(x0+1, im.width)
	y1 := clampIndex(y0+1, im.height)
	x0 = clampIndex(x0, im.width)
	y0 = clampIndex(y0, im.height)

	su00, sv00 := im.raw(x0, y0)
	su10, sv10 := im.raw(x1, y0)
	su01, sv01 := im.raw(x0, y1)
	su11, sv11 := im.raw(x1, y1)

	su := bilerp(su00, su10, su01, su11, tx, ty)
	sv := bilerp(sv00, sv10, sv01, sv11, tx, ty)
	return im.Decode(su, sv)
}

// Magnitude returns the decoded speed at normalised raster coordinates.
func (im *Image) Magnitude(x, y float64) float64 {
	u, v := im.Sample(x, y)
	return math.Hypot(u, v)
}

func (im *Image) raw(i, j int) (float64, float64) {
	k := (j*im.width + i) * 4
	return float64(im.data[k]) / 255, float64(im.data[k+1]) / 255
}

func bilerp(v00, v10, v01, v11, tx, ty float64) float64 {
	a := v00 + (v10-v00)*tx
	b := v01 + (v11-v01)*tx
	return a + (b-a)*ty
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Resample builds a w×h image by nearest-neighbour lookup. For each output
// pixel centre (x, y), normalised with y down, fn returns the normalised
// source position; pixels for which fn reports false get the raw sample
// closest to zero velocity.
func (im *Image) Resample(w, h int, fn func(x, y float64) (sx, sy float64, ok bool)) (*Image, error) {
	p := im.Params()
	zu := quantise(0, p.UOffset, p.UScale)
	zv := quantise(0, p.VOffset, p.VScale)

	data := make([]byte, w*h*4)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			k := (j*w + i) * 4
			data[k], data[k+1], data[k+3] = zu, zv, 255

			sx, sy, ok := fn((float64(i)+0.5)/float64(w), (float64(j)+0.5)/float64(h))
			if !ok || sx < 0 || sx >= 1 || sy < 0 || sy >= 1 {
				continue
			}
			si := clampIndex(int(sx*float64(im.width)), im.width)
			sj := clampIndex(int(sy*float64(im.height)), im.height)
			src := (sj*im.width + si) * 4
			data[k], data[k+1] = im.data[src], im.data[src+1]
		}
	}
	return New(data, w, h, p.UOffset, p.VOffset, p.UScale, p.VScale)
}
