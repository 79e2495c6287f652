package renderer

import (
	"image"
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/velocity"
)

// Trail is an RGBA8 render target holding particle trails.
type Trail struct {
	target        rl.RenderTexture2D
	width, height int32
}

func newTrail(width, height int) *Trail {
	return &Trail{
		target: rl.LoadRenderTexture(int32(width), int32(height)),
		width:  int32(width),
		height: int32(height),
	}
}

// Clear zeroes every texel.
func (t *Trail) Clear() {
	rl.BeginTextureMode(t.target)
	rl.ClearBackground(rl.Blank)
	rl.EndTextureMode()
}

// Unload releases the render target.
func (t *Trail) Unload() {
	rl.UnloadRenderTexture(t.target)
}

// Texture returns the colour attachment.
func (t *Trail) Texture() rl.Texture2D { return t.target.Texture }

// TextureRenderer draws a trail with faded alpha into another trail or the
// screen.
type TextureRenderer struct {
	program       *program
	width, height int32
}

// Render implements streamline.TextureRenderer.
func (r *TextureRenderer) Render(src streamline.Trail, fade float64, dst streamline.Trail) {
	in := src.(*Trail)
	pass := func() {
		withoutBlending(func() {
			rl.BeginShaderMode(r.program.shader)
			r.program.setFloat("fade", float32(fade))
			r.program.setTexture("trail", in.Texture())
			rl.DrawRectangle(0, 0, r.width, r.height, rl.White)
			rl.EndShaderMode()
		})
	}

	if dst == nil {
		pass()
		return
	}
	out := dst.(*Trail)
	rl.BeginTextureMode(out.target)
	pass()
	rl.EndTextureMode()
}

// Unload is a no-op; the program belongs to the backend.
func (r *TextureRenderer) Unload() {}

// uploadRGBA creates a texture from RGBA rows.
func uploadRGBA(pix []uint8, width, height int, filter rl.TextureFilterMode) rl.Texture2D {
	img := rl.GenImageColor(width, height, rl.Blank)
	tex := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)

	colors := make([]color.RGBA, width*height)
	for i := range colors {
		colors[i] = color.RGBA{R: pix[i*4], G: pix[i*4+1], B: pix[i*4+2], A: pix[i*4+3]}
	}
	rl.UpdateTexture(tex, colors)
	rl.SetTextureFilter(tex, filter)
	rl.SetTextureWrap(tex, rl.WrapClamp)
	return tex
}

// velocityTexture uploads the raster; with interpolate the GPU filters
// bilinearly like velocity.Image.Sample.
func velocityTexture(img *velocity.Image, interpolate bool) rl.Texture2D {
	filter := rl.FilterPoint
	if interpolate {
		filter = rl.FilterBilinear
	}
	return uploadRGBA(img.Pixels(), img.Width(), img.Height(), filter)
}

// colormapTexture uploads an n×1 lookup texture. The caller owns it.
func colormapTexture(cm *colormap.Colormap, n int) rl.Texture2D {
	img := cm.Image(n)
	return uploadRGBA(img.Pix, n, 1, rl.FilterBilinear)
}

// imageTexture uploads any Go image.
func imageTexture(src *image.NRGBA, filter rl.TextureFilterMode) rl.Texture2D {
	b := src.Bounds()
	return uploadRGBA(src.Pix, b.Dx(), b.Dy(), filter)
}

func velocityParams(img *velocity.Image) [4]float32 {
	uo, vo := img.Offsets()
	us, vs := img.Scales()
	return [4]float32{float32(uo), float32(vo), float32(us), float32(vs)}
}
