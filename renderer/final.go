package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/velocity"
)

// FinalRenderer composites the magnitude colormap and the trail to the
// screen, reprojected by the current bounding-box scaling.
type FinalRenderer struct {
	program     *program
	samples     int
	interpolate bool

	velocity    rl.Texture2D
	hasVelocity bool
	params      [4]float32

	colormap      rl.Texture2D
	colormapRange [2]float32

	style         streamline.Style
	width, height int
}

func newFinalRenderer(prog *program, cm *colormap.Colormap, samples int, interpolate bool, width, height int) *FinalRenderer {
	r := &FinalRenderer{
		program:     prog,
		samples:     samples,
		interpolate: interpolate,
		width:       width,
		height:      height,
	}
	r.colormap = colormapTexture(cm, samples)
	r.colormapRange = [2]float32{float32(cm.Start()), float32(cm.End())}
	return r
}

func (r *FinalRenderer) SetDimensions(width, height int) { r.width, r.height = width, height }

// SetVelocityImage replaces the magnitude source.
func (r *FinalRenderer) SetVelocityImage(img *velocity.Image) {
	if r.hasVelocity {
		rl.UnloadTexture(r.velocity)
	}
	r.velocity = velocityTexture(img, r.interpolate)
	r.params = velocityParams(img)
	r.hasVelocity = true
}

// SetColormap replaces the lookup texture.
func (r *FinalRenderer) SetColormap(cm *colormap.Colormap) {
	rl.UnloadTexture(r.colormap)
	r.colormap = colormapTexture(cm, r.samples)
	r.colormapRange = [2]float32{float32(cm.Start()), float32(cm.End())}
}

func (r *FinalRenderer) SetStyle(s streamline.Style) { r.style = s }

// Render draws to the current framebuffer with standard alpha blending.
func (r *FinalRenderer) Render(trail streamline.Trail, scaling streamline.Scaling) {
	if !r.hasVelocity {
		panic("renderer: final render before SetVelocityImage")
	}
	t := trail.(*Trail)

	rl.BeginBlendMode(rl.BlendAlpha)
	rl.BeginShaderMode(r.program.shader)
	r.program.setTexture("trail", t.Texture())
	r.program.setTexture("velocity", r.velocity)
	r.program.setTexture("colormap", r.colormap)
	r.program.setVec4("velocityParams", r.params)
	r.program.setVec3("colormapRange", r.colormapRange[0], r.colormapRange[1], float32(r.samples))
	r.program.setVec4("scaling", [4]float32{
		float32(scaling.ScaleX), float32(scaling.ScaleY),
		float32(scaling.OffsetX), float32(scaling.OffsetY),
	})
	r.program.setVec2("resolution", float32(r.width), float32(r.height))
	r.program.setFloat("style", float32(r.style))
	r.program.setFloat("toneMix", streamline.ToneMix)
	rl.DrawRectangle(0, 0, int32(r.width), int32(r.height), rl.White)
	rl.EndShaderMode()
	rl.EndBlendMode()
}

// Unload releases the velocity and colormap textures.
func (r *FinalRenderer) Unload() {
	if r.hasVelocity {
		rl.UnloadTexture(r.velocity)
		r.hasVelocity = false
	}
	rl.UnloadTexture(r.colormap)
}
