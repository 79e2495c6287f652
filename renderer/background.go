package renderer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/streamline"
)

// BackgroundRenderer draws the map backdrop: a flat sea colour with a
// graticule that adapts its spacing to the zoom level.
type BackgroundRenderer struct {
	program   *program
	baseColor [3]float32
	lineColor [3]float32
}

// NewBackgroundRenderer creates a backdrop renderer. It must be called after
// the raylib window is created.
func NewBackgroundRenderer(base, line rl.Color) (*BackgroundRenderer, error) {
	prog, err := loadProgram("", "background.fs")
	if err != nil {
		return nil, err
	}
	return &BackgroundRenderer{
		program:   prog,
		baseColor: [3]float32{float32(base.R) / 255, float32(base.G) / 255, float32(base.B) / 255},
		lineColor: [3]float32{float32(line.R) / 255, float32(line.G) / 255, float32(line.B) / 255},
	}, nil
}

// GraticuleSpacing picks a power-of-ten spacing in metres giving roughly
// eight lines across the given width.
func GraticuleSpacing(widthMetres float64) float64 {
	if widthMetres <= 0 {
		return 1
	}
	return math.Pow(10, math.Floor(math.Log10(widthMetres/8)))
}

// Draw fills width×height pixels with the backdrop for bounds.
func (b *BackgroundRenderer) Draw(bounds streamline.BoundingBox, width, height int) {
	rl.BeginShaderMode(b.program.shader)
	b.program.setVec4("bounds", [4]float32{
		float32(bounds.MinX), float32(bounds.MinY),
		float32(bounds.MaxX), float32(bounds.MaxY),
	})
	b.program.setVec2("resolution", float32(width), float32(height))
	b.program.setFloat("spacing", float32(GraticuleSpacing(bounds.Width())))
	b.program.setVec3("baseColor", b.baseColor[0], b.baseColor[1], b.baseColor[2])
	b.program.setVec3("lineColor", b.lineColor[0], b.lineColor[1], b.lineColor[2])
	rl.DrawRectangle(0, 0, int32(width), int32(height), rl.White)
	rl.EndShaderMode()
}

// Unload frees resources.
func (b *BackgroundRenderer) Unload() {
	b.program.unload()
}
