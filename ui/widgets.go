package ui

import (
	"fmt"
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/colormap"
)

// Renderer draws the shared panel widgets.
type Renderer struct {
	Theme Theme
}

func NewRenderer() *Renderer {
	return &Renderer{Theme: DefaultTheme()}
}

func (r *Renderer) text(s string, x, y int32, c rl.Color) {
	rl.DrawText(s, x, y, r.Theme.FontSize, c)
}

// row advances y by one line.
func (r *Renderer) row(y int32) int32 { return y + r.Theme.LineHeight }

// DrawPanel fills a bordered panel background.
func (r *Renderer) DrawPanel(x, y, width, height int32) {
	rl.DrawRectangle(x, y, width, height, r.Theme.PanelBg)
	rl.DrawRectangleLines(x, y, width, height, r.Theme.PanelBorder)
}

// DrawSectionHeader draws title and returns the next line's y.
func (r *Renderer) DrawSectionHeader(x, y int32, title string) int32 {
	rl.DrawText(title, x, y, r.Theme.HeaderFontSize, r.Theme.SectionHeader)
	return r.row(y)
}

// DrawLabelValue draws "label: value" with the value in a fixed column.
func (r *Renderer) DrawLabelValue(x, y int32, label, value string, _ int32) int32 {
	r.text(label+":", x, y, r.Theme.LabelColor)
	r.text(value, x+r.Theme.LabelWidth, y, r.Theme.ValueColor)
	return r.row(y)
}

// DrawBar draws a labelled fill bar for a fraction, clamped to [0, 1].
func (r *Renderer) DrawBar(x, y int32, label string, frac float32, width int32) int32 {
	frac = min(max(frac, 0), 1)
	bx := x + r.Theme.LabelWidth
	bw := width - r.Theme.LabelWidth - 50
	h := r.Theme.BarHeight

	r.text(label+":", x, y, r.Theme.LabelColor)
	rl.DrawRectangle(bx, y+2, bw, h, r.Theme.BarBg)
	rl.DrawRectangle(bx, y+2, int32(float32(bw)*frac), h, r.Theme.BarFill)
	r.text(fmt.Sprintf("%.1f%%", frac*100), bx+bw+5, y, r.Theme.ValueColor)
	return r.row(y) + 2
}

// DrawColormap draws cm as a one-pixel-per-sample ramp with its value range
// underneath.
func (r *Renderer) DrawColormap(x, y int32, cm *colormap.Colormap, width int32) int32 {
	h := r.Theme.BarHeight
	for i, c := range cm.Sample(int(width)) {
		rl.DrawRectangle(x+int32(i), y, 1, h, toRL(c))
	}
	rl.DrawRectangleLines(x, y, width, h, r.Theme.PanelBorder)
	y += h + 2

	lo := fmt.Sprintf("%.2f", cm.Start())
	hi := fmt.Sprintf("%.2f", cm.End())
	r.text(lo, x, y, r.Theme.ValueColor)
	r.text(hi, x+width-rl.MeasureText(hi, r.Theme.FontSize), y, r.Theme.ValueColor)
	return r.row(y)
}

func (r *Renderer) DrawSpacer(y, amount int32) int32 {
	return y + amount
}

func toRL(c color.NRGBA) rl.Color {
	return rl.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}
