package ui

import (
	"errors"
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/wms"
)

// Controls is the mutation API the control panel drives.
type Controls interface {
	SetTimeIndex(i int) error
	SetElevation(e float64) error
	SetNumParticles(n int) error
	SetStyle(s streamline.Style) error
	UpdateOptions(p streamline.OptionsPatch) error
	Capabilities() *wms.Capabilities
	TimeIndex() int
	Elevation() *float64
}

// Slider ranges.
const (
	minParticles = 1000
	maxParticles = 200000
)

// ControlPanel renders the raygui options panel and the overlay key list.
type ControlPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	height   int32

	// Values applied on mouse release, since changing them reallocates.
	pendingParticles float32
	pendingElevation float32
}

// NewControlPanel creates a new control panel.
func NewControlPanel(x, y, width int32) *ControlPanel {
	return &ControlPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetPosition updates the panel position.
func (c *ControlPanel) SetPosition(x, y int32) {
	c.x = x
	c.y = y
}

// Contains reports whether a screen point lies over the panel, so the map
// can ignore drags that start there.
func (c *ControlPanel) Contains(pos rl.Vector2) bool {
	return rl.CheckCollisionPointRec(pos, rl.Rectangle{
		X: float32(c.x), Y: float32(c.y), Width: float32(c.width), Height: float32(c.height),
	})
}

// Draw renders the panel and forwards changes to ctl. Errors from the
// mutations are joined and returned.
func (c *ControlPanel) Draw(ctl Controls, opts streamline.Options, numParticles int, overlays *OverlayRegistry) error {
	r := c.renderer
	padding := r.Theme.Padding
	lineHeight := r.Theme.LineHeight
	inner := float32(c.width - padding*2)

	r.DrawPanel(c.x, c.y, c.width, c.height)
	x := float32(c.x + padding)
	y := r.DrawSectionHeader(c.x+padding, c.y+padding, "Layer")

	var errs []error
	report := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	// Time step
	caps := ctl.Capabilities()
	if caps != nil && len(caps.Times) > 0 {
		i := ctl.TimeIndex()
		if gui.Button(rl.Rectangle{X: x, Y: float32(y), Width: 24, Height: 20}, "<") && i > 0 {
			report(ctl.SetTimeIndex(i - 1))
		}
		if gui.Button(rl.Rectangle{X: x + inner - 24, Y: float32(y), Width: 24, Height: 20}, ">") && i < len(caps.Times)-1 {
			report(ctl.SetTimeIndex(i + 1))
		}
		label := fmt.Sprintf("%d/%d %s", i+1, len(caps.Times), caps.Times[i])
		rl.DrawText(label, int32(x)+30, y+4, r.Theme.FontSize, r.Theme.ValueColor)
		y += 26
	}

	// Elevation
	if caps != nil && caps.Elevation != nil && caps.Elevation.Max > caps.Elevation.Min {
		current := float32(caps.Elevation.Max)
		if e := ctl.Elevation(); e != nil {
			current = float32(*e)
		}
		if c.pendingElevation == 0 {
			c.pendingElevation = current
		}
		y = c.label(y, "Elevation", fmt.Sprintf("%.1fm", c.pendingElevation))
		c.pendingElevation = gui.SliderBar(rl.Rectangle{X: x, Y: float32(y), Width: inner, Height: 16},
			"", "", c.pendingElevation, float32(caps.Elevation.Min), float32(caps.Elevation.Max))
		if rl.IsMouseButtonReleased(rl.MouseLeftButton) && c.pendingElevation != current {
			report(ctl.SetElevation(float64(c.pendingElevation)))
		}
		y += 22
	}

	y = r.DrawSectionHeader(c.x+padding, y+4, "Particles")

	// Style
	active := gui.ToggleGroup(rl.Rectangle{X: x, Y: float32(y), Width: inner / 3, Height: 20},
		"Light;Dark;Colored", int32(opts.Style))
	if streamline.Style(active) != opts.Style {
		report(ctl.SetStyle(streamline.Style(active)))
	}
	y += 26

	// Particle count
	if c.pendingParticles == 0 {
		c.pendingParticles = float32(numParticles)
	}
	y = c.label(y, "Count", fmt.Sprintf("%d", int(c.pendingParticles)))
	c.pendingParticles = gui.SliderBar(rl.Rectangle{X: x, Y: float32(y), Width: inner, Height: 16},
		"", "", c.pendingParticles, minParticles, maxParticles)
	if rl.IsMouseButtonReleased(rl.MouseLeftButton) && int(c.pendingParticles) != numParticles {
		report(ctl.SetNumParticles(int(c.pendingParticles)))
	}
	y += 22

	var patch streamline.OptionsPatch
	y = c.slider(y, "Speed", opts.SpeedFactor, 0.01, 2, &patch.SpeedFactor)
	y = c.slider(y, "Fade /s", opts.FadeAmountPerSecond, 0, 20, &patch.FadeAmountPerSecond)
	y = c.slider(y, "Size px", opts.ParticleSize, 1, 16, &patch.ParticleSize)
	y = c.slider(y, "Respawn /s", opts.NumEliminatePerSecond, 0, 20000, &patch.NumEliminatePerSecond)
	y = c.slider(y, "Max step px", opts.MaxDisplacement, 0.25, 8, &patch.MaxDisplacement)
	report(ctl.UpdateOptions(patch))

	y = c.drawOverlayKeys(y+4, overlays)
	c.height = y - c.y + padding - lineHeight/2
	return errors.Join(errs...)
}

func (c *ControlPanel) label(y int32, name, value string) int32 {
	r := c.renderer
	return r.DrawLabelValue(c.x+r.Theme.Padding, y, name, value, c.width)
}

// slider draws a labelled slider and sets *dst when the value moved.
func (c *ControlPanel) slider(y int32, name string, value, min, max float64, dst **float64) int32 {
	r := c.renderer
	inner := float32(c.width - r.Theme.Padding*2)
	y = c.label(y, name, fmt.Sprintf("%.3g", value))
	got := gui.SliderBar(rl.Rectangle{X: float32(c.x + r.Theme.Padding), Y: float32(y), Width: inner, Height: 16},
		"", "", float32(value), float32(min), float32(max))
	if float64(got) != float64(float32(value)) {
		*dst = streamline.Float(float64(got))
	}
	return y + 22
}

// drawOverlayKeys lists the overlay toggles and returns the new Y position.
func (c *ControlPanel) drawOverlayKeys(y int32, overlays *OverlayRegistry) int32 {
	if overlays == nil {
		return y
	}
	r := c.renderer
	x := c.x + r.Theme.Padding
	y = r.DrawSectionHeader(x, y, "Overlays")
	for _, desc := range overlays.All() {
		c.drawToggle(x, y, desc, overlays.IsEnabled(desc.ID), c.width-r.Theme.Padding*2)
		y += r.Theme.LineHeight
	}
	return y
}

// drawToggle draws a single overlay toggle line.
func (c *ControlPanel) drawToggle(x, y int32, desc OverlayDescriptor, enabled bool, width int32) {
	r := c.renderer

	statusColor := rl.Color{R: 80, G: 80, B: 80, A: 255}
	if enabled {
		statusColor = rl.Color{R: 100, G: 200, B: 100, A: 255}
	}
	rl.DrawRectangle(x, y+2, 8, 8, statusColor)

	nameColor := r.Theme.LabelColor
	if enabled {
		nameColor = rl.White
	}
	rl.DrawText(desc.Name, x+14, y, r.Theme.FontSize, nameColor)

	if desc.KeyLabel != "" {
		keyText := fmt.Sprintf("[%s]", desc.KeyLabel)
		keyWidth := rl.MeasureText(keyText, r.Theme.FontSize)
		rl.DrawText(keyText, x+width-keyWidth, y, r.Theme.FontSize, rl.Color{R: 150, G: 150, B: 150, A: 255})
	}
}
