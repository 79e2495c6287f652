package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title        string
	Quantity     string
	Time         string
	Elevation    *float64
	NumParticles int
	Style        streamline.Style
	FPS          int32
	Running      bool
	Fetching     bool
	Frame        streamline.FrameStats
	ScreenHeight int32
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{
		renderer: NewRenderer(),
	}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	layer := data.Quantity
	if data.Time != "" {
		layer += " @ " + data.Time
	}
	if data.Elevation != nil {
		layer += fmt.Sprintf(" (%gm)", *data.Elevation)
	}
	rl.DrawText(layer, 10, 35, 16, rl.LightGray)

	rl.DrawText(
		fmt.Sprintf("Particles: %d | %s | FPS: %d | Sub-steps: %d",
			data.NumParticles, data.Style, data.FPS, data.Frame.Substeps),
		10, 55, 16, rl.LightGray,
	)

	status := "Running"
	switch {
	case data.Fetching:
		status = "Fetching..."
	case !data.Running:
		status = "STOPPED"
	}
	rl.DrawText(status, 10, 75, 16, rl.Yellow)
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// LegendPanel renders the magnitude colormap.
type LegendPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewLegendPanel creates a new legend panel.
func NewLegendPanel(x, y, width int32) *LegendPanel {
	return &LegendPanel{renderer: NewRenderer(), x: x, y: y, width: width}
}

// SetPosition updates the panel position.
func (l *LegendPanel) SetPosition(x, y int32) {
	l.x = x
	l.y = y
}

// Draw renders the legend; nothing is drawn without a colormap.
func (l *LegendPanel) Draw(title string, cm *colormap.Colormap) {
	if cm == nil {
		return
	}
	r := l.renderer
	padding := r.Theme.Padding
	height := r.Theme.LineHeight*2 + r.Theme.BarHeight + padding*2 + 2
	r.DrawPanel(l.x, l.y, l.width, height)

	y := r.DrawSectionHeader(l.x+padding, l.y+padding, title)
	r.DrawColormap(l.x+padding, y, cm, l.width-padding*2)
}

// PerfPanel renders frame timings and sub-stepping statistics.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y, width int32) *PerfPanel {
	return &PerfPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(perf telemetry.PerfStats, frames telemetry.WindowStats) {
	r := p.renderer
	padding := r.Theme.Padding
	inner := p.width - padding*2
	lines := int32(len(telemetry.Phases) + 8)
	r.DrawPanel(p.x, p.y, p.width, lines*r.Theme.LineHeight+padding*2)

	x := p.x + padding
	y := r.DrawSectionHeader(x, p.y+padding, "Performance")
	y = r.DrawLabelValue(x, y, "Frame avg", perf.AvgFrameDuration.Round(time.Microsecond).String(), inner)
	y = r.DrawLabelValue(x, y, "Frame p95", perf.P95FrameDuration.Round(time.Microsecond).String(), inner)
	y = r.DrawLabelValue(x, y, "FPS", fmt.Sprintf("%.0f", perf.FPS), inner)
	for _, phase := range telemetry.Phases {
		y = r.DrawBar(x, y, phase, float32(perf.PhasePct[phase]/100), inner)
	}

	y = r.DrawSpacer(y, 4)
	y = r.DrawSectionHeader(x, y, "Sub-stepping")
	y = r.DrawLabelValue(x, y, "Mean / p95", fmt.Sprintf("%.1f / %.0f", frames.SubstepsMean, frames.SubstepsP95), inner)
	y = r.DrawLabelValue(x, y, "Capped", fmt.Sprintf("%d of %d", frames.CappedFrames, frames.Frames), inner)
	r.DrawLabelValue(x, y, "dt min", fmt.Sprintf("%.4fs", frames.DtMin), inner)
}
