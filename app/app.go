// Package app runs the interactive viewer: a raylib window acting as the map
// host for a streamline layer, with panels and perf telemetry on top.
package app

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/camera"
	"github.com/pthm-cable/streamflow/config"
	"github.com/pthm-cable/streamflow/layer"
	"github.com/pthm-cable/streamflow/renderer"
	"github.com/pthm-cable/streamflow/telemetry"
	"github.com/pthm-cable/streamflow/ui"
)

// Panel layout
const (
	panelWidth  = 240
	panelMargin = 10
	legendH     = 70
)

var (
	seaColor  = rl.NewColor(14, 22, 34, 255)
	gridColor = rl.NewColor(70, 90, 110, 255)
)

const controlsHelp = "Drag: pan | Wheel/+/-: zoom | Home: reset | Space: start/stop | F11: fullscreen | H L C P G B: overlays"

// Options configures the viewer.
type Options struct {
	Seed      int64  // 0 = config seed
	OutputDir string // CSV telemetry directory, "" = config csv_path
}

// App owns the window-side state of the viewer.
type App struct {
	cfg *config.Config

	camera     *camera.Camera
	backend    *renderer.Backend
	background *renderer.BackgroundRenderer
	layer      *layer.Layer

	overlays  *ui.OverlayRegistry
	hud       *ui.HUD
	legend    *ui.LegendPanel
	controls  *ui.ControlPanel
	perfPanel *ui.PerfPanel

	perf       *telemetry.PerfCollector
	frames     telemetry.FrameWindow
	output     *telemetry.OutputManager
	perfStats  telemetry.PerfStats
	frameStats telemetry.WindowStats
	start      time.Time
	lastLog    time.Time

	dragging bool
}

// New creates the viewer and starts the initial fetches. The raylib window
// must already be open.
func New(service layer.DataService, opts Options) (*App, error) {
	cfg := config.Cfg()
	w, h := int(rl.GetScreenWidth()), int(rl.GetScreenHeight())

	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Visualiser.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	a := &App{
		cfg:      cfg,
		camera:   camera.New(w, h, cfg.InitialView()),
		overlays: ui.NewOverlayRegistry(),
		hud:      ui.NewHUD(),
		perf:     telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		start:    time.Now(),
	}
	a.lastLog = a.start
	a.legend = ui.NewLegendPanel(0, 0, panelWidth)
	a.controls = ui.NewControlPanel(0, 0, panelWidth)
	a.perfPanel = ui.NewPerfPanel(0, 0, panelWidth)
	a.layoutPanels(w)

	var err error
	a.backend, err = renderer.NewBackend(rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, fmt.Errorf("creating backend: %w", err)
	}
	a.background, err = renderer.NewBackgroundRenderer(seaColor, gridColor)
	if err != nil {
		a.backend.Unload()
		return nil, fmt.Errorf("creating background: %w", err)
	}

	a.layer = layer.New(a.camera, service, LayerConfig(cfg, seed))
	if err := a.layer.OnAdd(a.backend); err != nil {
		a.background.Unload()
		a.backend.Unload()
		return nil, err
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = cfg.Telemetry.CSVPath
	}
	a.output, err = telemetry.NewOutputManager(dir)
	if err != nil {
		slog.Warn("telemetry output disabled", "dir", dir, "error", err)
		a.output = nil
	}
	if err := a.output.WriteConfig(cfg); err != nil {
		slog.Warn("failed to write config snapshot", "error", err)
	}

	slog.Info("viewer started",
		"width", w,
		"height", h,
		"quantity", cfg.Service.Quantity,
		"particles", cfg.Layer.NumParticles,
		"seed", seed,
	)
	return a, nil
}

// layoutPanels anchors the panels to the right edge of the window.
func (a *App) layoutPanels(screenW int) {
	x := int32(screenW) - panelWidth - panelMargin
	a.legend.SetPosition(x, panelMargin)
	a.controls.SetPosition(x, panelMargin*2+legendH)
	a.perfPanel.SetPosition(x, panelMargin*2+legendH)
}

// Frame runs one iteration of the window loop.
func (a *App) Frame() {
	a.perf.StartFrame()

	a.perf.StartPhase(telemetry.PhaseInput)
	a.handleInput()
	dt := float64(rl.GetFrameTime())

	rl.BeginDrawing()
	rl.ClearBackground(seaColor)

	a.perf.StartPhase(telemetry.PhaseBackground)
	w, h := a.camera.Size()
	if a.overlays.IsEnabled(ui.OverlayGraticule) {
		a.background.Draw(a.camera.Bounds(), w, h)
	}

	a.perf.StartPhase(telemetry.PhaseLayer)
	a.layer.Render(dt)
	if vis := a.layer.Visualiser(); vis.IsRunning() {
		a.frames.Add(vis.Stats())
	}

	a.perf.StartPhase(telemetry.PhaseUI)
	a.drawOverlays()

	a.perf.StartPhase(telemetry.PhasePresent)
	rl.EndDrawing()
	a.perf.EndFrame()

	a.flushTelemetry()
}

// drawOverlays draws the enabled panels on top of the layer.
func (a *App) drawOverlays() {
	vis := a.layer.Visualiser()
	screenH := int32(a.camera.ViewportH)

	if a.overlays.IsEnabled(ui.OverlayFetchBound) {
		a.drawFetchBounds()
	}
	if a.overlays.IsEnabled(ui.OverlayHUD) {
		a.hud.Draw(ui.HUDData{
			Title:        a.cfg.Screen.Title,
			Quantity:     a.cfg.Service.Quantity,
			Time:         a.layer.Applied().Time,
			Elevation:    a.layer.Elevation(),
			NumParticles: vis.NumParticles(),
			Style:        vis.Options().Style,
			FPS:          rl.GetFPS(),
			Running:      vis.IsRunning(),
			Fetching:     a.layer.Fetching(),
			Frame:        vis.Stats(),
			ScreenHeight: screenH,
		})
		a.hud.DrawControls(screenH, controlsHelp)
	}
	if a.overlays.IsEnabled(ui.OverlayLegend) {
		a.legend.Draw(a.cfg.Service.Quantity, vis.Colormap())
	}
	if a.overlays.IsEnabled(ui.OverlayControls) {
		if err := a.controls.Draw(a.layer, vis.Options(), vis.NumParticles(), a.overlays); err != nil {
			slog.Warn("control change rejected", "error", err)
		}
	}
	if a.overlays.IsEnabled(ui.OverlayPerf) {
		a.perfPanel.Draw(a.perfStats, a.frameStats)
	}
}

// drawFetchBounds outlines the area covered by the raster on screen.
func (a *App) drawFetchBounds() {
	b := a.layer.FetchBounds()
	if b.IsEmpty() {
		return
	}
	x, y := a.camera.WorldToScreen(b.MinX, b.MaxY)
	rl.DrawRectangleLinesEx(rl.Rectangle{
		X:      float32(x),
		Y:      float32(y),
		Width:  float32(b.Width() / a.camera.Resolution),
		Height: float32(b.Height() / a.camera.Resolution),
	}, 2, rl.Orange)
}

// flushTelemetry logs and records perf and sub-step statistics once per
// configured interval.
func (a *App) flushTelemetry() {
	interval := time.Duration(a.cfg.Telemetry.LogIntervalSeconds * float64(time.Second))
	if interval <= 0 || time.Since(a.lastLog) < interval {
		return
	}
	now := time.Now()
	a.lastLog = now
	elapsed := now.Sub(a.start)

	a.perfStats = a.perf.Stats()
	a.frameStats = a.frames.Flush(elapsed)
	a.perfStats.LogStats()
	slog.Info("frames", "stats", a.frameStats)

	if err := a.output.WritePerf(a.perfStats.ToCSV(elapsed)); err != nil {
		slog.Warn("telemetry write failed", "error", err)
	}
	if err := a.output.WriteFrames(a.frameStats); err != nil {
		slog.Warn("telemetry write failed", "error", err)
	}
}

// Unload releases the layer, the GPU resources and the telemetry files.
func (a *App) Unload() {
	a.layer.OnRemove()
	a.background.Unload()
	a.backend.Unload()
	if err := a.output.Close(); err != nil {
		slog.Warn("closing telemetry output", "error", err)
	}
}
