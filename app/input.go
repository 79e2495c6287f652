package app

import (
	"log/slog"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/ui"
)

// Keyboard pan speed in pixels per frame.
const panSpeed = 8.0

// handleInput processes window, keyboard and mouse input.
func (a *App) handleInput() {
	a.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		a.toggleRunning()
	}

	for key := rl.GetKeyPressed(); key != 0; key = rl.GetKeyPressed() {
		if id, enabled, ok := a.overlays.HandleKeyPress(key); ok {
			slog.Debug("overlay toggled", "overlay", string(id), "enabled", enabled)
		}
	}

	if a.handleCameraInput() {
		a.layer.OnMove()
	}
}

// handleResize propagates window size changes to the camera, the layer and
// the panel layout.
func (a *App) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w, h := int(rl.GetScreenWidth()), int(rl.GetScreenHeight())
	if w <= 0 || h <= 0 {
		return
	}
	if a.camera.Resize(w, h) {
		a.layer.OnResize()
		a.layoutPanels(w)
	}
}

// toggleRunning starts or stops the animation. Stopping keeps the last frame
// on screen.
func (a *App) toggleRunning() {
	vis := a.layer.Visualiser()
	if vis.IsRunning() {
		vis.Stop()
		return
	}
	if vis.IsInitialised() && vis.HasVelocity() && !a.layer.FetchBounds().IsEmpty() {
		vis.Start()
	}
}

// overPanel reports whether the pointer is over an interactive panel.
func (a *App) overPanel(pos rl.Vector2) bool {
	return a.overlays.IsEnabled(ui.OverlayControls) && a.controls.Contains(pos)
}

// handleCameraInput processes pan/zoom controls and reports whether the
// view moved.
func (a *App) handleCameraInput() bool {
	moved := false
	mouse := rl.GetMousePosition()

	// Drag to pan, unless the drag started on a panel.
	if rl.IsMouseButtonPressed(rl.MouseLeftButton) && !a.overPanel(mouse) {
		a.dragging = true
	}
	if !rl.IsMouseButtonDown(rl.MouseLeftButton) {
		a.dragging = false
	}
	if a.dragging {
		if d := rl.GetMouseDelta(); d.X != 0 || d.Y != 0 {
			a.camera.Pan(float64(-d.X), float64(-d.Y))
			moved = true
		}
	}

	// Arrow key panning
	var dx, dy float64
	if rl.IsKeyDown(rl.KeyRight) {
		dx += panSpeed
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		dx -= panSpeed
	}
	if rl.IsKeyDown(rl.KeyDown) {
		dy += panSpeed
	}
	if rl.IsKeyDown(rl.KeyUp) {
		dy -= panSpeed
	}
	if dx != 0 || dy != 0 {
		a.camera.Pan(dx, dy)
		moved = true
	}

	// Zoom toward the cursor with the wheel, toward the centre with +/-
	if wheel := rl.GetMouseWheelMove(); wheel != 0 && !a.overPanel(mouse) {
		a.camera.ZoomAt(math.Pow(1.1, float64(wheel)), float64(mouse.X), float64(mouse.Y))
		moved = true
	}
	cx, cy := float64(a.camera.ViewportW)/2, float64(a.camera.ViewportH)/2
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		a.camera.ZoomAt(1.25, cx, cy)
		moved = true
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		a.camera.ZoomAt(0.8, cx, cy)
		moved = true
	}

	if rl.IsKeyPressed(rl.KeyHome) {
		a.camera.Reset()
		moved = true
	}
	return moved
}
