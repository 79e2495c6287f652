package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

// OverlayID names a toggleable part of the viewer.
type OverlayID string

const (
	OverlayHUD        OverlayID = "hud"
	OverlayLegend     OverlayID = "legend"
	OverlayControls   OverlayID = "controls"
	OverlayPerf       OverlayID = "perf"
	OverlayGraticule  OverlayID = "graticule"
	OverlayFetchBound OverlayID = "fetch_bounds"
)

// OverlayDescriptor describes one toggle and its hotkey.
type OverlayDescriptor struct {
	ID       OverlayID
	Name     string
	Key      int32  // 0 = no hotkey
	KeyLabel string
	// Panels sharing a screen slot; enabling one hides the others.
	SharesSlotWith []OverlayID
	Default        bool
}

// viewerOverlays lists the toggles in panel order.
var viewerOverlays = []OverlayDescriptor{
	{ID: OverlayHUD, Name: "HUD", Key: rl.KeyH, KeyLabel: "H", Default: true},
	{ID: OverlayLegend, Name: "Legend", Key: rl.KeyL, KeyLabel: "L", Default: true},
	{ID: OverlayControls, Name: "Controls", Key: rl.KeyC, KeyLabel: "C",
		SharesSlotWith: []OverlayID{OverlayPerf}, Default: true},
	{ID: OverlayPerf, Name: "Performance", Key: rl.KeyP, KeyLabel: "P",
		SharesSlotWith: []OverlayID{OverlayControls}},
	{ID: OverlayGraticule, Name: "Graticule", Key: rl.KeyG, KeyLabel: "G", Default: true},
	{ID: OverlayFetchBound, Name: "Fetch Bounds", Key: rl.KeyB, KeyLabel: "B"},
}

// OverlayRegistry tracks which overlays are visible.
type OverlayRegistry struct {
	list  []OverlayDescriptor
	state map[OverlayID]bool
}

// NewOverlayRegistry returns a registry with the viewer's overlays in their
// default state.
func NewOverlayRegistry() *OverlayRegistry {
	r := &OverlayRegistry{state: make(map[OverlayID]bool, len(viewerOverlays))}
	for _, d := range viewerOverlays {
		r.list = append(r.list, d)
		r.state[d.ID] = d.Default
	}
	return r
}

func (r *OverlayRegistry) find(id OverlayID) (OverlayDescriptor, bool) {
	for _, d := range r.list {
		if d.ID == id {
			return d, true
		}
	}
	return OverlayDescriptor{}, false
}

// Set shows or hides an overlay. Showing one hides its slot siblings.
func (r *OverlayRegistry) Set(id OverlayID, on bool) {
	d, ok := r.find(id)
	if !ok {
		return
	}
	r.state[id] = on
	if !on {
		return
	}
	for _, other := range d.SharesSlotWith {
		r.state[other] = false
	}
}

// Toggle flips an overlay and returns its new state.
func (r *OverlayRegistry) Toggle(id OverlayID) bool {
	r.Set(id, !r.state[id])
	return r.state[id]
}

// IsEnabled reports whether an overlay is shown.
func (r *OverlayRegistry) IsEnabled(id OverlayID) bool {
	return r.state[id]
}

// All returns the overlays in display order.
func (r *OverlayRegistry) All() []OverlayDescriptor {
	return r.list
}

// HandleKeyPress toggles the overlay bound to key. ok is false when no overlay
// uses the key.
func (r *OverlayRegistry) HandleKeyPress(key int32) (id OverlayID, enabled, ok bool) {
	if key == 0 {
		return "", false, false
	}
	for _, d := range r.list {
		if d.Key == key {
			return d.ID, r.Toggle(d.ID), true
		}
	}
	return "", false, false
}
