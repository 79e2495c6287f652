// Package ui draws the viewer's panels: the HUD, the colormap legend, the
// performance panel and a raygui control panel over the layer's mutation API.
package ui

import rl "github.com/gen2brain/raylib-go/raylib"

// Palette is the set of panel colours.
type Palette struct {
	PanelBg, PanelBorder   rl.Color
	SectionHeader          rl.Color
	LabelColor, ValueColor rl.Color
	ErrorColor             rl.Color
	BarBg, BarFill         rl.Color
}

// Metrics are panel sizes in pixels.
type Metrics struct {
	Padding, LineHeight      int32
	LabelWidth, BarHeight    int32
	FontSize, HeaderFontSize int32
}

// Theme is what every panel draws with.
type Theme struct {
	Palette
	Metrics
}

func rgba(r, g, b, a uint8) rl.Color { return rl.Color{R: r, G: g, B: b, A: a} }

// DefaultTheme is a dark blue theme that stays readable over the sea colour.
func DefaultTheme() Theme {
	return Theme{
		Palette: Palette{
			PanelBg:       rgba(12, 22, 34, 230),
			PanelBorder:   rgba(52, 78, 104, 255),
			SectionHeader: rgba(240, 200, 90, 255),
			LabelColor:    rgba(180, 190, 200, 255),
			ValueColor:    rgba(220, 225, 230, 255),
			ErrorColor:    rgba(230, 110, 100, 255),
			BarBg:         rgba(30, 40, 50, 255),
			BarFill:       rgba(90, 160, 210, 255),
		},
		Metrics: Metrics{
			Padding:        10,
			LineHeight:     16,
			LabelWidth:     90,
			BarHeight:      12,
			FontSize:       12,
			HeaderFontSize: 14,
		},
	}
}
