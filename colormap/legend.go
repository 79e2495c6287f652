package colormap

import (
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/lucasb-eyer/go-colorful"
)

// LegendEntry is one threshold of a legend as served by the data service.
type LegendEntry struct {
	Value float64 `csv:"value" json:"lowerValue"`
	Color string  `csv:"color" json:"color"`
}

// FromLegend builds a colormap from legend entries. Entries must already be
// ordered by increasing value.
func FromLegend(entries []LegendEntry) (*Colormap, error) {
	values := make([]float64, len(entries))
	colors := make([]color.NRGBA, len(entries))
	for i, e := range entries {
		c, err := ParseColor(e.Color)
		if err != nil {
			return nil, fmt.Errorf("legend entry %d: %w", i, err)
		}
		values[i] = e.Value
		colors[i] = c
	}
	return New(values, colors)
}

// ReadLegendCSV reads legend entries from CSV with a "value,color" header.
func ReadLegendCSV(r io.Reader) ([]LegendEntry, error) {
	var entries []LegendEntry
	if err := gocsv.Unmarshal(r, &entries); err != nil {
		return nil, fmt.Errorf("parsing legend csv: %w", err)
	}
	return entries, nil
}

// LoadCSV reads a legend CSV and builds its colormap.
func LoadCSV(r io.Reader) (*Colormap, error) {
	entries, err := ReadLegendCSV(r)
	if err != nil {
		return nil, err
	}
	return FromLegend(entries)
}

// RescaleLegend maps the legend thresholds linearly onto [min, max],
// keeping the colours.
func RescaleLegend(entries []LegendEntry, min, max float64) []LegendEntry {
	out := make([]LegendEntry, len(entries))
	copy(out, entries)
	if len(entries) < 2 {
		return out
	}
	lo, hi := entries[0].Value, entries[len(entries)-1].Value
	for i := range out {
		t := 0.0
		if hi != lo {
			t = (entries[i].Value - lo) / (hi - lo)
		}
		out[i].Value = min + t*(max-min)
	}
	return out
}

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	alpha := uint8(255)
	if len(s) == 9 && s[0] == '#' {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("parsing alpha of %q: %w", s, err)
		}
		alpha = uint8(a)
		s = s[:7]
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("parsing color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}
