// Synthetic field generator - writes a data directory served by the
// "directory" service kind: a legend, capabilities and one velocity raster per
// time step and elevation.
//
// Usage: go run ./cmd/synthfield -root testdata/field -times 8
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/velocity"
	"github.com/pthm-cable/streamflow/wms"
)

// Legend stops, blended in HCL.
var legendStops = []string{"#0d0887", "#7e03a8", "#cc4778", "#f89540", "#f0f921"}

// vortex is a Gaussian eddy drifting eastwards over time.
type vortex struct {
	x, y     float64 // normalised centre at t=0
	radius   float64
	strength float64 // peak tangential speed in m/s, sign is rotation
	drift    float64 // normalised eastward drift per time step
}

var vortices = []vortex{
	{x: 0.25, y: 0.35, radius: 0.08, strength: 1.2, drift: 0.02},
	{x: 0.6, y: 0.65, radius: 0.12, strength: -0.9, drift: 0.015},
	{x: 0.8, y: 0.3, radius: 0.06, strength: 1.5, drift: 0.03},
}

func main() {
	root := flag.String("root", "testdata/field", "Output directory")
	quantity := flag.String("quantity", "sea_water_velocity", "Quantity (layer) name")
	width := flag.Int("width", 512, "Raster width")
	height := flag.Int("height", 256, "Raster height")
	times := flag.Int("times", 8, "Number of time steps")
	step := flag.Duration("step", 6*time.Hour, "Interval between time steps")
	elevations := flag.String("elevations", "", "Comma-separated elevations in metres (empty = none)")
	maxSpeed := flag.Float64("max-speed", 2, "Largest representable speed in m/s")
	west := flag.Float64("west", -40, "West bound in degrees")
	south := flag.Float64("south", 20, "South bound in degrees")
	east := flag.Float64("east", 40, "East bound in degrees")
	north := flag.Float64("north", 70, "North bound in degrees")
	flag.Parse()

	levels, err := parseElevations(*elevations)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid elevations: %v\n", err)
		os.Exit(1)
	}

	legend, err := buildLegend(*maxSpeed, 16)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build legend: %v\n", err)
		os.Exit(1)
	}

	caps := wms.DirectoryCapabilities{
		Bounds: streamline.GeoBoundingBox{West: *west, South: *south, East: *east, North: *north},
	}
	if len(levels) > 0 {
		caps.Elevation = &wms.ElevationRange{Min: levels[0], Max: levels[len(levels)-1]}
	}

	p := velocity.Params{
		UOffset: -*maxSpeed,
		VOffset: -*maxSpeed,
		UScale:  2 * *maxSpeed / 255,
		VScale:  2 * *maxSpeed / 255,
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rasters := make(map[string]*velocity.Image)
	for k := 0; k < *times; k++ {
		ts := start.Add(time.Duration(k) * *step).Format(time.RFC3339)
		caps.Times = append(caps.Times, ts)

		if len(levels) == 0 {
			img, err := velocity.Generate(*width, *height, p, field(k, 1))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to generate raster: %v\n", err)
				os.Exit(1)
			}
			rasters[wms.RasterName(ts, nil)] = img
			continue
		}
		for _, e := range levels {
			// Currents weaken with depth.
			damp := math.Exp(e / 200)
			img, err := velocity.Generate(*width, *height, p, field(k, damp))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to generate raster: %v\n", err)
				os.Exit(1)
			}
			elev := e
			rasters[wms.RasterName(ts, &elev)] = img
		}
	}

	if err := wms.WriteQuantity(*root, *quantity, legend, caps, rasters); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write directory: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d rasters for %q to %s\n", len(rasters), *quantity, *root)
}

// field returns the velocity at time step k: a meandering zonal jet plus
// drifting eddies, scaled by damp.
func field(k int, damp float64) func(x, y float64) (float64, float64) {
	phase := float64(k) * 0.4
	return func(x, y float64) (float64, float64) {
		// Raster y grows southwards; flip so v is northward.
		ny := 1 - y
		jetY := 0.5 + 0.08*math.Sin(2*math.Pi*(2*x)+phase)
		jet := 0.8 * math.Exp(-math.Pow((ny-jetY)/0.06, 2))
		u := jet
		v := jet * 0.08 * 2 * math.Pi * 2 * math.Cos(2*math.Pi*(2*x)+phase)

		for _, vx := range vortices {
			cx := math.Mod(vx.x+vx.drift*float64(k), 1)
			dx, dy := x-cx, ny-vx.y
			r2 := dx*dx + dy*dy
			s := vx.strength * math.Exp(-r2/(2*vx.radius*vx.radius)) / vx.radius
			u += -dy * s
			v += dx * s
		}
		return u * damp, v * damp
	}
}

// buildLegend blends the stops into n entries spanning [0, maxSpeed].
func buildLegend(maxSpeed float64, n int) ([]colormap.LegendEntry, error) {
	stops := make([]colorful.Color, len(legendStops))
	for i, s := range legendStops {
		c, err := colorful.Hex(s)
		if err != nil {
			return nil, err
		}
		stops[i] = c
	}

	entries := make([]colormap.LegendEntry, n)
	for i := range entries {
		t := float64(i) / float64(n-1)
		pos := t * float64(len(stops)-1)
		j := int(math.Min(pos, float64(len(stops)-2)))
		c := stops[j].BlendHcl(stops[j+1], pos-float64(j)).Clamped()
		entries[i] = colormap.LegendEntry{Value: t * maxSpeed, Color: c.Hex()}
	}
	return entries, nil
}

// parseElevations parses a comma-separated list, sorted ascending.
func parseElevations(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out, nil
}
