package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/config"
	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/velocity"
	"github.com/pthm-cable/streamflow/wms"
)

var testParams = velocity.Params{UOffset: -1, VOffset: -1, UScale: 2.0 / 255, VScale: 2.0 / 255}

// testConfig points the defaults at a small synthetic directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	caps := wms.DirectoryCapabilities{
		Times:  []string{"2024-01-01T00:00:00Z", "2024-01-01T06:00:00Z"},
		Bounds: streamline.GeoBoundingBox{West: -20, South: -10, East: 20, North: 10},
	}
	legend := []colormap.LegendEntry{{Value: 0, Color: "#000000"}, {Value: 1.5, Color: "#ff0000"}}
	rasters := make(map[string]*velocity.Image)
	for _, ts := range caps.Times {
		rasters[wms.RasterName(ts, nil)] = velocity.Uniform(16, 8, 255, 128, testParams)
	}
	if err := wms.WriteQuantity(root, "current", legend, caps, rasters); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Screen.Width, cfg.Screen.Height = 64, 32
	cfg.Service.Kind = "directory"
	cfg.Service.Directory = root
	cfg.Service.Quantity = "current"
	cfg.Layer.NumParticles = 256
	cfg.Layer.West, cfg.Layer.South, cfg.Layer.East, cfg.Layer.North = -20, -10, 20, 10
	return cfg
}

func TestRenderHeadless(t *testing.T) {
	cfg := testConfig(t)
	service, err := NewService(cfg.Service)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := RenderHeadless(ctx, cfg, service, HeadlessOptions{Frames: 10, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	frame := res.Frame
	if b := frame.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Fatalf("expected 64x32 frame, got %v", b)
	}
	if c := frame.NRGBAAt(32, 16); c.A != 255 || c.R == 0 {
		t.Errorf("expected an opaque magnitude colour at the centre, got %v", c)
	}
	if res.Coverage <= 0 || res.Stats.Frames != 10 {
		t.Errorf("expected visible trails over 10 frames, got coverage %v frames %d", res.Coverage, res.Stats.Frames)
	}
}

func TestRenderHeadlessNoField(t *testing.T) {
	cfg := testConfig(t)
	cfg.Service.Quantity = "wind"
	service, err := NewService(cfg.Service)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = RenderHeadless(ctx, cfg, service, HeadlessOptions{Frames: 1, Seed: 1})
	if !errors.Is(err, ErrNoField) {
		t.Errorf("expected ErrNoField, got %v", err)
	}
}

func TestLayerConfig(t *testing.T) {
	cfg := testConfig(t)
	lo, hi := 0.5, 2.0
	cfg.Layer.ValueMin = &lo
	cfg.Layer.DebounceSeconds = 0.5
	cfg.Visualiser.Seed = 7

	lc := LayerConfig(cfg, 0)
	if lc.ValueRange != nil {
		t.Errorf("expected no value range with only a minimum, got %+v", lc.ValueRange)
	}
	if lc.Debounce != 500*time.Millisecond {
		t.Errorf("expected 500ms debounce, got %v", lc.Debounce)
	}
	if lc.Seed != 7 {
		t.Errorf("expected config seed 7, got %d", lc.Seed)
	}

	cfg.Layer.ValueMax = &hi
	lc = LayerConfig(cfg, 42)
	if lc.ValueRange == nil || lc.ValueRange.Min != lo || lc.ValueRange.Max != hi {
		t.Errorf("expected value range [%v, %v], got %+v", lo, hi, lc.ValueRange)
	}
	if lc.Seed != 42 {
		t.Errorf("expected seed override 42, got %d", lc.Seed)
	}
}

func TestNewServiceUnknownKind(t *testing.T) {
	if _, err := NewService(config.ServiceConfig{Kind: "ftp"}); err == nil {
		t.Error("expected error for unknown service kind")
	}
}
