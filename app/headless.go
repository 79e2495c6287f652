package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/pthm-cable/streamflow/camera"
	"github.com/pthm-cable/streamflow/config"
	"github.com/pthm-cable/streamflow/layer"
	"github.com/pthm-cable/streamflow/software"
	"github.com/pthm-cable/streamflow/telemetry"
)

// HeadlessOptions configures a software render.
type HeadlessOptions struct {
	Frames int     // frames to advance after the data arrives
	FPS    float64 // simulated frame rate
	Seed   int64   // 0 = config seed
}

// HeadlessResult is the outcome of a software render.
type HeadlessResult struct {
	Frame *image.NRGBA
	// Fraction of trail pixels at or above CoverageThreshold, and their mean
	// alpha in [0, 1].
	Coverage  float64
	MeanAlpha float64
	Stats     telemetry.WindowStats
}

// CoverageThreshold is the trail alpha counted as visible.
const CoverageThreshold = 13

// ErrNoField is returned when the data service never produced a field.
var ErrNoField = errors.New("no velocity field")

// RenderHeadless renders opts.Frames frames of the configured view with the
// software backend and returns the last composited frame.
func RenderHeadless(ctx context.Context, cfg *config.Config, service layer.DataService, opts HeadlessOptions) (*HeadlessResult, error) {
	if opts.Frames < 0 {
		return nil, fmt.Errorf("invalid frame count %d", opts.Frames)
	}
	if opts.FPS <= 0 {
		opts.FPS = 60
	}
	lc := LayerConfig(cfg, opts.Seed)
	seed := lc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// Requests are driven by the frame loop below, not by camera moves.
	lc.Debounce = 0

	cam := camera.New(cfg.Screen.Width, cfg.Screen.Height, cfg.InitialView())
	backend := software.NewBackend(rand.New(rand.NewSource(seed)))
	l := layer.New(cam, service, lc)
	if err := l.OnAdd(backend); err != nil {
		return nil, err
	}
	defer l.OnRemove()

	if err := waitForData(ctx, l); err != nil {
		return nil, err
	}
	vis := l.Visualiser()
	if !vis.IsRunning() {
		return nil, ErrNoField
	}

	var frames telemetry.FrameWindow
	dt := 1 / opts.FPS
	start := time.Now()
	for i := 0; i < opts.Frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l.Render(dt)
		frames.Add(vis.Stats())
	}
	if opts.Frames == 0 {
		l.Render(0)
	}

	res := &HeadlessResult{
		Frame: backend.Frame(),
		Stats: frames.Flush(time.Duration(float64(opts.Frames) * dt * float64(time.Second))),
	}
	// Trails are released by OnRemove.
	if tr := backend.LastTrail(); tr != nil {
		res.Coverage, res.MeanAlpha = tr.Coverage(CoverageThreshold)
	}

	slog.Debug("headless render complete",
		"frames", opts.Frames,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"coverage", res.Coverage,
		"stats", res.Stats,
	)
	return res, nil
}

// waitForData applies fetch results until none are outstanding.
func waitForData(ctx context.Context, l *layer.Layer) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for l.Fetching() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for data: %w", ctx.Err())
		case <-ticker.C:
			l.Render(0)
		}
	}
	return nil
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding png: %w", err)
	}
	return f.Close()
}
