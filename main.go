package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/app"
	"github.com/pthm-cable/streamflow/config"
)

func init() {
	// raylib must be driven from the thread that created the GL context.
	runtime.LockOSThread()
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Render with the software backend and write a PNG instead of opening a window")
	frames := flag.Int("frames", 300, "Frames to render in headless mode")
	fps := flag.Float64("fps", 60, "Simulated frame rate in headless mode")
	out := flag.String("out", "streamflow.png", "Output PNG for headless mode")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (overrides telemetry.csv_path)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config seed, then time-based)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	service, err := app.NewService(cfg.Service)
	if err != nil {
		slog.Error("failed to create data service", "kind", cfg.Service.Kind, "error", err)
		os.Exit(1)
	}

	if *headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		slog.Info("starting headless render",
			"frames", *frames,
			"fps", *fps,
			"out", *out,
		)
		start := time.Now()
		res, err := app.RenderHeadless(ctx, cfg, service, app.HeadlessOptions{
			Frames: *frames,
			FPS:    *fps,
			Seed:   *seed,
		})
		if err != nil {
			slog.Error("headless render failed", "error", err)
			os.Exit(1)
		}
		if err := app.WritePNG(*out, res.Frame); err != nil {
			slog.Error("failed to write output", "error", err)
			os.Exit(1)
		}
		slog.Info("wrote frame",
			"path", *out,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"trail_coverage", res.Coverage,
			"stats", res.Stats,
		)
		return
	}

	// Graphical mode
	rl.SetConfigFlags(rl.FlagWindowResizable)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Screen.Title)
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	a, err := app.New(service, app.Options{Seed: *seed, OutputDir: *outputDir})
	if err != nil {
		slog.Error("failed to start viewer", "error", err)
		os.Exit(1)
	}
	defer a.Unload()

	for !rl.WindowShouldClose() {
		a.Frame()
	}
}
