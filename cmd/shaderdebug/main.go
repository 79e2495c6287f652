// Shader debug tool - runs the GPU streamline pipeline in a hidden window and
// writes the final composite to a PNG file for inspection.
//
// Usage: go run ./cmd/shaderdebug -config config.yaml -frames 120 -out debug.png
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"runtime"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/app"
	"github.com/pthm-cable/streamflow/camera"
	"github.com/pthm-cable/streamflow/config"
	"github.com/pthm-cable/streamflow/layer"
	"github.com/pthm-cable/streamflow/renderer"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outPath := flag.String("out", "debug.png", "Output PNG path")
	width := flag.Int("width", 512, "Render width")
	height := flag.Int("height", 512, "Render height")
	frames := flag.Int("frames", 120, "Frames to advance before capturing")
	seed := flag.Int64("seed", 1, "RNG seed")
	timeout := flag.Duration("timeout", 30*time.Second, "Maximum wait for the data service")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	service, err := app.NewService(cfg.Service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create data service: %v\n", err)
		os.Exit(1)
	}

	// Initialize raylib with hidden window
	rl.SetConfigFlags(rl.FlagWindowHidden)
	rl.InitWindow(int32(*width), int32(*height), "Shader Debug")
	defer rl.CloseWindow()

	backend, err := renderer.NewBackend(rand.New(rand.NewSource(*seed)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load shaders: %v\n", err)
		os.Exit(1)
	}
	defer backend.Unload()

	cam := camera.New(*width, *height, cfg.InitialView())
	l := layer.New(cam, service, app.LayerConfig(cfg, *seed))
	if err := l.OnAdd(backend); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create layer: %v\n", err)
		os.Exit(1)
	}
	defer l.OnRemove()

	// Apply fetch results until the field is on screen.
	deadline := time.Now().Add(*timeout)
	for l.Fetching() {
		if time.Now().After(deadline) {
			fmt.Fprintf(os.Stderr, "Timed out waiting for data\n")
			os.Exit(1)
		}
		rl.BeginDrawing()
		l.Render(0)
		rl.EndDrawing()
		time.Sleep(10 * time.Millisecond)
	}
	vis := l.Visualiser()
	if !vis.IsRunning() {
		fmt.Fprintf(os.Stderr, "No velocity field received\n")
		os.Exit(1)
	}

	var img *rl.Image
	for i := 0; i < *frames || img == nil; i++ {
		rl.BeginDrawing()
		rl.ClearBackground(rl.Black)
		l.Render(1.0 / 60)
		if i >= *frames-1 {
			img = rl.LoadImageFromScreen()
		}
		rl.EndDrawing()
	}

	s := vis.Stats()
	slog.Info("pipeline state",
		"dt_min", vis.DtMin(),
		"substeps", s.Substeps,
		"fade", s.Fade,
		"dithered", s.DitheredFade,
	)

	// Export to PNG
	success := rl.ExportImage(*img, *outPath)
	rl.UnloadImage(img)

	if success {
		fmt.Printf("Pipeline rendered to: %s (%dx%d, %d frames)\n", *outPath, *width, *height, *frames)
	} else {
		fmt.Fprintf(os.Stderr, "Failed to export image\n")
		os.Exit(1)
	}
}
