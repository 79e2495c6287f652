package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/streamflow/app"
	"github.com/pthm-cable/streamflow/config"
)

type options struct {
	configPath string
	frames     int
	seeds      int
	maxEvals   int
	population int
	targets    Targets
	outputDir  string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	flag.IntVar(&opts.frames, "frames", 180, "Frames rendered per evaluation")
	flag.IntVar(&opts.seeds, "seeds", 3, "Seeds per evaluation")
	flag.IntVar(&opts.maxEvals, "max-evals", 60, "Evaluation budget")
	flag.IntVar(&opts.population, "population", 0, "CMA-ES population size (0 = auto)")
	flag.Float64Var(&opts.targets.Coverage, "coverage", 0.25, "Target fraction of pixels with visible trails")
	flag.Float64Var(&opts.targets.MeanAlpha, "mean-alpha", 0.45, "Target mean alpha of trail pixels")
	flag.StringVar(&opts.outputDir, "output", "", "Directory for tune_log.csv and best_config.yaml")
	flag.Parse()

	if opts.outputDir == "" {
		log.Fatal("-output is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, opts options) error {
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	base, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	service, err := app.NewService(base.Service)
	if err != nil {
		return fmt.Errorf("creating data service: %w", err)
	}

	params := NewParamVector()
	seeds := make([]int64, opts.seeds)
	for i := range seeds {
		seeds[i] = 42 + int64(i)*1000
	}

	t, err := newTuner(filepath.Join(opts.outputDir, "tune_log.csv"), params, opts.maxEvals)
	if err != nil {
		return err
	}
	defer t.close()
	t.eval = NewFitnessEvaluator(ctx, params, service, base, seeds, opts.frames, opts.targets)

	pop := opts.population
	if pop == 0 {
		pop = 4 + 3*params.Dim()/2
	}
	fmt.Printf("CMA-ES over %d parameters, population %d, %d evaluations\n", params.Dim(), pop, opts.maxEvals)
	fmt.Printf("%d seeds x %d frames per evaluation, targets coverage=%.2f alpha=%.2f\n",
		opts.seeds, opts.frames, opts.targets.Coverage, opts.targets.MeanAlpha)

	x0 := params.Normalize(params.Clamp(params.ExtractFromConfig(base)))
	problem := optimize.Problem{Func: func(x []float64) float64 {
		if ctx.Err() != nil || !isFinite(x) {
			return failedFitness
		}
		return t.evaluate(x)
	}}
	// Seeds already render in parallel.
	settings := &optimize.Settings{FuncEvaluations: opts.maxEvals, Concurrent: 0}
	method := &optimize.CmaEsChol{InitStepSize: 0.3, Population: pop}

	result, err := optimize.Minimize(problem, x0, settings, method)
	if err != nil {
		log.Printf("optimiser stopped: %v", err)
	}

	best := t.best
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		return errors.New("no evaluation completed")
	}

	fmt.Printf("\n%d evaluations in %s, best fitness %.4f\n", t.count, formatDuration(time.Since(t.start)), t.bestFitness)
	for i, s := range params.Specs {
		fmt.Printf("  %s: %.6f\n", s.Path, best[i])
	}

	// Reload so the written file carries the base config, not a copy mutated
	// by the last evaluation.
	out, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("reloading config: %w", err)
	}
	params.ApplyToConfig(out, best)
	path := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := out.WriteYAML(path); err != nil {
		return fmt.Errorf("writing best config: %w", err)
	}
	fmt.Printf("Best config saved to %s\n", path)
	return nil
}

// tuner logs every evaluation to CSV and remembers the best one.
type tuner struct {
	params   *ParamVector
	eval     *FitnessEvaluator
	maxEvals int

	file *os.File
	csv  *csv.Writer

	start       time.Time
	count       int
	bestFitness float64
	best        []float64
}

func newTuner(logPath string, params *ParamVector, maxEvals int) (*tuner, error) {
	f, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("creating log: %w", err)
	}
	t := &tuner{
		params:      params,
		maxEvals:    maxEvals,
		file:        f,
		csv:         csv.NewWriter(f),
		start:       time.Now(),
		bestFitness: failedFitness,
	}
	header := []string{"eval", "fitness", "coverage", "mean_alpha"}
	for _, s := range params.Specs {
		header = append(header, s.Name)
	}
	if err := t.csv.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

func (t *tuner) evaluate(x []float64) float64 {
	// Logged values are the clamped ones the renderer actually used.
	values := t.params.Clamp(t.params.Denormalize(x))
	fitness := t.eval.Evaluate(values)
	t.count++
	if fitness < t.bestFitness {
		t.bestFitness = fitness
		t.best = values
	}

	cov, alpha := t.eval.Last()
	row := []string{
		strconv.Itoa(t.count),
		strconv.FormatFloat(fitness, 'f', 6, 64),
		strconv.FormatFloat(cov, 'f', 4, 64),
		strconv.FormatFloat(alpha, 'f', 4, 64),
	}
	for _, v := range values {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	if err := t.csv.Write(row); err != nil {
		log.Printf("writing log row: %v", err)
	}
	t.csv.Flush()

	elapsed := time.Since(t.start)
	eta := time.Duration(t.maxEvals-t.count) * (elapsed / time.Duration(t.count))
	fmt.Printf("[%d/%d] coverage=%.3f alpha=%.3f fitness=%.4f best=%.4f elapsed=%s eta=%s\n",
		t.count, t.maxEvals, cov, alpha, fitness, t.bestFitness, formatDuration(elapsed), formatDuration(eta))
	return fitness
}

func (t *tuner) close() {
	t.csv.Flush()
	t.file.Close()
}

// formatDuration renders d as 1h02m03s, dropping the hours when zero.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
