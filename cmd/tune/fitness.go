package main

import (
	"context"
	"math"
	"sync"

	"github.com/pthm-cable/streamflow/app"
	"github.com/pthm-cable/streamflow/config"
	"github.com/pthm-cable/streamflow/layer"
)

// Targets are the trail statistics the tuner aims for.
type Targets struct {
	Coverage  float64 // fraction of pixels carrying a visible trail
	MeanAlpha float64 // mean alpha of those pixels
}

// FitnessEvaluator runs headless renders and scores their trails.
type FitnessEvaluator struct {
	ctx        context.Context
	params     *ParamVector
	service    layer.DataService
	baseConfig *config.Config
	seeds      []int64
	frames     int
	targets    Targets

	mu       sync.Mutex
	lastEval evalResult
}

// evalResult holds seed-averaged trail statistics.
type evalResult struct {
	coverage  float64
	meanAlpha float64
	failed    int
}

// failedFitness scores a run that produced no field.
const failedFitness = 1e6

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(ctx context.Context, params *ParamVector, service layer.DataService, baseCfg *config.Config, seeds []int64, frames int, targets Targets) *FitnessEvaluator {
	return &FitnessEvaluator{
		ctx:        ctx,
		params:     params,
		service:    service,
		baseConfig: baseCfg,
		seeds:      seeds,
		frames:     frames,
		targets:    targets,
	}
}

// Last returns the trail statistics of the most recent evaluation.
func (fe *FitnessEvaluator) Last() (coverage, meanAlpha float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastEval.coverage, fe.lastEval.meanAlpha
}

// Evaluate computes fitness for a parameter vector (lower = better): the
// squared relative error of both trail statistics, averaged over seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	// Run all seeds in parallel
	results := make([]*app.HeadlessResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			res, err := app.RenderHeadless(fe.ctx, cfg, fe.service, app.HeadlessOptions{Frames: fe.frames, Seed: s})
			if err == nil {
				results[idx] = res
			}
		}(i, seed)
	}
	wg.Wait()

	var total float64
	var ev evalResult
	for _, r := range results {
		if r == nil {
			ev.failed++
			total += failedFitness
			continue
		}
		ev.coverage += r.Coverage
		ev.meanAlpha += r.MeanAlpha
		total += fe.score(r.Coverage, r.MeanAlpha)
	}
	if ok := len(results) - ev.failed; ok > 0 {
		ev.coverage /= float64(ok)
		ev.meanAlpha /= float64(ok)
	}

	fe.mu.Lock()
	fe.lastEval = ev
	fe.mu.Unlock()

	return total / float64(len(fe.seeds))
}

func (fe *FitnessEvaluator) score(coverage, meanAlpha float64) float64 {
	return relErr(coverage, fe.targets.Coverage) + relErr(meanAlpha, fe.targets.MeanAlpha)
}

// relErr is the squared relative error; a zero target uses absolute error.
func relErr(got, want float64) float64 {
	d := got - want
	if want != 0 {
		d /= want
	}
	return d * d
}

// copyConfig creates a copy of the base config whose tuned fields can be
// changed independently.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// isFinite reports whether every value is a finite number.
func isFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
