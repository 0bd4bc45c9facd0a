package main

import (
	"context"
	"math"
	"slices"
	"sync"

	"github.com/pthm-cable/mpm/config"
	"github.com/pthm-cable/mpm/parallel"
	"github.com/pthm-cable/mpm/sim"
)

// failedFitness is returned for runs that error out or blow up.
const failedFitness = 1e6

// FitnessEvaluator runs headless simulations and scores how closely the
// settled block matches a target height.
type FitnessEvaluator struct {
	params       *ParamVector
	baseConfig   *config.Config
	drops        []float64 // extra drop heights, one run each
	targetHeight float64

	mu         sync.Mutex
	lastHeight float64 // mean settled height from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, drops []float64, targetHeight float64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:       params,
		baseConfig:   baseCfg,
		drops:        drops,
		targetHeight: targetHeight,
	}
}

// LastHeight returns the mean settled height from the most recent evaluation.
func (fe *FitnessEvaluator) LastHeight() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastHeight
}

// runResult holds the results from a single simulation run.
type runResult struct {
	height  float64 // block extent along Y after the run
	settled float64 // kinetic energy over initial potential energy
	err     error
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	// Run all drops in parallel
	results := make([]runResult, len(fe.drops))
	var wg sync.WaitGroup
	for i, drop := range fe.drops {
		wg.Add(1)
		go func(idx int, lift float64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(cfg, lift)
		}(i, drop)
	}
	wg.Wait()

	var total, height float64
	for _, r := range results {
		total += fe.computeFitness(r)
		height += r.height
	}
	n := float64(len(results))
	fitness := total / n

	fe.mu.Lock()
	fe.lastHeight = height / n
	fe.mu.Unlock()
	return fitness
}

func (fe *FitnessEvaluator) computeFitness(r runResult) float64 {
	if r.err != nil || math.IsNaN(r.height) || math.IsNaN(r.settled) {
		return failedFitness
	}
	rel := (r.height - fe.targetHeight) / fe.targetHeight
	return rel*rel + r.settled
}

// runSimulation drops a copy of the configured block from lift above its
// configured origin and measures it at the end of the run.
func (fe *FitnessEvaluator) runSimulation(base *config.Config, lift float64) runResult {
	cfg := *base
	cfg.Scene.Block.Origin[1] += lift

	p, colliders, err := sim.BuildScene(&cfg)
	if err != nil {
		return runResult{err: err}
	}
	pool := parallel.New(1, 0)
	defer pool.Close()
	state, err := sim.NewState(p, colliders, pool, nil)
	if err != nil {
		return runResult{err: err}
	}

	potential := 0.0
	g := -cfg.Settings.GravityVec().Y
	for i := range p.Positions {
		potential += p.Masses[i] * g * math.Max(p.Positions[i].Y, 0)
	}

	runner := sim.NewRunner(&cfg, state, nil, nil)
	if err := runner.Run(context.Background()); err != nil {
		return runResult{err: err}
	}

	ys := make([]float64, p.Len())
	for i, x := range p.Positions {
		ys[i] = x.Y
	}
	stats := state.Stats()
	r := runResult{height: slices.Max(ys) - slices.Min(ys)}
	if potential > 0 {
		r.settled = stats.KineticEnergy / potential
	}
	return r
}

// copyConfig creates a copy of the base config whose scene can be modified
// without touching the base.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Scene.Colliders = slices.Clone(fe.baseConfig.Scene.Colliders)
	cfg.Scene.Block.Inside = slices.Clone(fe.baseConfig.Scene.Block.Inside)
	return &cfg
}
