package main

import (
	"math"
	"math/rand"
	"sync"

	"github.com/oyin-bo/octograv/config"
	"github.com/oyin-bo/octograv/gravity"
	"github.com/oyin-bo/octograv/octree"
	"github.com/oyin-bo/octograv/scenario"
	"github.com/oyin-bo/octograv/telemetry"
)

// Score weights. Components live on wildly different scales, so each
// enters through log10 and the weights set their relative pull.
const (
	weightForce = 1.0
	weightDrift = 0.5
	weightCost  = 0.25
	scoreFloor  = 1e-9

	forceSamples = 64  // particles compared against the direct sum
	failScore    = 100 // returned when a run cannot be built
)

// FitnessEvaluator runs headless simulations and scores parameter sets.
// Lower scores are better.
type FitnessEvaluator struct {
	params     *ParamVector
	scenario   string
	particles  int
	steps      int
	seeds      []int64
	baseConfig *config.Config
	board      *Leaderboard

	mu        sync.Mutex
	evalCount int
	lastErr   float64
	lastDrift float64
	lastCost  float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, scenarioName string, particles, steps int, seeds []int64, baseCfg *config.Config, board *Leaderboard) *FitnessEvaluator {
	if steps < 1 {
		steps = 1
	}
	return &FitnessEvaluator{
		params:     params,
		scenario:   scenarioName,
		particles:  particles,
		steps:      steps,
		seeds:      seeds,
		baseConfig: baseCfg,
		board:      board,
	}
}

// LastComponents returns the averaged components from the most recent
// evaluation: force error, energy drift, and seconds per step.
func (fe *FitnessEvaluator) LastComponents() (forceErr, drift, secPerStep float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastErr, fe.lastDrift, fe.lastCost
}

// runResult holds the measurements from a single simulation run.
type runResult struct {
	forceError  float64
	energyDrift float64
	secPerStep  float64
	err         error
}

// Evaluate computes the score for a parameter vector (lower = better).
// All seeds run in parallel with the same parameters.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, s)
		}(i, seed)
	}
	wg.Wait()

	var errSum, driftSum, costSum float64
	for _, r := range results {
		if r.err != nil {
			// Build errors are deterministic across seeds, so the whole
			// evaluation fails together.
			return failScore
		}
		errSum += r.forceError
		driftSum += r.energyDrift
		costSum += r.secPerStep
	}

	n := float64(len(fe.seeds))
	avgErr := errSum / n
	avgDrift := driftSum / n
	avgCost := costSum / n

	score := weightForce*math.Log10(avgErr+scoreFloor) +
		weightDrift*math.Log10(avgDrift+scoreFloor) +
		weightCost*math.Log10(avgCost+scoreFloor)

	fe.mu.Lock()
	fe.evalCount++
	eval := fe.evalCount
	fe.lastErr = avgErr
	fe.lastDrift = avgDrift
	fe.lastCost = avgCost
	fe.mu.Unlock()

	clamped := fe.params.Clamp(x)
	fe.board.Add(Entry{
		Eval:        eval,
		Score:       score,
		Theta:       clamped[0],
		Softening:   clamped[1],
		DT:          clamped[2],
		ForceError:  avgErr,
		EnergyDrift: avgDrift,
		SecPerStep:  avgCost,
	})

	return score
}

// runSimulation executes one headless run and measures the three score
// components against it.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) runResult {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	pos, vel, err := scenario.Build(fe.scenario, fe.particles, cfg.Simulation.G, seed)
	if err != nil {
		return runResult{err: err}
	}

	g := cfg.Simulation.G
	eps := cfg.Simulation.Softening
	cons0 := telemetry.Measure(pos, vel, g, eps)

	sim, err := gravity.New(cfg, pos, vel)
	if err != nil {
		return runResult{err: err}
	}
	defer sim.Close()

	for i := 0; i < fe.steps-1; i++ {
		sim.Step()
	}

	// Accelerations are computed at pre-step positions, so keep the
	// buffer the final step reads for the direct sum comparison.
	prev := sim.CopyPositions(nil)
	sim.Step()

	r := runResult{
		forceError: sampledForceError(prev, sim.Accelerations(), g, eps, seed),
		secPerStep: sim.Perf().Stats().AvgTickDuration.Seconds(),
	}

	consEnd := telemetry.Measure(sim.Positions(), sim.Velocities(), g, eps)
	drift := math.Abs(consEnd.Energy() - cons0.Energy())
	if e0 := math.Abs(cons0.Energy()); e0 > 1e-12 {
		drift /= e0
	}
	r.energyDrift = drift

	return r
}

// copyConfig creates a fresh config carrying the base values.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg, _ := config.Load("")
	cfg.Simulation = fe.baseConfig.Simulation
	cfg.Octree = fe.baseConfig.Octree
	cfg.Bounds = fe.baseConfig.Bounds
	cfg.Run = fe.baseConfig.Run
	cfg.Telemetry = fe.baseConfig.Telemetry
	cfg.Viewer = fe.baseConfig.Viewer
	return cfg
}

// sampledForceError compares tree accelerations against the direct sum
// on a deterministic sample of particles and returns the mean relative
// error.
func sampledForceError(pos, acc []float32, g, eps float64, seed int64) float64 {
	n := len(pos) / octree.Stride
	if n == 0 {
		return 0
	}
	k := forceSamples
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(n)[:k]

	var sum float64
	for _, i := range idx {
		wx, wy, wz := gravity.DirectAccel(pos, i, g, eps)
		o := i * octree.Stride
		dx := float64(acc[o+0]) - wx
		dy := float64(acc[o+1]) - wy
		dz := float64(acc[o+2]) - wz

		e := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if want := math.Sqrt(wx*wx + wy*wy + wz*wz); want > 1e-30 {
			e /= want
		}
		sum += e
	}
	return sum / float64(k)
}
