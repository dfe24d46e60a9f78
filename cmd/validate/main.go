// Package main reports force accuracy of the moment pyramid against
// exact direct summation and a reference Barnes-Hut solver, per opening
// angle, as a text table and optional CSV.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/oyin-bo/octograv/config"
	"github.com/oyin-bo/octograv/gravity"
	"github.com/oyin-bo/octograv/octree"
	"github.com/oyin-bo/octograv/scenario"
)

// ValidationRow is one accuracy measurement at a fixed opening angle.
type ValidationRow struct {
	Scenario    string  `csv:"scenario"`
	Theta       float64 `csv:"theta"`
	Particles   int     `csv:"particles"`
	Samples     int     `csv:"samples"`
	PyramidMean float64 `csv:"pyramid_err_mean"`
	PyramidP50  float64 `csv:"pyramid_err_p50"`
	PyramidP90  float64 `csv:"pyramid_err_p90"`
	PyramidMax  float64 `csv:"pyramid_err_max"`
	BHMean      float64 `csv:"bh_err_mean"`
	BHP50       float64 `csv:"bh_err_p50"`
	BHP90       float64 `csv:"bh_err_p90"`
	BHMax       float64 `csv:"bh_err_max"`
	StepMS      float64 `csv:"step_ms"`
}

// bhParticle adapts one position lane to the reference solver. Stored
// by pointer so the solver's self-exclusion sees distinct particles.
type bhParticle struct {
	pos r3.Vec
	m   float64
}

func (p *bhParticle) Coord3() r3.Vec { return p.pos }
func (p *bhParticle) Mass() float64  { return p.m }

func main() {
	configPath := flag.String("config", "", "Config YAML file (empty = use defaults)")
	scenarioName := flag.String("scenario", "cluster", "Scenario to validate")
	particles := flag.Int("particles", 2048, "Particle count for generated scenarios")
	samples := flag.Int("samples", 256, "Particles compared against the direct sum")
	seed := flag.Int64("seed", 42, "Scenario RNG seed")
	thetaList := flag.String("thetas", "0.3,0.5,0.7,1.0,1.5", "Comma-separated opening angles")
	output := flag.String("output", "", "CSV output path (empty = stdout table only)")
	flag.Parse()

	thetas, err := parseThetas(*thetaList)
	if err != nil {
		log.Fatalf("bad -thetas: %v", err)
	}

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()
	g := baseCfg.Simulation.G
	eps := baseCfg.Simulation.Softening

	pos, vel, err := scenario.Build(*scenarioName, *particles, g, *seed)
	if err != nil {
		log.Fatalf("failed to build scenario: %v", err)
	}
	n := len(pos) / octree.Stride

	// Sample indices are shared across every angle so the rows compare
	// the same particles.
	k := *samples
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewSource(*seed))
	idx := rng.Perm(n)[:k]

	// Exact references per sample: the softened sum matches the pyramid
	// force model, the bare sum matches the reference solver's.
	refSoft := make([][3]float64, k)
	refBare := make([][3]float64, k)
	for s, i := range idx {
		ax, ay, az := gravity.DirectAccel(pos, i, g, eps)
		refSoft[s] = [3]float64{ax, ay, az}
		ax, ay, az = gravity.DirectAccel(pos, i, g, 0)
		refBare[s] = [3]float64{ax, ay, az}
	}

	// Reference solver tree over the same particles.
	parts := make([]barneshut.Particle3, n)
	for i := 0; i < n; i++ {
		o := i * octree.Stride
		parts[i] = &bhParticle{
			pos: r3.Vec{X: float64(pos[o]), Y: float64(pos[o+1]), Z: float64(pos[o+2])},
			m:   float64(pos[o+3]),
		}
	}
	volume := barneshut.Volume{Particles: parts}
	volume.Reset()

	fmt.Printf("scenario=%s particles=%d samples=%d seed=%d g=%g softening=%g\n\n",
		*scenarioName, n, k, *seed, g, eps)
	fmt.Printf("%6s  %12s %12s %12s %12s  %12s %12s %12s %12s  %9s\n",
		"theta",
		"pyr mean", "pyr p50", "pyr p90", "pyr max",
		"bh mean", "bh p50", "bh p90", "bh max",
		"step ms")

	rows := make([]ValidationRow, 0, len(thetas))
	for _, theta := range thetas {
		row, err := measure(baseCfg, *scenarioName, pos, vel, idx, refSoft, refBare, &volume, parts, theta)
		if err != nil {
			log.Fatalf("theta %.2f: %v", theta, err)
		}
		rows = append(rows, row)

		fmt.Printf("%6.2f  %12.3e %12.3e %12.3e %12.3e  %12.3e %12.3e %12.3e %12.3e  %9.2f\n",
			row.Theta,
			row.PyramidMean, row.PyramidP50, row.PyramidP90, row.PyramidMax,
			row.BHMean, row.BHP50, row.BHP90, row.BHMax,
			row.StepMS)
	}

	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("failed to create output: %v", err)
		}
		defer f.Close()
		if err := gocsv.Marshal(rows, f); err != nil {
			log.Fatalf("failed to write CSV: %v", err)
		}
		fmt.Printf("\nCSV saved to: %s\n", *output)
	}
}

// measure runs one pyramid force pass and one reference solver pass at
// the given opening angle and collects relative error statistics.
func measure(baseCfg *config.Config, scenarioName string, pos, vel []float32, idx []int, refSoft, refBare [][3]float64, volume *barneshut.Volume, parts []barneshut.Particle3, theta float64) (ValidationRow, error) {
	cfg, _ := config.Load("")
	cfg.Simulation = baseCfg.Simulation
	cfg.Octree = baseCfg.Octree
	cfg.Bounds = baseCfg.Bounds
	cfg.Simulation.Theta = theta

	// The simulation owns its buffers, so each angle gets copies.
	posCopy := append([]float32(nil), pos...)
	velCopy := append([]float32(nil), vel...)

	sim, err := gravity.New(cfg, posCopy, velCopy)
	if err != nil {
		return ValidationRow{}, err
	}
	defer sim.Close()

	start := time.Now()
	sim.Step()
	stepMS := time.Since(start).Seconds() * 1000

	// Accelerations were computed at the pre-step positions, which are
	// exactly the original ones.
	acc := sim.Accelerations()
	g := cfg.Simulation.G

	pyrErrs := make([]float64, 0, len(idx))
	bhErrs := make([]float64, 0, len(idx))
	for s, i := range idx {
		o := i * octree.Stride
		pyrErrs = append(pyrErrs, relErr(
			float64(acc[o]), float64(acc[o+1]), float64(acc[o+2]),
			refSoft[s][0], refSoft[s][1], refSoft[s][2]))

		p := parts[i].(*bhParticle)
		f := volume.ForceOn(parts[i], theta, barneshut.Gravity3)
		a := r3.Scale(g/p.m, f)
		bhErrs = append(bhErrs, relErr(a.X, a.Y, a.Z,
			refBare[s][0], refBare[s][1], refBare[s][2]))
	}

	row := ValidationRow{
		Scenario:  scenarioName,
		Theta:     theta,
		Particles: len(pos) / octree.Stride,
		Samples:   len(idx),
		StepMS:    stepMS,
	}
	row.PyramidMean, row.PyramidP50, row.PyramidP90, row.PyramidMax = errStats(pyrErrs)
	row.BHMean, row.BHP50, row.BHP90, row.BHMax = errStats(bhErrs)
	return row, nil
}

// errStats computes mean, median, 90th percentile, and max. Quantiles
// need the slice sorted.
func errStats(errs []float64) (mean, p50, p90, max float64) {
	if len(errs) == 0 {
		return 0, 0, 0, 0
	}
	mean = stat.Mean(errs, nil)
	sort.Float64s(errs)
	p50 = stat.Quantile(0.5, stat.Empirical, errs, nil)
	p90 = stat.Quantile(0.9, stat.Empirical, errs, nil)
	max = errs[len(errs)-1]
	return mean, p50, p90, max
}

// relErr is the magnitude of the acceleration error relative to the
// reference magnitude.
func relErr(gx, gy, gz, wx, wy, wz float64) float64 {
	dx, dy, dz := gx-wx, gy-wy, gz-wz
	e := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if want := math.Sqrt(wx*wx + wy*wy + wz*wz); want > 0 {
		return e / want
	}
	return e
}

func parseThetas(list string) ([]float64, error) {
	var thetas []float64
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", part, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("theta %v must be positive", v)
		}
		thetas = append(thetas, v)
	}
	if len(thetas) == 0 {
		return nil, fmt.Errorf("no angles given")
	}
	return thetas, nil
}
