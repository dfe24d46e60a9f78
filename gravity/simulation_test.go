package gravity

import (
	"math"
	"reflect"
	"testing"

	"github.com/oyin-bo/octograv/config"
	"github.com/oyin-bo/octograv/scenario"
	"github.com/oyin-bo/octograv/telemetry"
)

// defaultsFor loads the embedded defaults with a smaller pyramid and
// background bounds refreshes off, so tests stay fast and deterministic.
func defaultsFor(t *testing.T, grid, levels int) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	cfg.Octree.GridSize = grid
	cfg.Octree.Levels = levels
	cfg.Bounds.RefreshSec = 0
	return cfg
}

// setBox pins the world box to a cube so voxel edges land on the origin
// and bounds never move under the particles.
func setBox(cfg *config.Config, half float32) {
	cfg.Bounds.Min = [3]float32{-half, -half, -half}
	cfg.Bounds.Max = [3]float32{half, half, half}
}

// autoBox zeroes the configured box so New derives one from the
// particles.
func autoBox(cfg *config.Config) {
	cfg.Bounds.Min = [3]float32{}
	cfg.Bounds.Max = [3]float32{}
}

func separation(pos []float32) float64 {
	dx := float64(pos[0] - pos[laneStride+0])
	dy := float64(pos[1] - pos[laneStride+1])
	dz := float64(pos[2] - pos[laneStride+2])
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func maxSpeed(vel []float32) float64 {
	peak := 0.0
	for o := 0; o < len(vel); o += laneStride {
		v := math.Sqrt(float64(vel[o]*vel[o] + vel[o+1]*vel[o+1] + vel[o+2]*vel[o+2]))
		if v > peak {
			peak = v
		}
	}
	return peak
}

func allFinite(buf []float32) bool {
	for _, v := range buf {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

// A circular equal-mass binary two voxels apart resolves through the
// direct near field, so the orbit must hold its separation for two full
// periods.
func TestBinaryOrbitStability(t *testing.T) {
	g := 0.001
	cfg := defaultsFor(t, 32, 6)
	cfg.Simulation.G = g
	cfg.Simulation.DT = 1.0
	cfg.Simulation.Softening = 0.02
	setBox(cfg, 32)

	pos, vel := scenario.Binary(g)
	sim, err := New(cfg, pos, vel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()

	// Each body moves at sqrt(G)/2 on a radius-1 circle.
	period := 2 * math.Pi / (math.Sqrt(g) / 2)
	steps := int(2 * period / cfg.Simulation.DT)

	minSep, maxSep := math.Inf(1), math.Inf(-1)
	for i := 0; i < steps; i++ {
		sim.Step()
		sep := separation(sim.Positions())
		if sep < minSep {
			minSep = sep
		}
		if sep > maxSep {
			maxSep = sep
		}
	}

	if minSep < 2.0*0.85 || maxSep > 2.0*1.15 {
		t.Errorf("separation wandered to [%v, %v] over two periods, want within 15%% of 2.0", minSep, maxSep)
	}
	if sim.SkippedParticles() != 0 {
		t.Errorf("skipped %d particle updates", sim.SkippedParticles())
	}
}

// Bulk momentum of an isolated cluster is conserved up to the asymmetry
// of the cell approximation, which must stay far below the bulk drift
// over hundreds of steps.
func TestClusterMomentumConservation(t *testing.T) {
	g := 0.0001
	cfg := defaultsFor(t, 32, 6)
	cfg.Simulation.G = g
	cfg.Simulation.DT = 0.05

	pos, vel := scenario.Cluster(256, g, 5)
	// Give the cluster a bulk velocity so "1% relative" is meaningful.
	for o := 0; o < len(vel); o += laneStride {
		vel[o+0] += 0.05
		vel[o+1] -= 0.02
		vel[o+2] += 0.03
	}

	autoBox(cfg)
	sim, err := New(cfg, pos, vel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()

	eps := cfg.Simulation.Softening
	before := telemetry.Measure(sim.Positions(), sim.Velocities(), g, eps)

	for i := 0; i < 300; i++ {
		sim.Step()
		if i%50 == 49 {
			sim.RefreshBounds()
		}
	}

	after := telemetry.Measure(sim.Positions(), sim.Velocities(), g, eps)

	dPx := after.Px - before.Px
	dPy := after.Py - before.Py
	dPz := after.Pz - before.Pz
	drift := math.Sqrt(dPx*dPx + dPy*dPy + dPz*dPz)

	if p0 := before.MomentumMag(); drift > 0.01*p0 {
		t.Errorf("momentum drifted by %v, more than 1%% of |P0|=%v", drift, p0)
	}
	if math.Abs(after.Mass-before.Mass) > 1e-9 {
		t.Errorf("mass changed from %v to %v", before.Mass, after.Mass)
	}
}

// Total energy of a mildly evolving cluster holds within 10% over a few
// hundred small steps.
func TestClusterEnergyDrift(t *testing.T) {
	g := 0.0001
	cfg := defaultsFor(t, 32, 6)
	cfg.Simulation.G = g
	cfg.Simulation.DT = 0.02

	pos, vel := scenario.Cluster(256, g, 8)
	autoBox(cfg)
	sim, err := New(cfg, pos, vel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()

	eps := cfg.Simulation.Softening
	e0 := telemetry.Measure(sim.Positions(), sim.Velocities(), g, eps).Energy()
	if e0 >= 0 {
		t.Fatalf("cluster not bound: E0 = %v", e0)
	}

	for i := 0; i < 200; i++ {
		sim.Step()
	}

	e1 := telemetry.Measure(sim.Positions(), sim.Velocities(), g, eps).Energy()
	if rel := math.Abs(e1-e0) / math.Abs(e0); rel > 0.10 {
		t.Errorf("energy drifted %.1f%% (from %v to %v), want under 10%%", rel*100, e0, e1)
	}
}

// A rotating disk keeps its angular momentum magnitude within 10% over a
// hundred steps; approximation torques are tiny compared to the bulk
// rotation.
func TestDiskAngularMomentum(t *testing.T) {
	g := 0.001
	cfg := defaultsFor(t, 32, 6)
	cfg.Simulation.G = g
	cfg.Simulation.DT = 0.2

	pos, vel := scenario.Disk(256, g, 12)
	autoBox(cfg)
	sim, err := New(cfg, pos, vel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()

	eps := cfg.Simulation.Softening
	l0 := telemetry.Measure(sim.Positions(), sim.Velocities(), g, eps).AngMomentumMag()
	if l0 <= 0 {
		t.Fatal("disk carries no angular momentum")
	}

	for i := 0; i < 100; i++ {
		sim.Step()
	}

	l1 := telemetry.Measure(sim.Positions(), sim.Velocities(), g, eps).AngMomentumMag()
	if rel := math.Abs(l1-l0) / l0; rel > 0.10 {
		t.Errorf("|L| drifted %.1f%% (from %v to %v), want under 10%%", rel*100, l0, l1)
	}
}

// A test particle launched at 1.3x escape velocity keeps going: distance
// grows past 1.5x the initial radius with a healthy residual speed, and
// the heavy primary barely reacts.
func TestEscapeTrajectory(t *testing.T) {
	g := 0.001
	cfg := defaultsFor(t, 32, 6)
	cfg.Simulation.G = g
	cfg.Simulation.DT = 0.5
	cfg.Simulation.Softening = 0.02
	setBox(cfg, 32)

	pos, vel := scenario.Escape(g)
	r0 := float64(pos[laneStride+0])
	launch := float64(vel[laneStride+0])

	sim, err := New(cfg, pos, vel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()

	for i := 0; i < 100; i++ {
		sim.Step()
	}

	p := sim.Positions()
	v := sim.Velocities()
	if !allFinite(p) || !allFinite(v) {
		t.Fatal("non-finite state after escape run")
	}

	if dist := separation(p); dist < 1.5*r0 {
		t.Errorf("test particle only reached %v, want beyond %v", dist, 1.5*r0)
	}

	speed := math.Sqrt(float64(v[laneStride+0]*v[laneStride+0] +
		v[laneStride+1]*v[laneStride+1] + v[laneStride+2]*v[laneStride+2]))
	if speed < 0.5*launch {
		t.Errorf("residual speed %v below half the launch speed %v", speed, launch)
	}

	// Primary displacement stays negligible against the near-massless
	// escaper.
	prim := math.Sqrt(float64(p[0]*p[0] + p[1]*p[1] + p[2]*p[2]))
	if prim > 1e-3 {
		t.Errorf("primary moved %v, want < 1e-3", prim)
	}
}

// Head-on encounters stay finite for any softening, and the peak speed
// scales down as the softening length grows.
func TestSofteningBoundsCloseEncounters(t *testing.T) {
	g := 0.001
	d0 := 0.2
	peaks := make([]float64, 0, 3)

	for _, eps := range []float64{0.01, 0.1, 0.5} {
		cfg := defaultsFor(t, 16, 5)
		cfg.Simulation.G = g
		cfg.Simulation.DT = 0.002
		cfg.Simulation.Softening = eps
		setBox(cfg, 8)

		pos := []float32{
			float32(d0 / 2), 0, 0, 1,
			float32(-d0 / 2), 0, 0, 1,
		}
		vel := make([]float32, len(pos))

		sim, err := New(cfg, pos, vel)
		if err != nil {
			t.Fatalf("New(eps=%v): %v", eps, err)
		}

		peak := 0.0
		for i := 0; i < 2000; i++ {
			sim.Step()
			if v := maxSpeed(sim.Velocities()); v > peak {
				peak = v
			}
		}
		if !allFinite(sim.Positions()) || !allFinite(sim.Velocities()) {
			t.Fatalf("eps=%v: state went non-finite", eps)
		}
		sim.Close()

		// Analytic per-body peak: half the relative speed at closest
		// approach of the softened pair potential.
		vRel := math.Sqrt(4 * g * (1/eps - 1/math.Sqrt(d0*d0+eps*eps)))
		if peak > vRel {
			t.Errorf("eps=%v: peak speed %v exceeds softened bound %v", eps, peak, vRel)
		}
		peaks = append(peaks, peak)
	}

	if !(peaks[0] > peaks[1] && peaks[1] > peaks[2]) {
		t.Errorf("peak speeds %v do not fall as softening grows", peaks)
	}
}

// Free fall of an isolated pair lands on the analytic two-body solution,
// and tightening the opening angle never makes it worse. In this regime
// every opening test already rejects, so the trajectories agree exactly.
func TestOpeningAngleMonotonicAccuracy(t *testing.T) {
	g := 0.001
	d0 := 2.0
	T := 50.0
	dt := 0.5

	want := fallSeparation(d0, g*2, T)

	seps := make([]float64, 0, 3)
	errs := make([]float64, 0, 3)
	for _, theta := range []float64{1.5, 1.0, 0.7} {
		cfg := defaultsFor(t, 32, 6)
		cfg.Simulation.G = g
		cfg.Simulation.DT = dt
		cfg.Simulation.Theta = theta
		cfg.Simulation.Softening = 0.02
		setBox(cfg, 32)

		pos := []float32{
			1, 0, 0, 1,
			-1, 0, 0, 1,
		}
		vel := make([]float32, len(pos))

		sim, err := New(cfg, pos, vel)
		if err != nil {
			t.Fatalf("New(theta=%v): %v", theta, err)
		}
		for i := 0; i < int(T/dt); i++ {
			sim.Step()
		}
		sep := separation(sim.Positions())
		sim.Close()

		seps = append(seps, sep)
		errs = append(errs, math.Abs(sep-want)/d0)
	}

	for i, e := range errs {
		if e > 0.02 {
			t.Errorf("theta case %d: separation error %.3f vs analytic, want under 2%%", i, e)
		}
	}
	// Decreasing theta is strictly more conservative: accuracy must not
	// degrade.
	if errs[1] > errs[0]+1e-9 || errs[2] > errs[1]+1e-9 {
		t.Errorf("error grew as theta shrank: %v", errs)
	}
	if seps[0] != seps[1] || seps[1] != seps[2] {
		t.Errorf("pair dynamics touched the far field: separations %v differ across theta", seps)
	}
}

// fallSeparation solves the radial Kepler fall r(t) for two bodies from
// rest: r = (d0/2)(1+cos eta), t = sqrt(d0^3/(8 GM)) (eta + sin eta).
func fallSeparation(d0, gm, t float64) float64 {
	k := math.Sqrt(d0 * d0 * d0 / (8 * gm))
	target := t / k
	lo, hi := 0.0, math.Pi
	for i := 0; i < 80; i++ {
		mid := (lo + hi) / 2
		if mid+math.Sin(mid) < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	eta := (lo + hi) / 2
	return d0 / 2 * (1 + math.Cos(eta))
}

// Snapshots capture the full dynamical state: a simulation restored from
// one replays the original run bit for bit.
func TestSnapshotRestartDeterminism(t *testing.T) {
	g := 0.0001
	newCfg := func() *config.Config {
		cfg := defaultsFor(t, 32, 6)
		cfg.Simulation.G = g
		cfg.Simulation.DT = 0.05
		setBox(cfg, 16)
		return cfg
	}

	pos, vel := scenario.Cluster(64, g, 21)
	sim, err := New(newCfg(), pos, vel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()

	for i := 0; i < 10; i++ {
		sim.Step()
	}

	snap := sim.Snapshot()
	again := sim.Snapshot()
	if !reflect.DeepEqual(snap, again) {
		t.Error("back-to-back snapshots differ")
	}
	if snap.Step != 10 || snap.NumParticles != 64 {
		t.Errorf("snapshot header step=%d n=%d, want 10 and 64", snap.Step, snap.NumParticles)
	}

	restored, err := New(newCfg(), snap.Positions, snap.Velocities)
	if err != nil {
		t.Fatalf("New(restored): %v", err)
	}
	defer restored.Close()

	for i := 0; i < 5; i++ {
		sim.Step()
		restored.Step()
	}

	a := sim.Positions()
	b := restored.Positions()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("restored run diverged at lane %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSkippedParticlesCounter(t *testing.T) {
	cfg := defaultsFor(t, 16, 5)
	setBox(cfg, 8)

	nan := float32(math.NaN())
	pos := []float32{
		1, 0, 0, 1,
		-1, 0, 0, 1,
		nan, 2, 2, 1,
	}
	vel := make([]float32, len(pos))
	vel[2*laneStride+1] = 0.25 // frozen alongside the NaN position

	sim, err := New(cfg, pos, vel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()

	for i := 0; i < 4; i++ {
		sim.Step()
	}

	if got := sim.SkippedParticles(); got != 4 {
		t.Errorf("skipped counter = %d, want 4 (one particle, four steps)", got)
	}
	if v := sim.Velocities()[2*laneStride+1]; v != 0.25 {
		t.Errorf("skipped particle velocity changed to %v", v)
	}
	if !math.IsNaN(float64(sim.Positions()[2*laneStride+0])) {
		t.Error("skipped particle position was rewritten")
	}
}

func TestNewValidation(t *testing.T) {
	valid := func() *config.Config { return defaultsFor(t, 16, 5) }

	cases := []struct {
		name string
		cfg  *config.Config
		pos  []float32
		vel  []float32
	}{
		{"nil config", nil, make([]float32, 8), make([]float32, 8)},
		{"ragged lanes", valid(), make([]float32, 7), make([]float32, 7)},
		{"length mismatch", valid(), make([]float32, 8), make([]float32, 4)},
		{"no particles", valid(), nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.cfg != nil {
				setBox(tc.cfg, 8)
			}
			if _, err := New(tc.cfg, tc.pos, tc.vel); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Run("bad pyramid", func(t *testing.T) {
		cfg := valid()
		cfg.Octree.GridSize = 48
		if _, err := New(cfg, make([]float32, 8), make([]float32, 8)); err == nil {
			t.Error("expected error for non-power-of-two grid")
		}
	})

	t.Run("no finite positions without a box", func(t *testing.T) {
		cfg := valid()
		autoBox(cfg)
		nan := float32(math.NaN())
		if _, err := New(cfg, []float32{nan, 0, 0, 1}, make([]float32, 4)); err == nil {
			t.Error("expected error when bounds cannot be derived")
		}
	})
}

func TestRuntimeTuning(t *testing.T) {
	cfg := defaultsFor(t, 16, 5)
	setBox(cfg, 8)

	pos := []float32{1, 0, 0, 1, -1, 0, 0, 1}
	vel := make([]float32, len(pos))
	sim, err := New(cfg, pos, vel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()

	sim.SetTheta(0.5)
	if sim.trav.theta != 0.5 {
		t.Errorf("theta = %v after SetTheta(0.5)", sim.trav.theta)
	}
	sim.SetTheta(-1)
	sim.SetTheta(math.Inf(1))
	if sim.trav.theta != 0.5 {
		t.Errorf("invalid theta accepted: %v", sim.trav.theta)
	}

	sim.SetDamping(0.02)
	if got := sim.kick.keep; math.Abs(float64(got)-0.98) > 1e-6 {
		t.Errorf("keep = %v after SetDamping(0.02)", got)
	}
	sim.SetDamping(1.5)
	if got := sim.kick.keep; math.Abs(float64(got)-0.98) > 1e-6 {
		t.Errorf("invalid damping accepted: keep = %v", got)
	}

	sim.SetMonopoleOnly(true)
	if !sim.trav.monopoleOnly {
		t.Error("monopole toggle not applied")
	}
}

func TestCloseSemantics(t *testing.T) {
	cfg := defaultsFor(t, 16, 5)
	setBox(cfg, 8)

	sim, err := New(cfg, []float32{0.5, 0, 0, 1}, make([]float32, 4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sim.Step()
	sim.Close()
	sim.Close() // idempotent

	if !allFinite(sim.Positions()) {
		t.Error("buffers unreadable after Close")
	}

	defer func() {
		if recover() == nil {
			t.Error("Step after Close should panic")
		}
	}()
	sim.Step()
}
