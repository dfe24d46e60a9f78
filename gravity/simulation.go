package gravity

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oyin-bo/octograv/compute"
	"github.com/oyin-bo/octograv/config"
	"github.com/oyin-bo/octograv/octree"
	"github.com/oyin-bo/octograv/telemetry"
)

// Simulation advances an N-body system under self-gravity. Each step
// rebuilds the moment pyramid from the current positions, walks it once
// per particle to accumulate accelerations, and integrates into the
// back buffers of a double-buffered particle state.
//
// A Simulation is driven from one goroutine. Accessors return live
// buffers that later steps overwrite; use the Copy variants to retain
// data across steps.
type Simulation struct {
	cfg *config.Config
	log *slog.Logger
	n   int

	state *pstate
	acc   []float32
	vox   []int32

	pyramid *octree.Pyramid
	trav    traverser
	kick    kickParams

	bounds  *boundsTracker
	pool    *compute.Pool
	ownPool bool
	perf    *telemetry.PerfCollector

	step    uint64
	closed  bool
	skipped atomic.Uint64
}

// Option configures a Simulation at construction time.
type Option func(*Simulation)

// WithLogger routes internal warnings (failed bounds refreshes and the
// like) to l. The default logger discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPool runs the simulation on a caller-owned worker pool instead of
// a private one. The caller keeps responsibility for closing it.
func WithPool(p *compute.Pool) Option {
	return func(s *Simulation) {
		if p != nil {
			s.pool = p
			s.ownPool = false
		}
	}
}

// New builds a simulation over the given particle buffers. pos holds
// 4-float lanes (x, y, z, mass), vel holds (vx, vy, vz, 0); both are
// owned by the simulation afterwards. The config is finalized in place,
// so validation errors surface here.
//
// The initial world box comes from cfg.Bounds when it describes a valid
// volume, otherwise from a synchronous scan of the positions.
func New(cfg *config.Config, pos, vel []float32, opts ...Option) (*Simulation, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gravity: nil config")
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	if len(pos)%laneStride != 0 {
		return nil, fmt.Errorf("gravity: position buffer length %d is not a multiple of %d", len(pos), laneStride)
	}
	if len(vel) != len(pos) {
		return nil, fmt.Errorf("gravity: velocity buffer length %d does not match position length %d", len(vel), len(pos))
	}
	n := len(pos) / laneStride
	if n == 0 {
		return nil, fmt.Errorf("gravity: no particles")
	}

	pyr, err := octree.NewPyramid(cfg.Octree.GridSize, cfg.Octree.Levels)
	if err != nil {
		return nil, err
	}

	d := cfg.Derived

	s := &Simulation{
		cfg:     cfg,
		log:     slog.New(slog.DiscardHandler),
		n:       n,
		state:   newState(pos, vel),
		acc:     make([]float32, len(pos)),
		vox:     make([]int32, n),
		pyramid: pyr,
		trav: traverser{
			pyr:          pyr,
			theta:        d.Theta32,
			eps2:         d.Eps2,
			g:            d.G32,
			monopoleOnly: cfg.Simulation.MonopoleOnly,
		},
		kick: kickParams{
			dt:       d.DT32,
			keep:     1 - d.Damping32,
			maxSpeed: d.MaxSpeed32,
			maxAccel: d.MaxAccel32,
		},
		ownPool: true,
		perf:    telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = compute.NewPool(cfg.Simulation.Workers)
	}

	initial := octree.Box{
		Min: octree.Vec3{X: cfg.Bounds.Min[0], Y: cfg.Bounds.Min[1], Z: cfg.Bounds.Min[2]},
		Max: octree.Vec3{X: cfg.Bounds.Max[0], Y: cfg.Bounds.Max[1], Z: cfg.Bounds.Max[2]},
	}
	interval := time.Duration(cfg.Bounds.RefreshSec * float64(time.Second))
	s.bounds = newBoundsTracker(initial, float32(cfg.Bounds.Margin), interval, s.log)

	if !initial.Valid() && !s.bounds.ForceRefresh(pos) {
		s.Close()
		return nil, fmt.Errorf("gravity: no finite particle positions to derive bounds from")
	}

	box, _ := s.bounds.Box()
	s.pyramid.SetBounds(box)

	return s, nil
}

// Step advances the system by one dt: refresh bounds, rebuild the
// pyramid, traverse for forces, integrate, swap buffers.
func (s *Simulation) Step() {
	if s.closed {
		panic("gravity: Step after Close")
	}

	pos := s.state.Pos()
	vel := s.state.Vel()

	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseBounds)
	s.bounds.MaybeRefresh(pos)
	box, _ := s.bounds.Box()
	s.pyramid.SetBounds(box)

	s.perf.StartPhase(telemetry.PhaseClear)
	s.pyramid.Clear(s.pool)

	s.perf.StartPhase(telemetry.PhaseAggregate)
	s.pyramid.Deposit(pos, s.vox, s.pool)

	s.perf.StartPhase(telemetry.PhaseReduce)
	s.pyramid.Reduce(s.pool)

	s.perf.StartPhase(telemetry.PhaseTraverse)
	s.trav.forces(pos, s.acc, s.pool)

	s.perf.StartPhase(telemetry.PhaseIntegrate)
	outPos := s.state.TargetPos()
	outVel := s.state.TargetVel()
	kick := s.kick
	s.pool.Run(s.n, func(start, end int) {
		if skipped := kickDrift(pos, vel, s.acc, outPos, outVel, start, end, kick); skipped > 0 {
			s.skipped.Add(uint64(skipped))
		}
	})

	s.perf.EndTick()

	s.state.Swap()
	s.step++
}

// Close releases the worker pool unless it was supplied via WithPool.
// Stepping a closed simulation panics; the particle buffers stay
// readable.
func (s *Simulation) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.ownPool {
		s.pool.Close()
	}
}

// NumParticles returns the particle count.
func (s *Simulation) NumParticles() int { return s.n }

// StepCount returns how many steps have completed.
func (s *Simulation) StepCount() uint64 { return s.step }

// SimTime returns the elapsed simulated time, steps times dt.
func (s *Simulation) SimTime() float64 {
	return float64(s.step) * s.cfg.Simulation.DT
}

// Positions returns the live position buffer, 4-float lanes of
// (x, y, z, mass). Later steps overwrite it.
func (s *Simulation) Positions() []float32 { return s.state.Pos() }

// Velocities returns the live velocity buffer, 4-float lanes of
// (vx, vy, vz, 0). Later steps overwrite it.
func (s *Simulation) Velocities() []float32 { return s.state.Vel() }

// Accelerations returns the accelerations computed by the most recent
// step, in the same lane layout.
func (s *Simulation) Accelerations() []float32 { return s.acc }

// CopyPositions copies the current positions into dst, growing it as
// needed, and returns the copy.
func (s *Simulation) CopyPositions(dst []float32) []float32 {
	return copyLanes(dst, s.state.Pos())
}

// CopyVelocities copies the current velocities into dst, growing it as
// needed, and returns the copy.
func (s *Simulation) CopyVelocities(dst []float32) []float32 {
	return copyLanes(dst, s.state.Vel())
}

func copyLanes(dst, src []float32) []float32 {
	if cap(dst) < len(src) {
		dst = make([]float32, len(src))
	}
	dst = dst[:len(src)]
	copy(dst, src)
	return dst
}

// Bounds returns the current world box and when it was last recomputed.
func (s *Simulation) Bounds() (octree.Box, time.Time) {
	return s.bounds.Box()
}

// RefreshBounds recomputes the world box synchronously from the current
// positions. Useful after repositioning every particle at once.
func (s *Simulation) RefreshBounds() bool {
	ok := s.bounds.ForceRefresh(s.state.Pos())
	if ok {
		box, _ := s.bounds.Box()
		s.pyramid.SetBounds(box)
	}
	return ok
}

// Level exposes one pyramid level, finest first. Level(0) is the
// deposit grid. Returns nil when k is out of range.
func (s *Simulation) Level(k int) *octree.Level {
	if k < 0 || k >= len(s.pyramid.Levels) {
		return nil
	}
	return &s.pyramid.Levels[k]
}

// SkippedParticles returns the cumulative count of particle updates
// passed through untouched because of non-finite state.
func (s *Simulation) SkippedParticles() uint64 { return s.skipped.Load() }

// Perf returns the performance collector driven by Step.
func (s *Simulation) Perf() *telemetry.PerfCollector { return s.perf }

// SetTheta adjusts the opening angle. Values that are not positive and
// finite are ignored. Not safe to call while Step runs.
func (s *Simulation) SetTheta(theta float64) {
	f := float32(theta)
	if !(theta > 0) || !isFinite(f) {
		return
	}
	s.cfg.Simulation.Theta = theta
	s.cfg.Derived.Theta32 = f
	s.trav.theta = f
}

// SetDamping adjusts the velocity damping factor in [0, 1). Values
// outside that range are ignored.
func (s *Simulation) SetDamping(damping float64) {
	if !(damping >= 0 && damping < 1) {
		return
	}
	s.cfg.Simulation.Damping = damping
	s.cfg.Derived.Damping32 = float32(damping)
	s.kick.keep = 1 - float32(damping)
}

// SetMonopoleOnly toggles the quadrupole terms of the far field.
func (s *Simulation) SetMonopoleOnly(on bool) {
	s.cfg.Simulation.MonopoleOnly = on
	s.trav.monopoleOnly = on
}

// Snapshot captures the complete particle state for saving.
func (s *Simulation) Snapshot() *telemetry.Snapshot {
	box, _ := s.bounds.Box()
	sim := s.cfg.Simulation

	return &telemetry.Snapshot{
		Version:          telemetry.SnapshotVersion,
		Step:             s.step,
		Time:             s.SimTime(),
		NumParticles:     s.n,
		DT:               sim.DT,
		G:                sim.G,
		Theta:            sim.Theta,
		Softening:        sim.Softening,
		Damping:          sim.Damping,
		BoundsMin:        [3]float32{box.Min.X, box.Min.Y, box.Min.Z},
		BoundsMax:        [3]float32{box.Max.X, box.Max.Y, box.Max.Z},
		SkippedParticles: s.skipped.Load(),
		Positions:        s.CopyPositions(nil),
		Velocities:       s.CopyVelocities(nil),
	}
}
