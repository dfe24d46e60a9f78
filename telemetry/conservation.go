package telemetry

import "math"

// laneStride is the number of float32 lanes per particle in the
// packed position and velocity buffers (x, y, z, w).
const laneStride = 4

// Conserved holds the conserved quantities of a particle system at one
// step: total mass, linear momentum, angular momentum about the origin,
// and kinetic and potential energy. All sums are accumulated in float64.
type Conserved struct {
	Step      uint64
	Mass      float64
	Px        float64
	Py        float64
	Pz        float64
	Lx        float64
	Ly        float64
	Lz        float64
	Kinetic   float64
	Potential float64
}

// Energy returns the total mechanical energy.
func (c Conserved) Energy() float64 {
	return c.Kinetic + c.Potential
}

// MomentumMag returns the magnitude of the total linear momentum.
func (c Conserved) MomentumMag() float64 {
	return math.Sqrt(c.Px*c.Px + c.Py*c.Py + c.Pz*c.Pz)
}

// AngMomentumMag returns the magnitude of the total angular momentum.
func (c Conserved) AngMomentumMag() float64 {
	return math.Sqrt(c.Lx*c.Lx + c.Ly*c.Ly + c.Lz*c.Lz)
}

// Measure computes conserved quantities from packed particle buffers.
// pos lanes are (x, y, z, mass) and vel lanes are (vx, vy, vz, _).
// The potential uses the softened pairwise form -G*mi*mj/sqrt(r2+eps2),
// which matches the softened force law exactly. The pairwise sum is
// O(N^2), so this is meant for periodic diagnostics, not every tick.
// Particles with non-positive or non-finite mass are ignored.
func Measure(pos, vel []float32, g, eps float64) Conserved {
	n := len(pos) / laneStride
	eps2 := eps * eps

	var c Conserved
	for i := 0; i < n; i++ {
		o := i * laneStride
		m := float64(pos[o+3])
		if !(m > 0) || math.IsInf(m, 0) {
			continue
		}
		px, py, pz := float64(pos[o]), float64(pos[o+1]), float64(pos[o+2])
		vx, vy, vz := float64(vel[o]), float64(vel[o+1]), float64(vel[o+2])
		if anyNonFinite(px, py, pz, vx, vy, vz) {
			continue
		}

		c.Mass += m
		c.Px += m * vx
		c.Py += m * vy
		c.Pz += m * vz
		c.Lx += m * (py*vz - pz*vy)
		c.Ly += m * (pz*vx - px*vz)
		c.Lz += m * (px*vy - py*vx)
		c.Kinetic += 0.5 * m * (vx*vx + vy*vy + vz*vz)

		for j := i + 1; j < n; j++ {
			oj := j * laneStride
			mj := float64(pos[oj+3])
			if !(mj > 0) || math.IsInf(mj, 0) {
				continue
			}
			qx, qy, qz := float64(pos[oj]), float64(pos[oj+1]), float64(pos[oj+2])
			if anyNonFinite(qx, qy, qz) {
				continue
			}
			dx := qx - px
			dy := qy - py
			dz := qz - pz
			c.Potential -= g * m * mj / math.Sqrt(dx*dx+dy*dy+dz*dz+eps2)
		}
	}
	return c
}

func anyNonFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// Drift reports how far conserved quantities have moved from a
// reference measurement.
type Drift struct {
	// Energy is the relative energy drift |E-E0|/|E0|.
	Energy float64
	// Momentum is the absolute momentum drift |P-P0|. Absolute because
	// most initial conditions start with zero net momentum.
	Momentum float64
	// AngMomentum is the relative angular momentum drift, or absolute
	// when the reference magnitude is near zero.
	AngMomentum float64
}

// DriftTracker compares successive measurements against the first one.
type DriftTracker struct {
	ref    Conserved
	hasRef bool
}

// Record stores the first measurement as reference and returns the
// drift of the given measurement relative to it. The first call always
// returns zero drift.
func (d *DriftTracker) Record(c Conserved) Drift {
	if !d.hasRef {
		d.ref = c
		d.hasRef = true
		return Drift{}
	}

	var drift Drift

	e0 := d.ref.Energy()
	if math.Abs(e0) > 1e-12 {
		drift.Energy = math.Abs(c.Energy()-e0) / math.Abs(e0)
	} else {
		drift.Energy = math.Abs(c.Energy() - e0)
	}

	dpx := c.Px - d.ref.Px
	dpy := c.Py - d.ref.Py
	dpz := c.Pz - d.ref.Pz
	drift.Momentum = math.Sqrt(dpx*dpx + dpy*dpy + dpz*dpz)

	dlx := c.Lx - d.ref.Lx
	dly := c.Ly - d.ref.Ly
	dlz := c.Lz - d.ref.Lz
	dl := math.Sqrt(dlx*dlx + dly*dly + dlz*dlz)
	if l0 := d.ref.AngMomentumMag(); l0 > 1e-12 {
		drift.AngMomentum = dl / l0
	} else {
		drift.AngMomentum = dl
	}

	return drift
}

// Reference returns the stored reference measurement, if any.
func (d *DriftTracker) Reference() (Conserved, bool) {
	return d.ref, d.hasRef
}

// ConservationRow is a flat struct for CSV export of one measurement.
type ConservationRow struct {
	Step        uint64  `csv:"step"`
	Mass        float64 `csv:"mass"`
	Px          float64 `csv:"px"`
	Py          float64 `csv:"py"`
	Pz          float64 `csv:"pz"`
	Lx          float64 `csv:"lx"`
	Ly          float64 `csv:"ly"`
	Lz          float64 `csv:"lz"`
	Kinetic     float64 `csv:"kinetic"`
	Potential   float64 `csv:"potential"`
	Energy      float64 `csv:"energy"`
	EnergyDrift float64 `csv:"energy_drift"`
	PDrift      float64 `csv:"momentum_drift"`
	LDrift      float64 `csv:"ang_momentum_drift"`
}

// ToRow converts a measurement and its drift into a CSV row.
func (c Conserved) ToRow(d Drift) ConservationRow {
	return ConservationRow{
		Step:        c.Step,
		Mass:        c.Mass,
		Px:          c.Px,
		Py:          c.Py,
		Pz:          c.Pz,
		Lx:          c.Lx,
		Ly:          c.Ly,
		Lz:          c.Lz,
		Kinetic:     c.Kinetic,
		Potential:   c.Potential,
		Energy:      c.Energy(),
		EnergyDrift: d.Energy,
		PDrift:      d.Momentum,
		LDrift:      d.AngMomentum,
	}
}
