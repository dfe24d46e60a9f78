package telemetry

import (
	"math"
	"testing"
)

func TestMeasureTwoBody(t *testing.T) {
	// Particle 1: pos (1,0,0), mass 2, vel (0,1,0)
	// Particle 2: pos (-1,0,0), mass 1, vel (0,-2,0)
	pos := []float32{
		1, 0, 0, 2,
		-1, 0, 0, 1,
	}
	vel := []float32{
		0, 1, 0, 0,
		0, -2, 0, 0,
	}

	c := Measure(pos, vel, 1.0, 0)

	if math.Abs(c.Mass-3.0) > 1e-12 {
		t.Errorf("mass = %v, want 3", c.Mass)
	}

	// Momenta cancel: 2*1 + 1*(-2) = 0
	if c.MomentumMag() > 1e-12 {
		t.Errorf("momentum = %v, want 0", c.MomentumMag())
	}

	// Both particles orbit the same way: L = (0,0,2) + (0,0,2)
	if math.Abs(c.Lz-4.0) > 1e-12 {
		t.Errorf("Lz = %v, want 4", c.Lz)
	}
	if math.Abs(c.AngMomentumMag()-4.0) > 1e-12 {
		t.Errorf("|L| = %v, want 4", c.AngMomentumMag())
	}

	// KE = 0.5*2*1 + 0.5*1*4 = 3
	if math.Abs(c.Kinetic-3.0) > 1e-12 {
		t.Errorf("kinetic = %v, want 3", c.Kinetic)
	}

	// PE = -G*m1*m2/r = -1*2*1/2 = -1
	if math.Abs(c.Potential-(-1.0)) > 1e-12 {
		t.Errorf("potential = %v, want -1", c.Potential)
	}

	if math.Abs(c.Energy()-2.0) > 1e-12 {
		t.Errorf("energy = %v, want 2", c.Energy())
	}
}

func TestMeasureSoftenedPotential(t *testing.T) {
	// Two unit masses 3 units apart with softening 4: r_eff = sqrt(9+16) = 5
	pos := []float32{
		0, 0, 0, 1,
		3, 0, 0, 1,
	}
	vel := make([]float32, len(pos))

	c := Measure(pos, vel, 1.0, 4.0)

	if math.Abs(c.Potential-(-0.2)) > 1e-12 {
		t.Errorf("potential = %v, want -0.2", c.Potential)
	}
}

func TestMeasureIgnoresInvalidParticles(t *testing.T) {
	nan := float32(math.NaN())

	pos := []float32{
		1, 0, 0, 2, // valid
		0, 0, 0, 0, // massless
		nan, 0, 0, 1, // NaN position
		5, 5, 5, nan, // NaN mass
	}
	vel := []float32{
		0, 1, 0, 0,
		0, 9, 0, 0,
		0, 9, 0, 0,
		0, 9, 0, 0,
	}

	c := Measure(pos, vel, 1.0, 0)

	if math.Abs(c.Mass-2.0) > 1e-12 {
		t.Errorf("mass = %v, want 2 (only the valid particle)", c.Mass)
	}
	if math.Abs(c.Py-2.0) > 1e-12 {
		t.Errorf("Py = %v, want 2", c.Py)
	}
	// No valid pairs, so no potential
	if c.Potential != 0 {
		t.Errorf("potential = %v, want 0", c.Potential)
	}
}

func TestDriftTracker(t *testing.T) {
	var tracker DriftTracker

	ref := Conserved{Kinetic: 3, Potential: -1, Lz: 4}

	// First record establishes the reference and reports zero drift
	d := tracker.Record(ref)
	if d.Energy != 0 || d.Momentum != 0 || d.AngMomentum != 0 {
		t.Errorf("first record should have zero drift, got %+v", d)
	}

	// Energy 2.0 -> 2.2 is 10% relative drift
	next := Conserved{Kinetic: 3.2, Potential: -1, Px: 0.3, Lz: 4.4}
	d = tracker.Record(next)

	if math.Abs(d.Energy-0.1) > 1e-12 {
		t.Errorf("energy drift = %v, want 0.1", d.Energy)
	}
	if math.Abs(d.Momentum-0.3) > 1e-12 {
		t.Errorf("momentum drift = %v, want 0.3", d.Momentum)
	}
	if math.Abs(d.AngMomentum-0.1) > 1e-12 {
		t.Errorf("angular momentum drift = %v, want 0.1", d.AngMomentum)
	}

	got, ok := tracker.Reference()
	if !ok || got != ref {
		t.Error("reference should remain the first measurement")
	}
}

func TestDriftTrackerZeroReferenceEnergy(t *testing.T) {
	var tracker DriftTracker

	// E0 = 0 exactly: drift reported as absolute
	tracker.Record(Conserved{Kinetic: 1, Potential: -1})
	d := tracker.Record(Conserved{Kinetic: 1.5, Potential: -1})

	if math.Abs(d.Energy-0.5) > 1e-12 {
		t.Errorf("energy drift = %v, want absolute 0.5", d.Energy)
	}
}

func TestConservedToRow(t *testing.T) {
	c := Conserved{Step: 7, Mass: 3, Kinetic: 3, Potential: -1}
	row := c.ToRow(Drift{Energy: 0.01, Momentum: 0.02, AngMomentum: 0.03})

	if row.Step != 7 {
		t.Errorf("step = %d, want 7", row.Step)
	}
	if math.Abs(row.Energy-2.0) > 1e-12 {
		t.Errorf("energy = %v, want 2", row.Energy)
	}
	if row.EnergyDrift != 0.01 || row.PDrift != 0.02 || row.LDrift != 0.03 {
		t.Errorf("drift columns not carried: %+v", row)
	}
}
