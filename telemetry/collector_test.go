package telemetry

import (
	"math"
	"testing"
)

func TestCollectorWindowCadence(t *testing.T) {
	c := NewCollector(10, 0.5)

	if c.WindowSteps() != 10 {
		t.Fatalf("WindowSteps() = %d, want 10", c.WindowSteps())
	}
	if c.ShouldFlush(0) {
		t.Error("ShouldFlush(0) = true on a fresh collector")
	}
	if c.ShouldFlush(9) {
		t.Error("ShouldFlush(9) = true before the window elapsed")
	}
	if !c.ShouldFlush(10) {
		t.Error("ShouldFlush(10) = false at the window boundary")
	}

	stats := c.Flush(10, nil, nil, 0)
	if stats.WindowStart != 0 || stats.WindowEnd != 10 {
		t.Errorf("window = [%d, %d], want [0, 10]", stats.WindowStart, stats.WindowEnd)
	}
	if math.Abs(stats.SimTime-5.0) > 1e-12 {
		t.Errorf("SimTime = %v, want 5.0", stats.SimTime)
	}

	// Flush advances the window start
	if c.ShouldFlush(19) {
		t.Error("ShouldFlush(19) = true right after flushing at 10")
	}
	if !c.ShouldFlush(20) {
		t.Error("ShouldFlush(20) = false one window after flushing at 10")
	}
}

func TestCollectorFlushGauges(t *testing.T) {
	// Two massive particles, one massless, one with a NaN position.
	pos := []float32{
		1, 0, 0, 2,
		-1, 0, 0, 2,
		5, 5, 5, 0,
		float32(math.NaN()), 0, 0, 1,
	}
	vel := []float32{
		3, 0, 0, 0,
		0, 4, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
	}

	c := NewCollector(1, 0.1)
	stats := c.Flush(1, pos, vel, 0)

	if stats.Particles != 2 {
		t.Errorf("Particles = %d, want 2", stats.Particles)
	}
	if stats.NonFinite != 1 {
		t.Errorf("NonFinite = %d, want 1", stats.NonFinite)
	}
	if math.Abs(stats.Mass-4) > 1e-12 {
		t.Errorf("Mass = %v, want 4", stats.Mass)
	}

	// Speeds are 3 and 4
	if math.Abs(stats.SpeedMean-3.5) > 1e-9 {
		t.Errorf("SpeedMean = %v, want 3.5", stats.SpeedMean)
	}
	if math.Abs(stats.SpeedP50-3.5) > 1e-9 {
		t.Errorf("SpeedP50 = %v, want 3.5", stats.SpeedP50)
	}
	if math.Abs(stats.SpeedMax-4) > 1e-9 {
		t.Errorf("SpeedMax = %v, want 4", stats.SpeedMax)
	}

	// KE = 0.5*2*9 + 0.5*2*16 = 25
	if math.Abs(stats.Kinetic-25) > 1e-9 {
		t.Errorf("Kinetic = %v, want 25", stats.Kinetic)
	}

	// p = (6, 0, 0) + (0, 8, 0), |p| = 10
	if math.Abs(stats.MomentumMag-10) > 1e-9 {
		t.Errorf("MomentumMag = %v, want 10", stats.MomentumMag)
	}

	// Symmetric positions: COM at origin, RMS radius 1
	if stats.COMX != 0 || stats.COMY != 0 || stats.COMZ != 0 {
		t.Errorf("COM = (%v, %v, %v), want origin", stats.COMX, stats.COMY, stats.COMZ)
	}
	if math.Abs(stats.RMSRadius-1) > 1e-9 {
		t.Errorf("RMSRadius = %v, want 1", stats.RMSRadius)
	}
}

func TestCollectorSkippedDelta(t *testing.T) {
	c := NewCollector(5, 0.1)

	stats := c.Flush(5, nil, nil, 7)
	if stats.Skipped != 7 {
		t.Errorf("first window Skipped = %d, want 7", stats.Skipped)
	}

	stats = c.Flush(10, nil, nil, 12)
	if stats.Skipped != 5 {
		t.Errorf("second window Skipped = %d, want 5", stats.Skipped)
	}
}

func TestCollectorMinimumWindow(t *testing.T) {
	c := NewCollector(0, 0.1)

	if c.WindowSteps() != 1 {
		t.Errorf("WindowSteps() = %d, want clamped to 1", c.WindowSteps())
	}
	if !c.ShouldFlush(1) {
		t.Error("ShouldFlush(1) = false with a one-step window")
	}
}

func TestCollectorEmptyBuffers(t *testing.T) {
	c := NewCollector(10, 0.016)
	stats := c.Flush(10, nil, nil, 0)

	if stats.Particles != 0 || stats.Mass != 0 {
		t.Errorf("empty flush: Particles = %d, Mass = %v", stats.Particles, stats.Mass)
	}
	if stats.RMSRadius != 0 || stats.MomentumMag != 0 {
		t.Errorf("empty flush: RMSRadius = %v, MomentumMag = %v", stats.RMSRadius, stats.MomentumMag)
	}
}
