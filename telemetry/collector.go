package telemetry

import (
	"log/slog"
	"math"
)

// WindowStats holds aggregated particle statistics for a stats window.
// Speed, energy and bulk-motion fields are gauges sampled at the window
// end; Skipped counts force-skipped particle steps during the window.
type WindowStats struct {
	WindowStart uint64  `csv:"-"`
	WindowEnd   uint64  `csv:"window_end"`
	SimTime     float64 `csv:"sim_time"`

	// Particle counts at window end
	Particles int `csv:"particles"`
	NonFinite int `csv:"non_finite"`

	Mass float64 `csv:"mass"`

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	// Bulk motion
	Kinetic     float64 `csv:"kinetic"`
	MomentumMag float64 `csv:"momentum_mag"`
	COMX        float64 `csv:"com_x"`
	COMY        float64 `csv:"com_y"`
	COMZ        float64 `csv:"com_z"`

	// RMSRadius is the mass-weighted RMS distance from the center of
	// mass, a cheap proxy for system size.
	RMSRadius float64 `csv:"rms_radius"`

	// Skipped particle steps (non-finite lanes) during the window
	Skipped uint64 `csv:"skipped"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStart),
		slog.Uint64("window_end", s.WindowEnd),
		slog.Float64("sim_time", s.SimTime),
		slog.Int("particles", s.Particles),
		slog.Int("non_finite", s.NonFinite),
		slog.Float64("mass", s.Mass),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("kinetic", s.Kinetic),
		slog.Float64("momentum_mag", s.MomentumMag),
		slog.Float64("com_x", s.COMX),
		slog.Float64("com_y", s.COMY),
		slog.Float64("com_z", s.COMZ),
		slog.Float64("rms_radius", s.RMSRadius),
		slog.Uint64("skipped", s.Skipped),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEnd,
		"sim_time", s.SimTime,
		"particles", s.Particles,
		"non_finite", s.NonFinite,
		"mass", s.Mass,
		"speed_mean", s.SpeedMean,
		"speed_p50", s.SpeedP50,
		"speed_p90", s.SpeedP90,
		"speed_max", s.SpeedMax,
		"kinetic", s.Kinetic,
		"momentum_mag", s.MomentumMag,
		"rms_radius", s.RMSRadius,
		"skipped", s.Skipped,
	)
}

// Collector produces WindowStats on a fixed step cadence.
type Collector struct {
	windowSteps uint64
	dt          float64

	// Current window tracking
	windowStart uint64

	// Cumulative skip count at the last flush, for window deltas
	lastSkipped uint64
}

// NewCollector creates a new stats collector.
// windowSteps: how many simulation steps each stats window spans
// dt: seconds per step (used for step-to-time conversion)
func NewCollector(windowSteps int, dt float64) *Collector {
	if windowSteps < 1 {
		windowSteps = 1
	}
	return &Collector{
		windowSteps: uint64(windowSteps),
		dt:          dt,
	}
}

// ShouldFlush returns true if enough steps have passed to flush the window.
func (c *Collector) ShouldFlush(step uint64) bool {
	return step-c.windowStart >= c.windowSteps
}

// Flush produces a WindowStats from the packed particle buffers and
// advances the window. pos lanes are (x, y, z, mass), vel lanes are
// (vx, vy, vz, _). skipped is the simulation's cumulative skip counter;
// the stats record the delta since the previous flush. Particles with
// non-positive mass are excluded; particles with non-finite lanes are
// counted but excluded from the gauges.
func (c *Collector) Flush(step uint64, pos, vel []float32, skipped uint64) WindowStats {
	n := len(pos) / laneStride

	var mass, kinetic float64
	var px, py, pz float64
	var mx, my, mz, mr2 float64
	var count, nonFinite int
	var maxSpeed float64
	speeds := make([]float64, 0, n)

	for i := 0; i < n; i++ {
		o := i * laneStride
		m := float64(pos[o+3])
		if !(m > 0) || math.IsInf(m, 0) {
			continue
		}
		x, y, z := float64(pos[o]), float64(pos[o+1]), float64(pos[o+2])
		vx, vy, vz := float64(vel[o]), float64(vel[o+1]), float64(vel[o+2])
		if anyNonFinite(x, y, z, vx, vy, vz) {
			nonFinite++
			continue
		}

		count++
		mass += m
		px += m * vx
		py += m * vy
		pz += m * vz
		mx += m * x
		my += m * y
		mz += m * z
		mr2 += m * (x*x + y*y + z*z)

		v2 := vx*vx + vy*vy + vz*vz
		kinetic += 0.5 * m * v2

		speed := math.Sqrt(v2)
		speeds = append(speeds, speed)
		if speed > maxSpeed {
			maxSpeed = speed
		}
	}

	speedMean, speedP10, speedP50, speedP90 := Summary(speeds)

	stats := WindowStats{
		WindowStart: c.windowStart,
		WindowEnd:   step,
		SimTime:     float64(step) * c.dt,

		Particles: count,
		NonFinite: nonFinite,
		Mass:      mass,

		SpeedMean: speedMean,
		SpeedP10:  speedP10,
		SpeedP50:  speedP50,
		SpeedP90:  speedP90,
		SpeedMax:  maxSpeed,

		Kinetic:     kinetic,
		MomentumMag: math.Sqrt(px*px + py*py + pz*pz),

		Skipped: skipped - c.lastSkipped,
	}

	if mass > 0 {
		stats.COMX = mx / mass
		stats.COMY = my / mass
		stats.COMZ = mz / mass
		// Parallel axis: mean square radius about COM
		r2 := mr2/mass - (stats.COMX*stats.COMX + stats.COMY*stats.COMY + stats.COMZ*stats.COMZ)
		if r2 > 0 {
			stats.RMSRadius = math.Sqrt(r2)
		}
	}

	// Advance window
	c.windowStart = step
	c.lastSkipped = skipped

	return stats
}

// WindowSteps returns the number of steps per window.
func (c *Collector) WindowSteps() uint64 {
	return c.windowSteps
}
