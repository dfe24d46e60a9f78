// Octograv simulates self-gravitating particle systems with a
// Barnes-Hut moment pyramid. It runs headless by default, logging
// window statistics and writing CSV telemetry; -view opens the
// interactive viewer instead.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/oyin-bo/octograv/config"
	"github.com/oyin-bo/octograv/gravity"
	"github.com/oyin-bo/octograv/scenario"
	"github.com/oyin-bo/octograv/telemetry"
	"github.com/oyin-bo/octograv/viewer"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	scenarioName := flag.String("scenario", "", "Initial conditions: binary | cluster | disk | escape | uniform (empty = config)")
	particles := flag.Int("particles", 0, "Particle count (0 = config)")
	steps := flag.Int("steps", -1, "Steps to run, 0 = until interrupted (-1 = config)")
	seed := flag.Int64("seed", 0, "Scenario RNG seed (0 = config)")
	outputDir := flag.String("output", "", "Output directory for CSV telemetry (empty = config)")
	logLevel := flag.String("log-level", "info", "Log level: debug | info | warn | error")
	logEvery := flag.Int("log-every", 0, "Steps per stats window (0 = config)")
	snapshotDir := flag.String("snapshot-dir", "", "Write a final state snapshot here")
	view := flag.Bool("view", false, "Open the interactive viewer instead of running headless")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Flags override the run section
	if *scenarioName != "" {
		cfg.Run.Scenario = *scenarioName
	}
	if *particles > 0 {
		cfg.Run.Particles = *particles
	}
	if *steps >= 0 {
		cfg.Run.Steps = *steps
	}
	if cfg.Run.Steps < 0 {
		cfg.Run.Steps = 0
	}
	if *seed != 0 {
		cfg.Run.Seed = *seed
	}
	if *outputDir != "" {
		cfg.Run.OutputDir = *outputDir
	}
	if *logEvery > 0 {
		cfg.Run.LogEvery = *logEvery
	}

	// JSON logs on stderr; stdout stays free for tool output
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	build := func(name string) (*gravity.Simulation, error) {
		pos, vel, err := scenario.Build(name, cfg.Run.Particles, cfg.Simulation.G, cfg.Run.Seed)
		if err != nil {
			return nil, err
		}
		return gravity.New(cfg, pos, vel, gravity.WithLogger(logger))
	}

	if *view {
		if err := viewer.Run(cfg, scenario.Names(), build); err != nil {
			slog.Error("viewer failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := runHeadless(cfg, build, *snapshotDir); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// runHeadless steps the simulation to completion, flushing window
// statistics, conservation samples, and bookmarks as it goes.
func runHeadless(cfg *config.Config, build func(string) (*gravity.Simulation, error), snapshotDir string) error {
	sim, err := build(cfg.Run.Scenario)
	if err != nil {
		return err
	}
	defer sim.Close()

	var out *telemetry.OutputManager
	if cfg.Run.OutputDir != "" {
		out, err = telemetry.NewOutputManager(cfg.Run.OutputDir)
		if err != nil {
			return err
		}
		defer out.Close()
		if err := out.WriteConfig(cfg); err != nil {
			slog.Warn("writing config snapshot", "error", err)
		}
	}

	collector := telemetry.NewCollector(cfg.Run.LogEvery, cfg.Simulation.DT)
	detector := telemetry.NewBookmarkDetector(12)
	var drift telemetry.DriftTracker

	slog.Info("starting run",
		"scenario", cfg.Run.Scenario,
		"particles", sim.NumParticles(),
		"steps", cfg.Run.Steps,
		"seed", cfg.Run.Seed,
		"theta", cfg.Simulation.Theta,
		"dt", cfg.Simulation.DT,
	)

	start := time.Now()
	maxSteps := uint64(cfg.Run.Steps)

	// Freshest conservation sample inside the current window, handed
	// to the bookmark detector at the next flush.
	var lastCons *telemetry.Conserved

	for {
		sim.Step()
		step := sim.StepCount()

		if every := cfg.Telemetry.ConservationEvery; every > 0 && step%uint64(every) == 0 {
			c := telemetry.Measure(sim.Positions(), sim.Velocities(), cfg.Simulation.G, cfg.Simulation.Softening)
			c.Step = step
			d := drift.Record(c)
			slog.Debug("conservation",
				"step", step,
				"energy", c.Energy(),
				"energy_drift", d.Energy,
				"momentum_drift", d.Momentum,
			)
			if out != nil {
				if err := out.WriteConservation(c.ToRow(d)); err != nil {
					slog.Warn("writing conservation row", "error", err)
				}
			}
			lastCons = &c
		}

		if collector.ShouldFlush(step) {
			stats := collector.Flush(step, sim.Positions(), sim.Velocities(), sim.SkippedParticles())
			stats.LogStats()
			perf := sim.Perf().Stats()
			perf.LogStats()
			if out != nil {
				if err := out.WriteWindow(stats); err != nil {
					slog.Warn("writing window stats", "error", err)
				}
				if err := out.WritePerf(perf, int64(step)); err != nil {
					slog.Warn("writing perf stats", "error", err)
				}
			}
			for _, b := range detector.Check(stats, lastCons) {
				b.LogBookmark()
			}
			lastCons = nil
		}

		if maxSteps > 0 && step >= maxSteps {
			break
		}
	}

	elapsed := time.Since(start)
	slog.Info("run complete",
		"steps", sim.StepCount(),
		"sim_time", sim.SimTime(),
		"wall_time", elapsed.Round(time.Millisecond).String(),
		"skipped", sim.SkippedParticles(),
	)

	if snapshotDir != "" {
		path, err := telemetry.SaveSnapshot(sim.Snapshot(), snapshotDir)
		if err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		slog.Info("snapshot saved", "path", path)
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
