// Package config provides configuration loading and access for the
// simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Octree     OctreeConfig     `yaml:"octree"`
	Bounds     BoundsConfig     `yaml:"bounds"`
	Run        RunConfig        `yaml:"run"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Viewer     ViewerConfig     `yaml:"viewer"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds the physics parameters.
type SimulationConfig struct {
	DT           float64 `yaml:"dt"`            // seconds per step
	G            float64 `yaml:"g"`             // gravitational constant
	Theta        float64 `yaml:"theta"`         // opening angle; smaller = more accurate, more cost
	Softening    float64 `yaml:"softening"`     // force softening length, never zero
	Damping      float64 `yaml:"damping"`       // velocity damping factor per step, 0 = off
	MaxSpeed     float64 `yaml:"max_speed"`     // speed clamp, 0 = off
	MaxAccel     float64 `yaml:"max_accel"`     // acceleration clamp, 0 = off
	MonopoleOnly bool    `yaml:"monopole_only"` // drop quadrupole terms in the far field
	Workers      int     `yaml:"workers"`       // worker goroutines, 0 = one per logical CPU
}

// OctreeConfig holds the pyramid dimensions.
type OctreeConfig struct {
	GridSize     int `yaml:"grid_size"`      // finest level voxels per axis, power of two
	Levels       int `yaml:"levels"`         // pyramid depth; grid_size == 1<<(levels-1)
	SlicesPerRow int `yaml:"slices_per_row"` // z-slice atlas columns for exports and the viewer
}

// BoundsConfig holds world box tracking parameters.
type BoundsConfig struct {
	RefreshSec float64    `yaml:"refresh_sec"` // seconds between background recomputes, 0 = never
	Margin     float64    `yaml:"margin"`      // padding as a share of the largest extent
	Min        [3]float32 `yaml:"min"`         // initial box corner
	Max        [3]float32 `yaml:"max"`
}

// RunConfig holds headless run parameters.
type RunConfig struct {
	Scenario  string `yaml:"scenario"` // binary | cluster | disk | escape | uniform
	Particles int    `yaml:"particles"`
	Steps     int    `yaml:"steps"` // 0 = run until interrupted
	Seed      int64  `yaml:"seed"`
	OutputDir string `yaml:"output_dir"` // write CSV telemetry here when set
	LogEvery  int    `yaml:"log_every"`  // steps between progress log lines
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfWindow        int `yaml:"perf_window"`        // ticks in the rolling perf window
	ConservationEvery int `yaml:"conservation_every"` // steps between O(N^2) conservation samples, 0 = off
}

// ViewerConfig holds interactive viewer settings.
type ViewerConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	TargetFPS   int     `yaml:"target_fps"`
	PointSize   float64 `yaml:"point_size"`
	TrailLength int     `yaml:"trail_length"` // positions kept per probe trail
	Probes      int     `yaml:"probes"`       // particles tracked with trails
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32        float32
	G32         float32
	Theta32     float32
	Softening32 float32
	Eps2        float32 // Softening32 squared
	Damping32   float32
	MaxSpeed32  float32
	MaxAccel32  float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults
// if path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Finalize validates the config and computes the derived values. Load
// calls it automatically; hand-built configs must call it before use.
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// Validate checks the numeric constraints the simulation depends on.
func (c *Config) Validate() error {
	s := &c.Simulation
	if !(s.DT > 0) || math.IsInf(s.DT, 0) {
		return fmt.Errorf("config: simulation.dt must be positive and finite, got %v", s.DT)
	}
	if s.G < 0 || math.IsNaN(s.G) || math.IsInf(s.G, 0) {
		return fmt.Errorf("config: simulation.g must be non-negative and finite, got %v", s.G)
	}
	if !(s.Theta > 0) || math.IsInf(s.Theta, 0) {
		return fmt.Errorf("config: simulation.theta must be positive and finite, got %v", s.Theta)
	}
	if !(s.Softening > 0) || math.IsInf(s.Softening, 0) {
		return fmt.Errorf("config: simulation.softening must be positive and finite, got %v", s.Softening)
	}
	if s.Damping < 0 || s.Damping >= 1 || math.IsNaN(s.Damping) {
		return fmt.Errorf("config: simulation.damping must be in [0, 1), got %v", s.Damping)
	}
	if s.MaxSpeed < 0 || math.IsNaN(s.MaxSpeed) {
		return fmt.Errorf("config: simulation.max_speed must be non-negative, got %v", s.MaxSpeed)
	}
	if s.MaxAccel < 0 || math.IsNaN(s.MaxAccel) {
		return fmt.Errorf("config: simulation.max_accel must be non-negative, got %v", s.MaxAccel)
	}

	o := &c.Octree
	if o.GridSize < 1 || o.GridSize&(o.GridSize-1) != 0 {
		return fmt.Errorf("config: octree.grid_size must be a power of two, got %d", o.GridSize)
	}
	if o.Levels < 1 || 1<<(o.Levels-1) != o.GridSize {
		return fmt.Errorf("config: octree.levels must satisfy grid_size == 1<<(levels-1), got levels=%d grid_size=%d",
			o.Levels, o.GridSize)
	}
	if o.SlicesPerRow < 1 {
		return fmt.Errorf("config: octree.slices_per_row must be positive, got %d", o.SlicesPerRow)
	}

	b := &c.Bounds
	if b.RefreshSec < 0 || math.IsNaN(b.RefreshSec) {
		return fmt.Errorf("config: bounds.refresh_sec must be non-negative, got %v", b.RefreshSec)
	}
	if !(b.Margin > 0) || math.IsInf(b.Margin, 0) {
		return fmt.Errorf("config: bounds.margin must be positive and finite, got %v", b.Margin)
	}

	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	s := &c.Simulation
	c.Derived.DT32 = float32(s.DT)
	c.Derived.G32 = float32(s.G)
	c.Derived.Theta32 = float32(s.Theta)
	c.Derived.Softening32 = float32(s.Softening)
	c.Derived.Eps2 = c.Derived.Softening32 * c.Derived.Softening32
	c.Derived.Damping32 = float32(s.Damping)
	c.Derived.MaxSpeed32 = float32(s.MaxSpeed)
	c.Derived.MaxAccel32 = float32(s.MaxAccel)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
