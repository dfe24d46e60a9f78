// Package viewer renders a running simulation in a raylib window:
// speed-colored particles projected through an orbit camera, probe
// trails, the world box, and a side panel for live parameter tuning.
package viewer

import (
	"fmt"
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/oyin-bo/octograv/config"
	"github.com/oyin-bo/octograv/gravity"
	"github.com/oyin-bo/octograv/octree"
	"github.com/oyin-bo/octograv/telemetry"
)

// BuildFunc constructs a fresh simulation for a named scenario. The
// viewer calls it again whenever the user switches scenarios.
type BuildFunc func(name string) (*gravity.Simulation, error)

// Viewer holds the window state: the live simulation, the camera, probe
// trails, and the tuning values mirrored into the side panel.
type Viewer struct {
	cfg   *config.Config
	build BuildFunc

	sim    *gravity.Simulation
	cam    *Camera
	probes *ProbeSet

	scenarios   []string
	scenarioIdx int

	paused        bool
	stepsPerFrame int
	pointSize     float32
	theta         float32
	damping       float32
	monopole      bool
	showPanel     bool

	// Rolling speed normalization for the color ramp, smoothed across
	// frames so colors do not flicker.
	speedScale float32
}

// Run opens the window and drives the simulation until the user closes
// it. The initial scenario comes from cfg.Run.Scenario when it appears
// in the scenario list.
func Run(cfg *config.Config, scenarios []string, build BuildFunc) error {
	if len(scenarios) == 0 {
		return fmt.Errorf("viewer: no scenarios to show")
	}

	idx := 0
	for i, name := range scenarios {
		if name == cfg.Run.Scenario {
			idx = i
			break
		}
	}

	sim, err := build(scenarios[idx])
	if err != nil {
		return fmt.Errorf("viewer: building scenario %q: %w", scenarios[idx], err)
	}

	v := &Viewer{
		cfg:           cfg,
		build:         build,
		sim:           sim,
		scenarios:     scenarios,
		scenarioIdx:   idx,
		stepsPerFrame: 1,
		pointSize:     float32(cfg.Viewer.PointSize),
		theta:         float32(cfg.Simulation.Theta),
		damping:       float32(cfg.Simulation.Damping),
		monopole:      cfg.Simulation.MonopoleOnly,
		showPanel:     true,
	}
	defer func() { v.sim.Close() }()

	rl.InitWindow(int32(cfg.Viewer.Width), int32(cfg.Viewer.Height), "Octograv")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Viewer.TargetFPS))

	v.cam = New(float32(cfg.Viewer.Width), float32(cfg.Viewer.Height))
	box, _ := sim.Bounds()
	v.cam.AutoFrame(box)

	v.probes = NewProbeSet(sim.NumParticles(), cfg.Viewer.Probes, cfg.Viewer.TrailLength, cfg.Run.Seed)
	v.probes.Record(sim.Positions())

	for !rl.WindowShouldClose() {
		v.handleInput()
		v.update()
		v.draw()
	}
	return nil
}

// update advances the simulation unless paused. Trails record once per
// frame, not per step, so they stay readable at high step rates.
func (v *Viewer) update() {
	if v.paused {
		return
	}
	for i := 0; i < v.stepsPerFrame; i++ {
		v.sim.Step()
	}
	v.probes.Record(v.sim.Positions())
}

func (v *Viewer) draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.Color{R: 8, G: 10, B: 16, A: 255})

	v.drawBounds()
	v.drawParticles()
	v.drawTrails()
	v.drawHUD()
	if v.showPanel {
		v.drawPanel()
	}

	rl.EndDrawing()
	v.sim.Perf().RecordFrame()
}

// drawBounds outlines the current world box as 12 wireframe edges.
func (v *Viewer) drawBounds() {
	box, _ := v.sim.Bounds()
	if !box.Valid() {
		return
	}

	var pts [8]rl.Vector2
	var vis [8]bool
	for i := 0; i < 8; i++ {
		x, y, z := box.Min.X, box.Min.Y, box.Min.Z
		if i&1 != 0 {
			x = box.Max.X
		}
		if i&2 != 0 {
			y = box.Max.Y
		}
		if i&4 != 0 {
			z = box.Max.Z
		}
		sx, sy, _, ok := v.cam.WorldToScreen(x, y, z)
		pts[i] = rl.Vector2{X: sx, Y: sy}
		vis[i] = ok
	}

	// Corners pair along each axis when their indices differ by one bit.
	edges := [12][2]int{
		{0, 1}, {2, 3}, {4, 5}, {6, 7},
		{0, 2}, {1, 3}, {4, 6}, {5, 7},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
	c := rl.Color{R: 60, G: 70, B: 90, A: 255}
	for _, e := range edges {
		if vis[e[0]] && vis[e[1]] {
			rl.DrawLineV(pts[e[0]], pts[e[1]], c)
		}
	}
}

// drawParticles projects and draws every finite particle, colored by
// speed relative to the rolling maximum.
func (v *Viewer) drawParticles() {
	pos := v.sim.Positions()
	vel := v.sim.Velocities()
	n := v.sim.NumParticles()

	scale := v.speedScale
	if scale <= 0 {
		scale = 1
	}

	var frameMax float32
	for i := 0; i < n; i++ {
		o := i * octree.Stride
		x, y, z := pos[o], pos[o+1], pos[o+2]
		if x != x || y != y || z != z {
			continue
		}
		sx, sy, _, ok := v.cam.WorldToScreen(x, y, z)
		if !ok {
			continue
		}
		if sx < -10 || sx > v.cam.ViewportW+10 || sy < -10 || sy > v.cam.ViewportH+10 {
			continue
		}

		vx, vy, vz := vel[o], vel[o+1], vel[o+2]
		speed := sqrtf(vx*vx + vy*vy + vz*vz)
		if speed > frameMax {
			frameMax = speed
		}

		r, g, b, a := speedColor(sqrtf(speed / scale))
		rl.DrawCircleV(rl.Vector2{X: sx, Y: sy}, v.pointSize, rl.Color{R: r, G: g, B: b, A: a})
	}

	if v.speedScale <= 0 {
		v.speedScale = frameMax
	} else {
		v.speedScale = 0.95*v.speedScale + 0.05*frameMax
	}
}

// drawTrails draws each probe's recorded path, fading toward the tail,
// with a ring and label at the head.
func (v *Viewer) drawTrails() {
	v.probes.Each(func(p Probe, tr *Trail) {
		n := tr.Count
		if n == 0 {
			return
		}

		var prev rl.Vector2
		var prevOK bool
		var head rl.Vector2
		var headOK bool
		tr.Walk(func(i int, pt vec3) {
			sx, sy, _, ok := v.cam.WorldToScreen(pt[0], pt[1], pt[2])
			cur := rl.Vector2{X: sx, Y: sy}
			if ok && prevOK {
				alpha := uint8(40 + 215*i/n)
				rl.DrawLineV(prev, cur, rl.Color{R: 200, G: 210, B: 230, A: alpha})
			}
			prev, prevOK = cur, ok
			if i == n-1 {
				head, headOK = cur, ok
			}
		})

		if headOK {
			rl.DrawCircleLines(int32(head.X), int32(head.Y), v.pointSize+3, rl.Color{R: 255, G: 220, B: 120, A: 255})
			rl.DrawText(p.Label, int32(head.X)+8, int32(head.Y)-8, 10, rl.LightGray)
		}
	})
}

// drawHUD prints run state in the top-left corner and the key legend
// along the bottom edge.
func (v *Viewer) drawHUD() {
	stats := v.sim.Perf().Stats()

	rl.DrawText(fmt.Sprintf("%s  n=%d", v.scenarios[v.scenarioIdx], v.sim.NumParticles()), 10, 10, 20, rl.White)
	rl.DrawText(fmt.Sprintf("step %d  t=%.2f  %d fps  %dx", v.sim.StepCount(), v.sim.SimTime(), rl.GetFPS(), v.stepsPerFrame), 10, 35, 20, rl.White)
	rl.DrawText(fmt.Sprintf("tick %.2f ms  traverse %.0f%%",
		float64(stats.AvgTickDuration.Microseconds())/1000,
		stats.PhasePct[telemetry.PhaseTraverse]), 10, 60, 20, rl.LightGray)

	y := int32(85)
	if skipped := v.sim.SkippedParticles(); skipped > 0 {
		rl.DrawText(fmt.Sprintf("skipped %d non-finite updates", skipped), 10, y, 20, rl.Orange)
		y += 25
	}
	if v.paused {
		rl.DrawText("PAUSED", 10, y, 20, rl.Yellow)
	}

	legend := "drag orbit  rmb pan  wheel zoom  space pause  n step  s scenario  r reframe  tab panel"
	rl.DrawText(legend, 10, int32(v.cam.ViewportH)-22, 10, rl.Gray)
}

// switchScenario rebuilds the simulation for the scenario delta slots
// away, wrapping around the list.
func (v *Viewer) switchScenario(delta int) {
	n := len(v.scenarios)
	v.scenarioIdx = ((v.scenarioIdx+delta)%n + n) % n
	v.rebuild()
}

// rebuild replaces the simulation with a fresh build of the current
// scenario, keeping the panel's tuning values. On failure the old
// simulation keeps running.
func (v *Viewer) rebuild() {
	name := v.scenarios[v.scenarioIdx]
	sim, err := v.build(name)
	if err != nil {
		slog.Error("scenario rebuild failed", "scenario", name, "error", err)
		return
	}

	v.sim.Close()
	v.sim = sim
	v.applyTuning()

	box, _ := sim.Bounds()
	v.cam.AutoFrame(box)

	v.probes.Retarget(sim.NumParticles(), v.cfg.Viewer.Probes, v.cfg.Run.Seed)
	v.probes.Record(sim.Positions())
	v.speedScale = 0
}

// applyTuning pushes the panel values into the simulation.
func (v *Viewer) applyTuning() {
	v.sim.SetTheta(float64(v.theta))
	v.sim.SetDamping(float64(v.damping))
	v.sim.SetMonopoleOnly(v.monopole)
}
