package viewer

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

const panelWidth = 240

// drawPanel renders the tuning panel along the right edge. Slider
// changes apply to the running simulation immediately; scenario
// switches rebuild it.
func (v *Viewer) drawPanel() {
	panelX := v.cam.ViewportW - panelWidth - 10
	panelY := float32(10)

	rl.DrawRectangle(int32(panelX)-10, 0, panelWidth+20, int32(v.cam.ViewportH),
		rl.Color{R: 16, G: 18, B: 26, A: 210})

	rl.DrawText("Tuning", int32(panelX), int32(panelY), 20, rl.White)
	panelY += 35

	// Opening angle slider
	rl.DrawText("Theta (opening angle)", int32(panelX), int32(panelY), 14, rl.Gray)
	panelY += 18
	newTheta := gui.SliderBar(
		rl.Rectangle{X: panelX, Y: panelY, Width: panelWidth - 80, Height: 20},
		"0.3", "1.5",
		v.theta, 0.3, 1.5,
	)
	rl.DrawText(fmt.Sprintf("%.2f", v.theta), int32(panelX+panelWidth-70), int32(panelY+2), 16, rl.LightGray)
	if newTheta != v.theta {
		v.theta = newTheta
		v.sim.SetTheta(float64(newTheta))
	}
	panelY += 35

	// Damping slider
	rl.DrawText("Damping (per step)", int32(panelX), int32(panelY), 14, rl.Gray)
	panelY += 18
	newDamping := gui.SliderBar(
		rl.Rectangle{X: panelX, Y: panelY, Width: panelWidth - 80, Height: 20},
		"0", "0.05",
		v.damping, 0, 0.05,
	)
	rl.DrawText(fmt.Sprintf("%.3f", v.damping), int32(panelX+panelWidth-70), int32(panelY+2), 16, rl.LightGray)
	if newDamping != v.damping {
		v.damping = newDamping
		v.sim.SetDamping(float64(newDamping))
	}
	panelY += 35

	// Point size slider
	rl.DrawText("Point size", int32(panelX), int32(panelY), 14, rl.Gray)
	panelY += 18
	newSize := gui.SliderBar(
		rl.Rectangle{X: panelX, Y: panelY, Width: panelWidth - 80, Height: 20},
		"1", "6",
		v.pointSize, 1, 6,
	)
	rl.DrawText(fmt.Sprintf("%.1f", v.pointSize), int32(panelX+panelWidth-70), int32(panelY+2), 16, rl.LightGray)
	if newSize != v.pointSize {
		v.pointSize = newSize
	}
	panelY += 35

	// Steps per frame slider
	rl.DrawText("Steps per frame", int32(panelX), int32(panelY), 14, rl.Gray)
	panelY += 18
	newSteps := gui.SliderBar(
		rl.Rectangle{X: panelX, Y: panelY, Width: panelWidth - 80, Height: 20},
		"1", "16",
		float32(v.stepsPerFrame), 1, 16,
	)
	rl.DrawText(fmt.Sprintf("%d", v.stepsPerFrame), int32(panelX+panelWidth-70), int32(panelY+2), 16, rl.LightGray)
	if int(newSteps) != v.stepsPerFrame {
		v.stepsPerFrame = int(newSteps)
	}
	panelY += 45

	// Buttons
	if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 110, Height: 30}, toggleText(v.paused, "Resume", "Pause")) {
		v.paused = !v.paused
	}
	if gui.Button(rl.Rectangle{X: panelX + 120, Y: panelY, Width: 110, Height: 30}, toggleText(v.monopole, "Quadrupole", "Monopole")) {
		v.monopole = !v.monopole
		v.sim.SetMonopoleOnly(v.monopole)
	}
	panelY += 40

	if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 110, Height: 30}, "Next scenario") {
		v.switchScenario(1)
	}
	if gui.Button(rl.Rectangle{X: panelX + 120, Y: panelY, Width: 110, Height: 30}, "Reframe") {
		box, _ := v.sim.Bounds()
		v.cam.AutoFrame(box)
	}
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
