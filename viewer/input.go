package viewer

import rl "github.com/gen2brain/raylib-go/raylib"

const orbitSpeed = 0.005

// handleInput processes keyboard and mouse input.
func (v *Viewer) handleInput() {
	// Window resize propagation
	v.handleResize()

	if rl.IsKeyPressed(rl.KeySpace) {
		v.paused = !v.paused
	}

	// Single step while paused
	if rl.IsKeyPressed(rl.KeyN) && v.paused {
		v.sim.Step()
		v.probes.Record(v.sim.Positions())
	}

	if rl.IsKeyPressed(rl.KeyS) {
		v.switchScenario(1)
	}

	if rl.IsKeyPressed(rl.KeyM) {
		v.monopole = !v.monopole
		v.sim.SetMonopoleOnly(v.monopole)
	}

	// Force a synchronous world box recompute
	if rl.IsKeyPressed(rl.KeyB) {
		v.sim.RefreshBounds()
	}

	if rl.IsKeyPressed(rl.KeyR) {
		box, _ := v.sim.Bounds()
		v.cam.AutoFrame(box)
	}

	if rl.IsKeyPressed(rl.KeyTab) {
		v.showPanel = !v.showPanel
	}

	// Steps-per-frame control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) && v.stepsPerFrame > 1 {
		v.stepsPerFrame--
	}
	if rl.IsKeyPressed(rl.KeyPeriod) && v.stepsPerFrame < 16 {
		v.stepsPerFrame++
	}

	v.handleCameraInput()
}

// handleResize checks for window resize and propagates new dimensions.
func (v *Viewer) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == v.cam.ViewportW && h == v.cam.ViewportH {
		return
	}
	v.cam.Resize(w, h)
}

// handleCameraInput processes camera orbit, pan, and zoom controls.
func (v *Viewer) handleCameraInput() {
	// Keep camera drags off the panel's sliders
	overPanel := v.showPanel && rl.GetMousePosition().X > v.cam.ViewportW-panelWidth-20

	if !overPanel {
		delta := rl.GetMouseDelta()
		if rl.IsMouseButtonDown(rl.MouseButtonLeft) {
			v.cam.Orbit(-delta.X*orbitSpeed, delta.Y*orbitSpeed)
		}
		if rl.IsMouseButtonDown(rl.MouseButtonRight) {
			v.cam.Pan(delta.X, delta.Y)
		}

		wheelMove := rl.GetMouseWheelMove()
		if wheelMove != 0 {
			// Wheel up shrinks the orbit distance
			v.cam.Zoom(1.0 - wheelMove*0.1)
		}
	}

	// Keyboard zoom with +/- (= and - keys)
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		v.cam.Zoom(0.8)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		v.cam.Zoom(1.25)
	}

	// Home key to reset camera
	if rl.IsKeyPressed(rl.KeyHome) {
		v.cam.Reset()
		box, _ := v.sim.Bounds()
		v.cam.AutoFrame(box)
	}
}
