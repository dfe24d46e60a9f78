package viewer

import (
	"math"
	"testing"

	"github.com/oyin-bo/octograv/octree"
)

// canonical returns a camera in a hand-checkable pose: looking down +Z
// from (0, 0, -10) with a 90 degree vertical field of view.
func canonical() *Camera {
	cam := New(800, 600)
	cam.Yaw = 0
	cam.Pitch = 0
	cam.Distance = 10
	cam.FovY = math.Pi / 2
	return cam
}

func near(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

func TestWorldToScreenCentered(t *testing.T) {
	cam := canonical()

	// The target projects to the viewport center at depth Distance
	sx, sy, depth, ok := cam.WorldToScreen(0, 0, 0)
	if !ok {
		t.Fatal("target not visible")
	}
	if !near(sx, 400, 0.01) || !near(sy, 300, 0.01) {
		t.Errorf("target projects to (%f, %f), want (400, 300)", sx, sy)
	}
	if !near(depth, 10, 0.01) {
		t.Errorf("depth = %f, want 10", depth)
	}

	// With fov 90 and depth 10, one world unit is 30 pixels
	sx, sy, _, ok = cam.WorldToScreen(1, 0, 0)
	if !ok || !near(sx, 430, 0.01) || !near(sy, 300, 0.01) {
		t.Errorf("(1,0,0) projects to (%f, %f, %v), want (430, 300)", sx, sy, ok)
	}

	// +Y in the world is up on screen, so smaller sy
	sx, sy, _, ok = cam.WorldToScreen(0, 1, 0)
	if !ok || !near(sx, 400, 0.01) || !near(sy, 270, 0.01) {
		t.Errorf("(0,1,0) projects to (%f, %f, %v), want (400, 270)", sx, sy, ok)
	}
}

func TestWorldToScreenBehind(t *testing.T) {
	cam := canonical()

	// Eye sits at (0, 0, -10); this point is behind it
	if _, _, _, ok := cam.WorldToScreen(0, 0, -20); ok {
		t.Error("point behind the eye reported visible")
	}

	// A point at the eye itself is rejected by the near plane
	if _, _, _, ok := cam.WorldToScreen(0, 0, -10); ok {
		t.Error("point at the eye reported visible")
	}
}

func TestEyeOrbitsAtDistance(t *testing.T) {
	cam := New(800, 600)
	cam.TargetX, cam.TargetY, cam.TargetZ = 3, -2, 7
	cam.Distance = 12

	poses := []struct{ yaw, pitch float32 }{
		{0, 0},
		{1.2, 0.5},
		{-2.5, -1.0},
		{math.Pi, 1.5},
	}
	for _, p := range poses {
		cam.Yaw, cam.Pitch = p.yaw, p.pitch
		ex, ey, ez := cam.Eye()
		dx, dy, dz := ex-3, ey+2, ez-7
		d := float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
		if !near(d, 12, 0.001) {
			t.Errorf("yaw=%v pitch=%v: |eye-target| = %f, want 12", p.yaw, p.pitch, d)
		}
	}
}

func TestOrbitClampsPitch(t *testing.T) {
	cam := New(800, 600)

	cam.Orbit(0, 10)
	if cam.Pitch != maxPitch {
		t.Errorf("pitch = %f after large positive orbit, want %f", cam.Pitch, float32(maxPitch))
	}

	cam.Orbit(0, -100)
	if cam.Pitch != -maxPitch {
		t.Errorf("pitch = %f after large negative orbit, want %f", cam.Pitch, float32(-maxPitch))
	}
}

func TestZoomClamps(t *testing.T) {
	cam := New(800, 600)

	cam.Zoom(1e-9)
	if cam.Distance != cam.MinDistance {
		t.Errorf("distance = %f after extreme zoom in, want %f", cam.Distance, cam.MinDistance)
	}

	cam.Zoom(1e12)
	if cam.Distance != cam.MaxDistance {
		t.Errorf("distance = %f after extreme zoom out, want %f", cam.Distance, cam.MaxDistance)
	}
}

func TestPanFollowsDrag(t *testing.T) {
	cam := canonical()

	// 30 px at depth 10 with fov 90 is one world unit
	cam.Pan(30, 0)
	if !near(cam.TargetX, -1, 0.001) || !near(cam.TargetY, 0, 0.001) || !near(cam.TargetZ, 0, 0.001) {
		t.Errorf("after Pan(30,0): target = (%f, %f, %f), want (-1, 0, 0)",
			cam.TargetX, cam.TargetY, cam.TargetZ)
	}

	cam.Pan(0, 30)
	if !near(cam.TargetY, 1, 0.001) {
		t.Errorf("after Pan(0,30): targetY = %f, want 1", cam.TargetY)
	}

	// Panning never changes the orbit distance
	if cam.Distance != 10 {
		t.Errorf("pan changed distance to %f", cam.Distance)
	}
}

func TestAutoFrameContainsBox(t *testing.T) {
	cam := New(800, 600)
	box := octree.Box{
		Min: octree.Vec3{X: -3, Y: -2, Z: 1},
		Max: octree.Vec3{X: 5, Y: 4, Z: 9},
	}

	cam.AutoFrame(box)

	if !near(cam.TargetX, 1, 0.001) || !near(cam.TargetY, 1, 0.001) || !near(cam.TargetZ, 5, 0.001) {
		t.Errorf("target = (%f, %f, %f), want box center (1, 1, 5)",
			cam.TargetX, cam.TargetY, cam.TargetZ)
	}

	// Every corner must land inside the viewport
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
		sx, sy, _, ok := cam.WorldToScreen(x, y, z)
		if !ok {
			t.Fatalf("corner %d not visible after AutoFrame", i)
		}
		if sx < 0 || sx > 800 || sy < 0 || sy > 600 {
			t.Errorf("corner %d projects to (%f, %f), outside 800x600", i, sx, sy)
		}
	}
}

func TestAutoFrameIgnoresInvalidBox(t *testing.T) {
	cam := New(800, 600)
	cam.TargetX = 42

	// Min above Max is not a valid box
	cam.AutoFrame(octree.Box{
		Min: octree.Vec3{X: 1, Y: 1, Z: 1},
		Max: octree.Vec3{X: -1, Y: -1, Z: -1},
	})

	if cam.TargetX != 42 {
		t.Errorf("invalid box moved the target to %f", cam.TargetX)
	}
}

func TestResize(t *testing.T) {
	cam := canonical()
	cam.Resize(1600, 1200)

	// Same pose, doubled viewport: the unit offset doubles in pixels
	sx, _, _, ok := cam.WorldToScreen(1, 0, 0)
	if !ok || !near(sx, 860, 0.01) {
		t.Errorf("(1,0,0) projects to x=%f after resize, want 860", sx)
	}
}
