package gravity

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/oyin-bo/octograv/octree"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestComputeBounds(t *testing.T) {
	pos := []float32{
		1, 2, 3, 1,
		5, 6, 7, 1,
	}

	// Largest extent 4, margin 0.25 -> pad 1 on every axis
	box, ok := computeBounds(pos, 0.25)
	if !ok {
		t.Fatal("computeBounds reported no finite particles")
	}

	want := octree.Box{
		Min: octree.Vec3{X: 0, Y: 1, Z: 2},
		Max: octree.Vec3{X: 6, Y: 7, Z: 8},
	}
	if box != want {
		t.Errorf("box = %+v, want %+v", box, want)
	}
}

func TestComputeBoundsSkipsNonFinite(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	pos := []float32{
		1, 2, 3, 1,
		nan, 50, 50, 1,
		50, inf, 50, 1,
		5, 6, 7, 1,
	}

	box, ok := computeBounds(pos, 0.25)
	if !ok {
		t.Fatal("computeBounds reported no finite particles")
	}

	want := octree.Box{
		Min: octree.Vec3{X: 0, Y: 1, Z: 2},
		Max: octree.Vec3{X: 6, Y: 7, Z: 8},
	}
	if box != want {
		t.Errorf("box = %+v, want %+v (non-finite lanes should be ignored)", box, want)
	}
}

func TestComputeBoundsAllNonFinite(t *testing.T) {
	nan := float32(math.NaN())
	pos := []float32{nan, nan, nan, 1}

	if _, ok := computeBounds(pos, 0.1); ok {
		t.Error("expected failure when no particle is finite")
	}
}

func TestComputeBoundsSinglePoint(t *testing.T) {
	pos := []float32{3, -2, 5, 1}

	// Zero extent: falls back to unit padding so the box stays valid
	box, ok := computeBounds(pos, 0.1)
	if !ok {
		t.Fatal("computeBounds failed on a single particle")
	}

	want := octree.Box{
		Min: octree.Vec3{X: 2, Y: -3, Z: 4},
		Max: octree.Vec3{X: 4, Y: -1, Z: 6},
	}
	if box != want {
		t.Errorf("box = %+v, want %+v", box, want)
	}
	if !box.Valid() {
		t.Error("single-point box should be valid")
	}
}

func TestForceRefresh(t *testing.T) {
	initial := octree.Box{
		Min: octree.Vec3{X: -1, Y: -1, Z: -1},
		Max: octree.Vec3{X: 1, Y: 1, Z: 1},
	}
	b := newBoundsTracker(initial, 0.25, 0, quietLogger())

	pos := []float32{
		1, 2, 3, 1,
		5, 6, 7, 1,
	}
	if !b.ForceRefresh(pos) {
		t.Fatal("ForceRefresh failed on finite positions")
	}

	box, _ := b.Box()
	want := octree.Box{
		Min: octree.Vec3{X: 0, Y: 1, Z: 2},
		Max: octree.Vec3{X: 6, Y: 7, Z: 8},
	}
	if box != want {
		t.Errorf("box = %+v, want %+v", box, want)
	}
}

func TestForceRefreshFailureKeepsBox(t *testing.T) {
	initial := octree.Box{
		Min: octree.Vec3{X: -1, Y: -1, Z: -1},
		Max: octree.Vec3{X: 1, Y: 1, Z: 1},
	}
	b := newBoundsTracker(initial, 0.25, 0, quietLogger())

	nan := float32(math.NaN())
	if b.ForceRefresh([]float32{nan, 0, 0, 1}) {
		t.Error("ForceRefresh should fail when nothing is finite")
	}

	box, _ := b.Box()
	if box != initial {
		t.Errorf("box = %+v, want the initial %+v retained", box, initial)
	}
}

func TestMaybeRefreshDisabled(t *testing.T) {
	initial := octree.Box{
		Min: octree.Vec3{X: -1, Y: -1, Z: -1},
		Max: octree.Vec3{X: 1, Y: 1, Z: 1},
	}
	// Interval zero disables background refreshes
	b := newBoundsTracker(initial, 0.25, 0, quietLogger())
	b.last = time.Now().Add(-time.Hour)

	b.MaybeRefresh([]float32{100, 100, 100, 1})
	if b.inflight {
		t.Error("refresh started despite a zero interval")
	}

	box, _ := b.Box()
	if box != initial {
		t.Errorf("box = %+v, want the initial %+v", box, initial)
	}
}

func TestMaybeRefreshApplies(t *testing.T) {
	initial := octree.Box{
		Min: octree.Vec3{X: -1, Y: -1, Z: -1},
		Max: octree.Vec3{X: 1, Y: 1, Z: 1},
	}
	b := newBoundsTracker(initial, 0.25, time.Millisecond, quietLogger())
	b.last = time.Now().Add(-time.Hour)

	pos := []float32{
		1, 2, 3, 1,
		5, 6, 7, 1,
	}

	// First call starts the background scan; poll until it lands.
	deadline := time.Now().Add(2 * time.Second)
	want := octree.Box{
		Min: octree.Vec3{X: 0, Y: 1, Z: 2},
		Max: octree.Vec3{X: 6, Y: 7, Z: 8},
	}
	for {
		b.MaybeRefresh(pos)
		if box, _ := b.Box(); box == want {
			break
		}
		if time.Now().After(deadline) {
			box, _ := b.Box()
			t.Fatalf("refresh never applied, box = %+v", box)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMaybeRefreshFailureKeepsBox(t *testing.T) {
	initial := octree.Box{
		Min: octree.Vec3{X: -1, Y: -1, Z: -1},
		Max: octree.Vec3{X: 1, Y: 1, Z: 1},
	}
	b := newBoundsTracker(initial, 0.25, time.Millisecond, quietLogger())
	b.last = time.Now().Add(-time.Hour)

	nan := float32(math.NaN())
	pos := []float32{nan, nan, nan, 1}

	b.MaybeRefresh(pos)
	if !b.inflight {
		t.Fatal("expected a refresh to start")
	}
	b.interval = 0 // keep later polls from starting another scan

	// Wait for the scan to finish and its result to be polled.
	deadline := time.Now().Add(2 * time.Second)
	for b.inflight {
		if time.Now().After(deadline) {
			t.Fatal("refresh never completed")
		}
		time.Sleep(time.Millisecond)
		b.MaybeRefresh(pos)
	}

	box, _ := b.Box()
	if box != initial {
		t.Errorf("box = %+v, want the initial %+v retained after a failed scan", box, initial)
	}
}
