package gravity

import (
	"log/slog"
	"time"

	"github.com/oyin-bo/octograv/octree"
)

// boundsTracker owns the world box the pyramid is built over. Refreshes
// run on a background goroutine against a snapshot of the positions, so a
// step never waits on the scan; results are polled at the start of the
// next step. A refresh that finds no finite particle logs a warning and
// keeps the previous box.
type boundsTracker struct {
	box       octree.Box
	updatedAt time.Time

	margin   float32
	interval time.Duration
	last     time.Time // when the last refresh was started

	pending  chan octree.Box
	scratch  []float32
	inflight bool

	log *slog.Logger
}

func newBoundsTracker(initial octree.Box, margin float32, interval time.Duration, log *slog.Logger) *boundsTracker {
	return &boundsTracker{
		box:       initial,
		updatedAt: time.Now(),
		margin:    margin,
		interval:  interval,
		last:      time.Now(),
		pending:   make(chan octree.Box, 1),
		log:       log,
	}
}

// Box returns the current box and the time it was last recomputed.
func (b *boundsTracker) Box() (octree.Box, time.Time) {
	return b.box, b.updatedAt
}

// MaybeRefresh applies a finished background refresh if one is ready,
// then starts a new one when the refresh interval has elapsed. Never
// blocks. An interval of zero or less disables refreshes entirely.
func (b *boundsTracker) MaybeRefresh(pos []float32) {
	if b.inflight {
		select {
		case box := <-b.pending:
			b.inflight = false
			if box.Valid() {
				b.box = box
				b.updatedAt = time.Now()
			} else {
				b.log.Warn("bounds refresh found no finite particles, keeping previous box")
			}
		default:
			return // still computing
		}
	}

	if b.interval <= 0 || time.Since(b.last) < b.interval {
		return
	}
	b.last = time.Now()
	b.inflight = true

	// Snapshot the positions: the caller's buffer is rewritten by later
	// steps while the scan runs.
	if cap(b.scratch) < len(pos) {
		b.scratch = make([]float32, len(pos))
	}
	b.scratch = b.scratch[:len(pos)]
	copy(b.scratch, pos)

	go func(snap []float32, margin float32, out chan<- octree.Box) {
		box, ok := computeBounds(snap, margin)
		if !ok {
			box = octree.Box{} // invalid, signals failure
		}
		out <- box
	}(b.scratch, b.margin, b.pending)
}

// ForceRefresh recomputes the box synchronously. Used at construction and
// by callers that moved every particle at once.
func (b *boundsTracker) ForceRefresh(pos []float32) bool {
	box, ok := computeBounds(pos, b.margin)
	if !ok {
		b.log.Warn("bounds refresh found no finite particles, keeping previous box")
		return false
	}
	b.box = box
	b.updatedAt = time.Now()
	b.last = time.Now()
	return true
}

// computeBounds scans particle lanes for the axis-aligned box around all
// finite positions, padded on every axis by margin times the largest
// extent. Reports false when no particle has a fully finite position.
func computeBounds(pos []float32, margin float32) (octree.Box, bool) {
	var min, max octree.Vec3
	found := false

	for i := 0; i+3 < len(pos); i += laneStride {
		x, y, z := pos[i], pos[i+1], pos[i+2]
		if !isFinite(x) || !isFinite(y) || !isFinite(z) {
			continue
		}
		if !found {
			min = octree.Vec3{X: x, Y: y, Z: z}
			max = min
			found = true
			continue
		}
		if x < min.X {
			min.X = x
		}
		if y < min.Y {
			min.Y = y
		}
		if z < min.Z {
			min.Z = z
		}
		if x > max.X {
			max.X = x
		}
		if y > max.Y {
			max.Y = y
		}
		if z > max.Z {
			max.Z = z
		}
	}
	if !found {
		return octree.Box{}, false
	}

	ext := octree.Box{Min: min, Max: max}.Extent()
	largest := ext.X
	if ext.Y > largest {
		largest = ext.Y
	}
	if ext.Z > largest {
		largest = ext.Z
	}

	// Padding every axis by a share of the largest extent keeps thin
	// distributions (disks, filaments) from collapsing a voxel axis to
	// zero width. A single point still needs some box to live in.
	pad := margin * largest
	if pad <= 0 {
		pad = 1
	}

	return octree.Box{
		Min: octree.Vec3{X: min.X - pad, Y: min.Y - pad, Z: min.Z - pad},
		Max: octree.Vec3{X: max.X + pad, Y: max.Y + pad, Z: max.Z + pad},
	}, true
}
