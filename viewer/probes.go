package viewer

import (
	"fmt"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/oyin-bo/octograv/octree"
)

// Probe marks a particle tracked by the viewer.
type Probe struct {
	Index int // particle index in the simulation buffers
	Label string
}

// Trail is a ring buffer of recent world positions of a probe.
type Trail struct {
	Points []vec3
	Head   int // next write slot
	Count  int
}

// Push appends a position, evicting the oldest once the ring is full.
func (t *Trail) Push(p vec3) {
	t.Points[t.Head] = p
	t.Head = (t.Head + 1) % len(t.Points)
	if t.Count < len(t.Points) {
		t.Count++
	}
}

// Walk visits stored positions from oldest to newest.
func (t *Trail) Walk(fn func(i int, p vec3)) {
	start := t.Head - t.Count
	if start < 0 {
		start += len(t.Points)
	}
	for i := 0; i < t.Count; i++ {
		fn(i, t.Points[(start+i)%len(t.Points)])
	}
}

// ProbeSet owns the probe entities in a small viewer-side ECS world.
type ProbeSet struct {
	world    *ecs.World
	mapper   *ecs.Map2[Probe, Trail]
	entities []ecs.Entity
	length   int
}

// NewProbeSet picks count distinct particle indices out of n and
// creates a probe entity with a trail of the given length for each.
// The pick is deterministic for a given seed.
func NewProbeSet(n, count, length int, seed int64) *ProbeSet {
	world := ecs.NewWorld()
	ps := &ProbeSet{
		world:  world,
		mapper: ecs.NewMap2[Probe, Trail](world),
		length: length,
	}
	if ps.length < 2 {
		ps.length = 2
	}
	ps.spawn(n, count, seed)
	return ps
}

// Record appends each probe's current world position to its trail.
// pos is the packed particle buffer with (x, y, z, mass) lanes.
func (ps *ProbeSet) Record(pos []float32) {
	for _, e := range ps.entities {
		probe, trail := ps.mapper.Get(e)
		o := probe.Index * octree.Stride
		trail.Push(vec3{pos[o], pos[o+1], pos[o+2]})
	}
}

// Each visits every probe and its trail.
func (ps *ProbeSet) Each(fn func(p Probe, t *Trail)) {
	for _, e := range ps.entities {
		probe, trail := ps.mapper.Get(e)
		fn(*probe, trail)
	}
}

// Len returns the number of probes.
func (ps *ProbeSet) Len() int {
	return len(ps.entities)
}

// Retarget replaces all probes with a fresh pick for a particle buffer
// of size n, clearing every trail.
func (ps *ProbeSet) Retarget(n, count int, seed int64) {
	for _, e := range ps.entities {
		ps.mapper.Remove(e)
	}
	ps.entities = ps.entities[:0]
	ps.spawn(n, count, seed)
}

func (ps *ProbeSet) spawn(n, count int, seed int64) {
	if count > n {
		count = n
	}
	if count <= 0 {
		return
	}

	rng := rand.New(rand.NewSource(seed))
	for _, idx := range rng.Perm(n)[:count] {
		probe := Probe{Index: idx, Label: fmt.Sprintf("p%d", idx)}
		trail := Trail{Points: make([]vec3, ps.length)}
		ps.entities = append(ps.entities, ps.mapper.NewEntity(&probe, &trail))
	}
}
