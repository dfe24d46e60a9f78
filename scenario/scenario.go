// Package scenario builds initial particle distributions for the
// simulator. Every builder returns flat position and velocity buffers
// with four float32 lanes per particle (x, y, z, mass and vx, vy, vz, 0)
// sized for gravity.New, and is deterministic for a given seed.
package scenario

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/oyin-bo/octograv/octree"
)

const (
	// uniformExtent is the half-side of the cold uniform box.
	uniformExtent = 10.0

	clusterRadius    = 8.0
	clusterNoiseFreq = 0.35
	clusterMaxTries  = 64
	// clusterVelocityFrac scales random velocities against the cluster's
	// characteristic speed sqrt(G*M/R); below 1 the cluster is sub-virial
	// and gently collapses.
	clusterVelocityFrac = 0.3

	diskCentralMass = 50.0
	diskTotalMass   = 5.0
	diskInnerRadius = 2.0
	diskOuterRadius = 10.0
	diskThickness   = 0.05 // vertical scatter as a fraction of radius

	binaryMass       = 1.0
	binarySeparation = 2.0

	escapePrimaryMass = 50.0
	escapeTestMass    = 1e-6
	escapeRadius      = 2.0
	// escapeKick is the launch speed as a multiple of escape velocity.
	escapeKick = 1.3
)

// Names lists the known scenario names accepted by Build.
func Names() []string {
	return []string{"binary", "cluster", "disk", "escape", "uniform"}
}

// Build constructs the named scenario. n is the requested particle count
// (ignored by the fixed two-body scenarios), g the gravitational constant
// used to derive orbital speeds, and seed drives all randomness.
func Build(name string, n int, g float64, seed int64) (pos, vel []float32, err error) {
	switch name {
	case "binary":
		pos, vel = Binary(g)
	case "cluster":
		pos, vel = Cluster(n, g, seed)
	case "disk":
		pos, vel = Disk(n, g, seed)
	case "escape":
		pos, vel = Escape(g)
	case "uniform":
		pos, vel = Uniform(n, seed)
	default:
		return nil, nil, fmt.Errorf("unknown scenario %q (known: %v)", name, Names())
	}
	return pos, vel, nil
}

// Uniform scatters n unit-mass particles uniformly through a cold box.
func Uniform(n int, seed int64) (pos, vel []float32) {
	rng := rand.New(rand.NewSource(seed))
	pos = make([]float32, n*octree.Stride)
	vel = make([]float32, n*octree.Stride)
	for i := 0; i < n; i++ {
		putLane(pos, i,
			float32(rng.Float64()*2-1)*uniformExtent,
			float32(rng.Float64()*2-1)*uniformExtent,
			float32(rng.Float64()*2-1)*uniformExtent,
			1.0)
	}
	return pos, vel
}

// Cluster samples a clumpy sphere: candidate points drawn uniformly from
// a ball are kept with probability proportional to the square of a smooth
// noise field, so particles pile up along the noise ridges. Particles get
// masses in [0.5, 1.5) and small random velocities so the cluster starts
// sub-virial.
func Cluster(n int, g float64, seed int64) (pos, vel []float32) {
	rng := rand.New(rand.NewSource(seed))
	noise := opensimplex.NewNormalized(seed)

	pos = make([]float32, n*octree.Stride)
	vel = make([]float32, n*octree.Stride)

	totalMass := 0.0
	for i := 0; i < n; i++ {
		var px, py, pz float64
		for try := 0; try < clusterMaxTries; try++ {
			px, py, pz = ballPoint(rng, clusterRadius)
			w := noise.Eval3(px*clusterNoiseFreq, py*clusterNoiseFreq, pz*clusterNoiseFreq)
			if rng.Float64() < w*w {
				break
			}
		}
		m := 0.5 + rng.Float64()
		totalMass += m
		putLane(pos, i, float32(px), float32(py), float32(pz), float32(m))
	}

	sigma := clusterVelocityFrac * math.Sqrt(g*totalMass/clusterRadius)
	for i := 0; i < n; i++ {
		putLane(vel, i,
			float32(rng.NormFloat64()*sigma),
			float32(rng.NormFloat64()*sigma),
			float32(rng.NormFloat64()*sigma),
			0)
	}
	return pos, vel
}

// Disk builds a thin rotating disk around a heavy central body. Disk
// particles are distributed uniformly by area between the inner and outer
// radius and launched on counterclockwise circular orbits against the
// mass enclosed at their radius.
func Disk(n int, g float64, seed int64) (pos, vel []float32) {
	if n < 2 {
		n = 2
	}
	rng := rand.New(rand.NewSource(seed))
	pos = make([]float32, n*octree.Stride)
	vel = make([]float32, n*octree.Stride)

	putLane(pos, 0, 0, 0, 0, diskCentralMass)
	putLane(vel, 0, 0, 0, 0, 0)

	m := diskTotalMass / float64(n-1)
	in2 := diskInnerRadius * diskInnerRadius
	out2 := diskOuterRadius * diskOuterRadius
	for i := 1; i < n; i++ {
		// Uniform in area: r^2 uniform between in^2 and out^2.
		r := math.Sqrt(in2 + rng.Float64()*(out2-in2))
		phi := rng.Float64() * 2 * math.Pi
		x := r * math.Cos(phi)
		y := r * math.Sin(phi)
		z := (rng.Float64()*2 - 1) * diskThickness * r

		enclosed := diskCentralMass + diskTotalMass*(r*r-in2)/(out2-in2)
		v := math.Sqrt(g * enclosed / r)

		putLane(pos, i, float32(x), float32(y), float32(z), float32(m))
		putLane(vel, i, float32(-v*math.Sin(phi)), float32(v*math.Cos(phi)), 0, 0)
	}
	return pos, vel
}

// Binary places two unit masses on a circular mutual orbit in the xy
// plane: separation 2, each body moving at half the relative circular
// speed sqrt(G*(m1+m2)/separation) in opposite directions.
func Binary(g float64) (pos, vel []float32) {
	a := float32(binarySeparation / 2)
	v := float32(math.Sqrt(g*2*binaryMass/binarySeparation) / 2)
	pos = []float32{
		a, 0, 0, binaryMass,
		-a, 0, 0, binaryMass,
	}
	vel = []float32{
		0, v, 0, 0,
		0, -v, 0, 0,
	}
	return pos, vel
}

// Escape pairs a heavy primary with a near-massless test particle
// launched radially outward at escapeKick times the escape velocity
// sqrt(2*G*M/r). The test particle must leave; the primary barely moves.
func Escape(g float64) (pos, vel []float32) {
	v := float32(escapeKick * math.Sqrt(2*g*escapePrimaryMass/escapeRadius))
	pos = []float32{
		0, 0, 0, escapePrimaryMass,
		escapeRadius, 0, 0, escapeTestMass,
	}
	vel = []float32{
		0, 0, 0, 0,
		v, 0, 0, 0,
	}
	return pos, vel
}

// BoundsFor computes an axis-aligned box around every valid particle,
// padded on each side by margin times the largest axis extent. Lanes with
// non-finite coordinates or non-positive mass are ignored. Returns an
// invalid box when no particle qualifies.
func BoundsFor(pos []float32, margin float32) octree.Box {
	minX := float32(math.Inf(1))
	minY := float32(math.Inf(1))
	minZ := float32(math.Inf(1))
	maxX := float32(math.Inf(-1))
	maxY := float32(math.Inf(-1))
	maxZ := float32(math.Inf(-1))

	found := false
	n := len(pos) / octree.Stride
	for i := 0; i < n; i++ {
		x := pos[i*octree.Stride+0]
		y := pos[i*octree.Stride+1]
		z := pos[i*octree.Stride+2]
		m := pos[i*octree.Stride+3]
		if m <= 0 || !finite(x) || !finite(y) || !finite(z) || !finite(m) {
			continue
		}
		found = true
		minX = min32(minX, x)
		minY = min32(minY, y)
		minZ = min32(minZ, z)
		maxX = max32(maxX, x)
		maxY = max32(maxY, y)
		maxZ = max32(maxZ, z)
	}
	if !found {
		return octree.Box{}
	}

	ext := max32(maxX-minX, max32(maxY-minY, maxZ-minZ))
	pad := margin * ext
	if pad <= 0 {
		pad = 1
	}
	return octree.Box{
		Min: octree.Vec3{X: minX - pad, Y: minY - pad, Z: minZ - pad},
		Max: octree.Vec3{X: maxX + pad, Y: maxY + pad, Z: maxZ + pad},
	}
}

// ballPoint returns a point uniformly distributed inside a ball.
func ballPoint(rng *rand.Rand, radius float64) (x, y, z float64) {
	// Gaussian direction, cube-root radius.
	dx := rng.NormFloat64()
	dy := rng.NormFloat64()
	dz := rng.NormFloat64()
	d := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if d == 0 {
		return 0, 0, 0
	}
	r := radius * math.Cbrt(rng.Float64())
	return dx / d * r, dy / d * r, dz / d * r
}

func putLane(buf []float32, i int, x, y, z, w float32) {
	o := i * octree.Stride
	buf[o+0] = x
	buf[o+1] = y
	buf[o+2] = z
	buf[o+3] = w
}

func finite(x float32) bool {
	return math.Float32bits(x)&0x7f800000 != 0x7f800000
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
