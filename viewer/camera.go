package viewer

import (
	"math"

	"github.com/oyin-bo/octograv/octree"
)

// Default orbit parameters.
const (
	defaultYaw      = 0.65
	defaultPitch    = 0.35
	defaultDistance = 30
	defaultFovY     = 60 * math.Pi / 180
	defaultNear     = 0.05

	// maxPitch stops just short of the poles so the view basis stays
	// well conditioned.
	maxPitch = 1.55
)

// Camera orbits a target point and projects world positions onto the
// viewport with a perspective transform. Yaw rotates around the world
// Y axis, positive pitch tilts the eye above the target, and the eye
// sits Distance away along the view direction.
type Camera struct {
	// Target is the orbit center in world coordinates
	TargetX, TargetY, TargetZ float32

	// Orbit angles in radians
	Yaw, Pitch float32

	// Distance from the eye to the target
	Distance float32

	// FovY is the vertical field of view in radians
	FovY float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Near is the minimum projection depth; points at or closer than
	// this are reported as not visible.
	Near float32

	// Distance constraints
	MinDistance, MaxDistance float32
}

// New creates a camera on the default orbit around the origin.
func New(viewportW, viewportH float32) *Camera {
	return &Camera{
		Yaw:         defaultYaw,
		Pitch:       defaultPitch,
		Distance:    defaultDistance,
		FovY:        defaultFovY,
		ViewportW:   viewportW,
		ViewportH:   viewportH,
		Near:        defaultNear,
		MinDistance: 0.05,
		MaxDistance: 1e5,
	}
}

// basis returns the right, up and forward unit vectors of the view.
// Forward points from the eye toward the target.
func (c *Camera) basis() (right, up, forward vec3) {
	sy, cy := sincosf(c.Yaw)
	sp, cp := sincosf(c.Pitch)
	forward = vec3{cp * sy, -sp, cp * cy}
	right = norm3(cross3(vec3{0, 1, 0}, forward))
	up = cross3(forward, right)
	return right, up, forward
}

// Eye returns the camera position in world coordinates.
func (c *Camera) Eye() (x, y, z float32) {
	_, _, f := c.basis()
	return c.TargetX - f[0]*c.Distance,
		c.TargetY - f[1]*c.Distance,
		c.TargetZ - f[2]*c.Distance
}

// WorldToScreen projects a world position onto the viewport. It returns
// the screen coordinates, the view depth, and whether the point lies in
// front of the near plane.
func (c *Camera) WorldToScreen(wx, wy, wz float32) (sx, sy, depth float32, ok bool) {
	right, up, forward := c.basis()
	ex, ey, ez := c.Eye()
	rel := vec3{wx - ex, wy - ey, wz - ez}

	depth = dot3(rel, forward)
	if depth <= c.Near {
		return 0, 0, depth, false
	}

	// Pixels per world unit at this depth
	scale := c.ViewportH / (2 * tanf(c.FovY/2) * depth)
	sx = c.ViewportW/2 + dot3(rel, right)*scale
	sy = c.ViewportH/2 - dot3(rel, up)*scale
	return sx, sy, depth, true
}

// Orbit rotates the camera around the target. Pitch is clamped short
// of the poles.
func (c *Camera) Orbit(dYaw, dPitch float32) {
	c.Yaw += dYaw
	c.Pitch = clampf(c.Pitch+dPitch, -maxPitch, maxPitch)
}

// Zoom scales the orbit distance, clamped to the distance limits.
func (c *Camera) Zoom(factor float32) {
	c.Distance = clampf(c.Distance*factor, c.MinDistance, c.MaxDistance)
}

// Pan shifts the target in the view plane by a screen-pixel delta, so
// the scene follows the drag.
func (c *Camera) Pan(dx, dy float32) {
	right, up, _ := c.basis()

	// World units per pixel at the target depth
	wpp := 2 * c.Distance * tanf(c.FovY/2) / c.ViewportH
	c.TargetX -= (right[0]*dx - up[0]*dy) * wpp
	c.TargetY -= (right[1]*dx - up[1]*dy) * wpp
	c.TargetZ -= (right[2]*dx - up[2]*dy) * wpp
}

// Resize updates the viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float32) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Reset returns the camera to the default orbit around the origin.
func (c *Camera) Reset() {
	c.TargetX, c.TargetY, c.TargetZ = 0, 0, 0
	c.Yaw = defaultYaw
	c.Pitch = defaultPitch
	c.Distance = defaultDistance
}

// AutoFrame centers the orbit on the box and backs the eye off far
// enough that the box's bounding sphere fits inside the viewport.
func (c *Camera) AutoFrame(b octree.Box) {
	if !b.Valid() {
		return
	}

	center := b.Center()
	c.TargetX = center.X
	c.TargetY = center.Y
	c.TargetZ = center.Z

	ext := b.Extent()
	r := sqrtf(ext.X*ext.X+ext.Y*ext.Y+ext.Z*ext.Z) / 2
	if r < 1e-6 {
		r = 1
	}

	// The narrower of the two view angles bounds the fit.
	halfTan := tanf(c.FovY / 2)
	if c.ViewportW < c.ViewportH {
		halfTan *= c.ViewportW / c.ViewportH
	}
	half := atanf(halfTan)
	c.Distance = clampf(1.1*r/sinf(half), c.MinDistance, c.MaxDistance)
}

// vec3 is a small value type for the camera basis and trail points.
type vec3 [3]float32

func cross3(a, b vec3) vec3 {
	return vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot3(a, b vec3) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func norm3(v vec3) vec3 {
	m := sqrtf(dot3(v, v))
	if m == 0 {
		return v
	}
	return vec3{v[0] / m, v[1] / m, v[2] / m}
}

func sincosf(x float32) (s, c float32) {
	sd, cd := math.Sincos(float64(x))
	return float32(sd), float32(cd)
}

func sqrtf(x float32) float32 { return float32(math.Sqrt(float64(x))) }

func tanf(x float32) float32 { return float32(math.Tan(float64(x))) }

func atanf(x float32) float32 { return float32(math.Atan(float64(x))) }

func sinf(x float32) float32 { return float32(math.Sin(float64(x))) }

// clampf restricts a value to a range.
func clampf(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
