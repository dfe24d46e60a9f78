package gravity

import "math"

// DirectAccel computes the softened acceleration on particle idx by
// summing over every other particle in float64. This is the O(N^2)
// reference the tree traversal is measured against.
func DirectAccel(pos []float32, idx int, g, eps float64) (ax, ay, az float64) {
	o := idx * laneStride
	px := float64(pos[o+0])
	py := float64(pos[o+1])
	pz := float64(pos[o+2])
	e2 := eps * eps

	for i := 0; i < len(pos)/laneStride; i++ {
		if i == idx {
			continue
		}
		q := i * laneStride
		rx := float64(pos[q+0]) - px
		ry := float64(pos[q+1]) - py
		rz := float64(pos[q+2]) - pz
		d2 := rx*rx + ry*ry + rz*rz + e2
		s := g * float64(pos[q+3]) / (d2 * math.Sqrt(d2))
		ax += rx * s
		ay += ry * s
		az += rz * s
	}
	return ax, ay, az
}
