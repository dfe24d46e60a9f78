package gravity

import (
	"github.com/oyin-bo/octograv/compute"
	"github.com/oyin-bo/octograv/octree"
)

// Force traversal. Each particle independently walks the pyramid from the
// root toward the finest level. Cells that pass the opening test
// contribute as single multipole sources; everything closer is summed
// directly from the finest-level voxels around the particle. The output
// is an acceleration field, with the gravitational constant applied once
// per particle at the end.

// traverser bundles the pyramid with the force parameters so the workers
// share one immutable view per pass.
type traverser struct {
	pyr          *octree.Pyramid
	theta        float32
	eps2         float32
	g            float32
	monopoleOnly bool
}

// forces fills acc with per-particle gravitational accelerations. Lanes
// of particles with a non-finite position are zeroed; the integrator
// passes those particles through unchanged.
func (t *traverser) forces(pos, acc []float32, pool *compute.Pool) {
	n := len(pos) / laneStride

	pool.Run(n, func(start, end int) {
		for i := start; i < end; i++ {
			o := i * laneStride
			px, py, pz := pos[o+0], pos[o+1], pos[o+2]

			if !isFinite(px) || !isFinite(py) || !isFinite(pz) {
				acc[o+0], acc[o+1], acc[o+2], acc[o+3] = 0, 0, 0, 0
				continue
			}

			ax, ay, az := t.forceAt(px, py, pz)
			acc[o+0] = ax * t.g
			acc[o+1] = ay * t.g
			acc[o+2] = az * t.g
			acc[o+3] = 0
		}
	})
}

// forceAt accumulates the unscaled acceleration at a point.
func (t *traverser) forceAt(px, py, pz float32) (ax, ay, az float32) {
	levels := t.pyr.Levels

	// Far field, coarsest level first. The root is a single cell; every
	// other level contributes from the 3x3x3 block around the particle's
	// voxel, minus the voxel itself. A cell that fails the opening test
	// is resolved by its children one level down.
	for k := len(levels) - 1; k >= 1; k-- {
		l := &levels[k]

		if l.Size == 1 {
			fx, fy, fz := t.farCell(l, 0, 0, 0, px, py, pz)
			ax += fx
			ay += fy
			az += fz
			continue
		}

		vx, vy, vz := l.VoxelOf(px, py, pz)
		for nz := vz - 1; nz <= vz+1; nz++ {
			if nz < 0 || nz >= l.Size {
				continue
			}
			for ny := vy - 1; ny <= vy+1; ny++ {
				if ny < 0 || ny >= l.Size {
					continue
				}
				for nx := vx - 1; nx <= vx+1; nx++ {
					if nx < 0 || nx >= l.Size {
						continue
					}
					if nx == vx && ny == vy && nz == vz {
						continue
					}
					fx, fy, fz := t.farCell(l, nx, ny, nz, px, py, pz)
					ax += fx
					ay += fy
					az += fz
				}
			}
		}
	}

	// Near field: direct softened monopole sums over the 5x5x5 block at
	// the finest level, pruned by Manhattan distance to an approximate
	// sphere. No opening test; these voxels are always close.
	l := &levels[0]
	vx, vy, vz := l.VoxelOf(px, py, pz)

	for dz := -2; dz <= 2; dz++ {
		nz := vz + dz
		if nz < 0 || nz >= l.Size {
			continue
		}
		adz := dz
		if adz < 0 {
			adz = -adz
		}
		for dy := -2; dy <= 2; dy++ {
			ny := vy + dy
			if ny < 0 || ny >= l.Size {
				continue
			}
			ady := dy
			if ady < 0 {
				ady = -ady
			}
			for dx := -2; dx <= 2; dx++ {
				adx := dx
				if adx < 0 {
					adx = -adx
				}
				if adx+ady+adz > 4 {
					continue
				}
				nx := vx + dx
				if nx < 0 || nx >= l.Size {
					continue
				}

				o := l.Idx(nx, ny, nz) * octree.Stride
				m0 := l.A0[o+3]
				if m0 <= 0 {
					continue
				}

				im := 1 / m0
				rx := l.A0[o+0]*im - px
				ry := l.A0[o+1]*im - py
				rz := l.A0[o+2]*im - pz

				d2 := rx*rx + ry*ry + rz*rz
				inv := invSqrt(d2 + t.eps2)
				s := m0 * inv * inv * inv

				ax += rx * s
				ay += ry * s
				az += rz * s
			}
		}
	}

	return ax, ay, az
}

// farCell applies the opening test to one cell and returns its multipole
// contribution, or zeros when the cell is empty or too close.
func (t *traverser) farCell(l *octree.Level, x, y, z int, px, py, pz float32) (fx, fy, fz float32) {
	o := l.Idx(x, y, z) * octree.Stride
	m0 := l.A0[o+3]
	if m0 <= 0 {
		return 0, 0, 0
	}

	im := 1 / m0
	cx := l.A0[o+0] * im
	cy := l.A0[o+1] * im
	cz := l.A0[o+2] * im

	rx := cx - px
	ry := cy - py
	rz := cz - pz
	d2 := rx*rx + ry*ry + rz*rz
	d := sqrtf(d2)

	// Opening test: accept when the particle is beyond cellSize/theta
	// plus the offset of the mass center from the cell's geometric
	// center. The offset term tightens the classical test for cells with
	// lopsided mass.
	gx, gy, gz := l.CellCenter(x, y, z)
	ox := cx - gx
	oy := cy - gy
	oz := cz - gz
	delta := sqrtf(ox*ox + oy*oy + oz*oz)

	if d <= l.CellSize/t.theta+delta {
		return 0, 0, 0
	}

	inv := invSqrt(d2 + t.eps2)
	inv3 := inv * inv * inv
	s := m0 * inv3
	fx = rx * s
	fy = ry * s
	fz = rz * s

	if t.monopoleOnly {
		return fx, fy, fz
	}

	// Quadrupole correction. Central second moments follow from the raw
	// sums by removing the monopole part; Q is the trace-free tensor.
	sxx := l.A1[o+0] - m0*cx*cx
	syy := l.A1[o+1] - m0*cy*cy
	szz := l.A1[o+2] - m0*cz*cz
	sxy := l.A1[o+3] - m0*cx*cy
	sxz := l.A2[o+0] - m0*cx*cz
	syz := l.A2[o+1] - m0*cy*cz

	tr := sxx + syy + szz
	qxx := 3*sxx - tr
	qyy := 3*syy - tr
	qzz := 3*szz - tr
	qxy := 3 * sxy
	qxz := 3 * sxz
	qyz := 3 * syz

	qrx := qxx*rx + qxy*ry + qxz*rz
	qry := qxy*rx + qyy*ry + qyz*rz
	qrz := qxz*rx + qyz*ry + qzz*rz
	rqr := rx*qrx + ry*qry + rz*qrz

	inv5 := inv3 * inv * inv
	inv7 := inv5 * inv * inv

	// With r pointing from the particle to the mass center the traceless
	// correction enters as -Qr/d^5 + 2.5 (r.Qr) r/d^7.
	fx += 2.5*rqr*rx*inv7 - qrx*inv5
	fy += 2.5*rqr*ry*inv7 - qry*inv5
	fz += 2.5*rqr*rz*inv7 - qrz*inv5

	return fx, fy, fz
}
