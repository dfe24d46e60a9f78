package octree

// Moment buffer layout. Every voxel owns one 4-float lane in each of the
// three buffers:
//
//	A0 = (sum m*x,   sum m*y,   sum m*z,   sum m)
//	A1 = (sum m*x*x, sum m*y*y, sum m*z*z, sum m*x*y)
//	A2 = (sum m*x*z, sum m*y*z, 0,         0)
//
// A voxel with A0[3] == 0 is empty. Parent voxels hold the exact sums of
// their eight children, so the same moments serve every level.

// Stride is the number of float32 lanes per voxel in each moment buffer.
const Stride = 4

// Level is one resolution of the pyramid: a cubic grid of voxels with
// their accumulated mass moments, plus the world-space placement of the
// grid for the current bounds.
type Level struct {
	Grid

	A0 []float32
	A1 []float32
	A2 []float32

	// World-space geometry, recomputed whenever bounds change.
	Origin   Vec3    // corner of voxel (0, 0, 0)
	CellExt  Vec3    // voxel edge length per axis
	CellSize float32 // largest voxel edge, used by the opening test

	invX, invY, invZ float32
}

func newLevel(size int) Level {
	g := NewGrid(size)
	return Level{
		Grid: g,
		A0:   make([]float32, g.Volume*Stride),
		A1:   make([]float32, g.Volume*Stride),
		A2:   make([]float32, g.Volume*Stride),
	}
}

// setBounds positions the grid over the box and recomputes voxel geometry.
func (l *Level) setBounds(b Box) {
	ext := b.Extent()
	n := float32(l.Size)

	l.Origin = b.Min
	l.CellExt = Vec3{ext.X / n, ext.Y / n, ext.Z / n}

	l.CellSize = l.CellExt.X
	if l.CellExt.Y > l.CellSize {
		l.CellSize = l.CellExt.Y
	}
	if l.CellExt.Z > l.CellSize {
		l.CellSize = l.CellExt.Z
	}

	l.invX = 1 / l.CellExt.X
	l.invY = 1 / l.CellExt.Y
	l.invZ = 1 / l.CellExt.Z
}

// VoxelOf maps a world position to voxel coordinates, clamped to the
// grid. Positions outside the bounds land in the nearest boundary voxel.
func (l *Level) VoxelOf(px, py, pz float32) (x, y, z int) {
	x = clampIdx(int((px-l.Origin.X)*l.invX), l.Size)
	y = clampIdx(int((py-l.Origin.Y)*l.invY), l.Size)
	z = clampIdx(int((pz-l.Origin.Z)*l.invZ), l.Size)
	return x, y, z
}

// CellCenter returns the world-space geometric center of voxel (x, y, z).
func (l *Level) CellCenter(x, y, z int) (cx, cy, cz float32) {
	cx = l.Origin.X + (float32(x)+0.5)*l.CellExt.X
	cy = l.Origin.Y + (float32(y)+0.5)*l.CellExt.Y
	cz = l.Origin.Z + (float32(z)+0.5)*l.CellExt.Z
	return cx, cy, cz
}

func clampIdx(v, size int) int {
	if v < 0 {
		return 0
	}
	if v >= size {
		return size - 1
	}
	return v
}
