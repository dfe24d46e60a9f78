// Package octree maintains the dense multi-resolution mass pyramid that
// force traversal consumes. The finest level is a cubic voxel grid over
// the simulation bounds; each coarser level halves the resolution until a
// single root voxel covers the whole box.
package octree

import "math"

// Vec3 is a 3-component float32 vector.
type Vec3 struct {
	X, Y, Z float32
}

// Box is an axis-aligned bounding box in world space.
type Box struct {
	Min, Max Vec3
}

// Extent returns the per-axis size of the box.
func (b Box) Extent() Vec3 {
	return Vec3{b.Max.X - b.Min.X, b.Max.Y - b.Min.Y, b.Max.Z - b.Min.Z}
}

// Center returns the midpoint of the box.
func (b Box) Center() Vec3 {
	return Vec3{
		(b.Min.X + b.Max.X) * 0.5,
		(b.Min.Y + b.Max.Y) * 0.5,
		(b.Min.Z + b.Max.Z) * 0.5,
	}
}

// Valid reports whether the box is finite with strictly positive extent
// on every axis.
func (b Box) Valid() bool {
	if !isFinite(b.Min.X) || !isFinite(b.Min.Y) || !isFinite(b.Min.Z) {
		return false
	}
	if !isFinite(b.Max.X) || !isFinite(b.Max.Y) || !isFinite(b.Max.Z) {
		return false
	}
	return b.Max.X > b.Min.X && b.Max.Y > b.Min.Y && b.Max.Z > b.Min.Z
}

// Grid holds the dimensions of one cubic voxel grid and converts between
// linear indices and integer coordinates. Voxels are laid out x-fastest:
// index = x + y*Size + z*Area.
type Grid struct {
	Size   int // voxels per axis
	Area   int // Size * Size
	Volume int // Size * Size * Size
}

// NewGrid creates a cubic grid with the given side length.
func NewGrid(size int) Grid {
	return Grid{Size: size, Area: size * size, Volume: size * size * size}
}

// Idx converts voxel coordinates to a linear index.
func (g Grid) Idx(x, y, z int) int {
	return x + y*g.Size + z*g.Area
}

// Coords converts a linear index back to voxel coordinates.
func (g Grid) Coords(idx int) (x, y, z int) {
	x = idx % g.Size
	idx /= g.Size
	y = idx % g.Size
	z = idx / g.Size
	return x, y, z
}

// Contains reports whether the coordinates lie inside the grid.
func (g Grid) Contains(x, y, z int) bool {
	return x >= 0 && x < g.Size && y >= 0 && y < g.Size && z >= 0 && z < g.Size
}

// isFinite reports whether x is neither NaN nor an infinity.
func isFinite(x float32) bool {
	return math.Float32bits(x)&0x7f800000 != 0x7f800000
}
