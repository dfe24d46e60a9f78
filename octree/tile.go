package octree

import "fmt"

// TileLayout maps the voxels of a cubic grid onto a 2D atlas of Z-slices,
// slicesPerRow slices across. The default 64^3 grid with 8 slices per row
// lands on a 512x512 image. Kept for flat exports and level debugging.
type TileLayout struct {
	GridSize     int
	SlicesPerRow int
	Width        int
	Height       int
}

// NewTileLayout creates a layout for the given grid size. The atlas grows
// by whole rows, so a slice count that does not divide evenly leaves the
// last row partially used.
func NewTileLayout(gridSize, slicesPerRow int) (TileLayout, error) {
	if gridSize < 1 {
		return TileLayout{}, fmt.Errorf("octree: tile grid size must be positive, got %d", gridSize)
	}
	if slicesPerRow < 1 {
		return TileLayout{}, fmt.Errorf("octree: slices per row must be positive, got %d", slicesPerRow)
	}

	rows := (gridSize + slicesPerRow - 1) / slicesPerRow
	return TileLayout{
		GridSize:     gridSize,
		SlicesPerRow: slicesPerRow,
		Width:        gridSize * slicesPerRow,
		Height:       gridSize * rows,
	}, nil
}

// TexelOf returns the atlas pixel that holds voxel (x, y, z).
func (t TileLayout) TexelOf(x, y, z int) (u, v int) {
	sx := z % t.SlicesPerRow
	sy := z / t.SlicesPerRow
	return sx*t.GridSize + x, sy*t.GridSize + y
}

// VoxelAt is the inverse of TexelOf.
func (t TileLayout) VoxelAt(u, v int) (x, y, z int) {
	x = u % t.GridSize
	y = v % t.GridSize
	sx := u / t.GridSize
	sy := v / t.GridSize
	return x, y, sx + sy*t.SlicesPerRow
}
