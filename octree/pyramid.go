package octree

import (
	"fmt"

	"github.com/oyin-bo/octograv/compute"
)

// Pyramid is the full stack of moment levels, finest first. Levels[0] is
// the deposit grid; the last level is a single root voxel covering the
// whole bounds.
type Pyramid struct {
	Levels []Level
}

// NewPyramid builds a pyramid whose finest level is gridSize^3. gridSize
// must be a power of two with gridSize == 1<<(levels-1), so that halving
// the resolution levels-1 times reaches a single voxel.
func NewPyramid(gridSize, levels int) (*Pyramid, error) {
	if levels < 1 {
		return nil, fmt.Errorf("octree: level count must be positive, got %d", levels)
	}
	if gridSize < 1 || gridSize&(gridSize-1) != 0 {
		return nil, fmt.Errorf("octree: grid size must be a power of two, got %d", gridSize)
	}
	if 1<<(levels-1) != gridSize {
		return nil, fmt.Errorf("octree: %d levels do not reduce a %d^3 grid to a single root voxel", levels, gridSize)
	}

	p := &Pyramid{Levels: make([]Level, levels)}
	size := gridSize
	for k := range p.Levels {
		p.Levels[k] = newLevel(size)
		size >>= 1
	}
	return p, nil
}

// Finest returns the deposit level.
func (p *Pyramid) Finest() *Level { return &p.Levels[0] }

// Root returns the coarsest level, a single voxel.
func (p *Pyramid) Root() *Level { return &p.Levels[len(p.Levels)-1] }

// SetBounds repositions every level over the box. The moment buffers are
// untouched; callers clear and redeposit after moving the bounds.
func (p *Pyramid) SetBounds(b Box) {
	for k := range p.Levels {
		p.Levels[k].setBounds(b)
	}
}

// Clear zeroes the moment buffers of every level.
func (p *Pyramid) Clear(pool *compute.Pool) {
	for k := range p.Levels {
		l := &p.Levels[k]
		zeroFloats(l.A0, pool)
		zeroFloats(l.A1, pool)
		zeroFloats(l.A2, pool)
	}
}

func zeroFloats(dst []float32, pool *compute.Pool) {
	pool.Run(len(dst), func(start, end int) {
		s := dst[start:end]
		for i := range s {
			s[i] = 0
		}
	})
}

// Deposit accumulates particle moments into the finest level. pos holds
// 4-float particle lanes (x, y, z, mass); vox is caller-owned scratch
// with one entry per particle, overwritten with the particle's voxel
// index, or -1 for particles that deposit nothing (non-positive mass or a
// non-finite coordinate).
//
// Two phases keep the result independent of worker count: the first
// assigns voxel indices in parallel over particles, the second sums in
// parallel over disjoint voxel ranges, each range owner scanning the
// particle list in index order.
func (p *Pyramid) Deposit(pos []float32, vox []int32, pool *compute.Pool) {
	l := p.Finest()
	n := len(vox)

	pool.Run(n, func(start, end int) {
		for i := start; i < end; i++ {
			px := pos[i*Stride+0]
			py := pos[i*Stride+1]
			pz := pos[i*Stride+2]
			m := pos[i*Stride+3]

			if m <= 0 || !isFinite(px) || !isFinite(py) || !isFinite(pz) || !isFinite(m) {
				vox[i] = -1
				continue
			}

			x, y, z := l.VoxelOf(px, py, pz)
			vox[i] = int32(l.Idx(x, y, z))
		}
	})

	pool.Run(l.Volume, func(vStart, vEnd int) {
		lo, hi := int32(vStart), int32(vEnd)
		for i := 0; i < n; i++ {
			v := vox[i]
			if v < lo || v >= hi {
				continue
			}

			px := pos[i*Stride+0]
			py := pos[i*Stride+1]
			pz := pos[i*Stride+2]
			m := pos[i*Stride+3]

			o := int(v) * Stride
			l.A0[o+0] += m * px
			l.A0[o+1] += m * py
			l.A0[o+2] += m * pz
			l.A0[o+3] += m
			l.A1[o+0] += m * px * px
			l.A1[o+1] += m * py * py
			l.A1[o+2] += m * pz * pz
			l.A1[o+3] += m * px * py
			l.A2[o+0] += m * px * pz
			l.A2[o+1] += m * py * pz
		}
	})
}

// Reduce rebuilds every coarser level from the one below it, finest pair
// first. Each parent voxel is assigned the sum of its eight children,
// taken in a fixed order so results do not depend on worker count.
func (p *Pyramid) Reduce(pool *compute.Pool) {
	for k := 1; k < len(p.Levels); k++ {
		src := &p.Levels[k-1]
		dst := &p.Levels[k]

		pool.Run(dst.Volume, func(start, end int) {
			for v := start; v < end; v++ {
				x, y, z := dst.Coords(v)

				var a0, a1, a2 [Stride]float32
				for dz := 0; dz < 2; dz++ {
					for dy := 0; dy < 2; dy++ {
						for dx := 0; dx < 2; dx++ {
							c := src.Idx(x*2+dx, y*2+dy, z*2+dz) * Stride
							for j := 0; j < Stride; j++ {
								a0[j] += src.A0[c+j]
								a1[j] += src.A1[c+j]
								a2[j] += src.A2[c+j]
							}
						}
					}
				}

				o := v * Stride
				for j := 0; j < Stride; j++ {
					dst.A0[o+j] = a0[j]
					dst.A1[o+j] = a1[j]
					dst.A2[o+j] = a2[j]
				}
			}
		})
	}
}
