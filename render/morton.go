package render

import (
	"math/bits"

	"gonum.org/v1/gonum/spatial/r3"
)

// Morton is the locational code of an octree node. The root is 1 and every
// level appends a 3 bit octant to the right, bit 0 selecting +x, bit 1 +y and
// bit 2 +z. The leading set bit marks the depth of the code so nodes of all
// levels share a single key space.
type Morton uint64

const (
	rootCode Morton = 1
	// MaxOctreeDepth is the deepest level a Morton code can address.
	MaxOctreeDepth = 21
)

// Dilated lane masks of the coordinate bits in a code (leading bit aside).
const (
	laneX uint64 = 0x9249249249249249
	laneY uint64 = 0x2492492492492492
	laneZ uint64 = 0x4924924924924924
)

// Level returns the depth of the node, 0 for the root.
func (m Morton) Level() int { return (bits.Len64(uint64(m)) - 1) / 3 }

// Parent returns the code of the node containing m.
func (m Morton) Parent() Morton { return m >> 3 }

// Child returns the code of child octant of m.
func (m Morton) Child(octant uint8) Morton { return m<<3 | Morton(octant&7) }

// Octant returns the position of m within its parent.
func (m Morton) Octant() uint8 { return uint8(m & 7) }

// Coords returns the integer coordinates of m within the 2^Level lattice of its level.
func (m Morton) Coords() (x, y, z uint32) {
	l := m.Level()
	for i := 0; i < l; i++ {
		x |= uint32(m>>(3*i)&1) << i
		y |= uint32(m>>(3*i+1)&1) << i
		z |= uint32(m>>(3*i+2)&1) << i
	}
	return x, y, z
}

// Center returns the center of the node within the unit cube.
func (m Morton) Center() r3.Vec {
	x, y, z := m.Coords()
	s := 1 / float64(uint64(1)<<m.Level())
	return r3.Vec{
		X: (float64(x) + 0.5) * s,
		Y: (float64(y) + 0.5) * s,
		Z: (float64(z) + 0.5) * s,
	}
}

// mortonAdd adds b to a lane by lane. Carries propagate within each lane
// across the interleaved bits of the other two.
func mortonAdd(a, b Morton) Morton {
	x, y := uint64(a), uint64(b)
	return Morton((((x | ^laneZ) + (y & laneZ)) & laneZ) |
		(((x | ^laneY) + (y & laneY)) & laneY) |
		(((x | ^laneX) + (y & laneX)) & laneX))
}

// mortonSub subtracts b from a lane by lane.
func mortonSub(a, b Morton) Morton {
	x, y := uint64(a), uint64(b)
	return Morton((((x & laneZ) - (y & laneZ)) & laneZ) |
		(((x & laneY) - (y & laneY)) & laneY) |
		(((x & laneX) - (y & laneX)) & laneX))
}

// primalVertex returns the code of corner w of the node at the given level,
// expressed at MaxOctreeDepth so that corners shared by nodes of different
// levels have the same code. Corners on the boundary of the root cube
// return false.
func primalVertex(code Morton, level int, w uint8) (Morton, bool) {
	k := Morton(1) << (3 * level)
	vk := mortonAdd(code, Morton(w))
	if vk >= k<<1 {
		// Overflowed past the high boundary.
		return 0, false
	}
	dk := uint64(mortonSub(vk, k))
	if dk&laneX == 0 || dk&laneY == 0 || dk&laneZ == 0 {
		// On the low boundary.
		return 0, false
	}
	return vk << (3 * (MaxOctreeDepth - level)), true
}

// dualNode returns the code of the level node touching primal vertex p in
// direction w. The node may not exist, in which case its nearest existing
// ancestor is the dual cell corner.
func dualNode(p Morton, level int, w uint8) Morton {
	return mortonSub(p>>(3*(MaxOctreeDepth-level)), Morton(w))
}
