package render

import (
	"fmt"
	"math"

	"github.com/soypat/isosurface"
	"github.com/soypat/isosurface/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// edgeKey identifies a cube edge independently of the cell that visits it.
// Dense grids store the packed minimum lattice point of the edge in a and
// its axis in b. Octree extraction stores the ordered pair of node codes
// joined by the dual edge.
type edgeKey struct {
	a, b uint64
}

const latticeBits = 21

// maxLattice is the exclusive upper bound of a packed lattice coordinate.
const maxLattice = 1 << latticeBits

func packLattice(i, j, k int) uint64 {
	return uint64(i) | uint64(j)<<latticeBits | uint64(k)<<(2*latticeBits)
}

func unpackLattice(p uint64) (i, j, k int) {
	const mask = maxLattice - 1
	return int(p & mask), int(p >> latticeBits & mask), int(p >> (2 * latticeBits) & mask)
}

func latticeEdgeKey(i, j, k int, axis uint8) edgeKey {
	return edgeKey{a: packLattice(i, j, k), b: uint64(axis)}
}

func nodeEdgeKey(n0, n1 Morton) edgeKey {
	if n0 > n1 {
		n0, n1 = n1, n0
	}
	return edgeKey{a: uint64(n0), b: uint64(n1)}
}

// vertexCache maps edge keys to vertex indices for the duration of a single
// extraction. Entries are never overwritten.
type vertexCache interface {
	lookup(k edgeKey) (uint32, bool)
	store(k edgeKey, index uint32)
}

var (
	_ vertexCache = (*slabCache)(nil)
	_ vertexCache = hashCache(nil)
)

// slabCache is the sliding window cache of the dense extractor. It holds the
// x and y edges of the bottom and top lattice layers of the slab being
// scanned plus the z edges between them, O((n+1)²) entries in total.
// Stored values are index+1 so the zero value marks an empty slot.
type slabCache struct {
	n int
	// base offsets keys from global lattice coordinates to the window.
	base [3]int
	// z is the lattice layer at the bottom of the current slab.
	z      int
	bottom [2][]uint32
	top    [2][]uint32
	vert   []uint32
}

func newSlabCache(n int) *slabCache {
	side := (n + 1) * (n + 1)
	buf := make([]uint32, 5*side)
	return &slabCache{
		n:      n,
		bottom: [2][]uint32{buf[:side], buf[side : 2*side]},
		top:    [2][]uint32{buf[2*side : 3*side], buf[3*side : 4*side]},
		vert:   buf[4*side:],
	}
}

// reset empties the cache and moves the window to the first slab of a chunk
// whose minimum lattice point is base.
func (c *slabCache) reset(base [3]int) {
	c.base = base
	c.z = 0
	for _, s := range [][]uint32{c.bottom[0], c.bottom[1], c.top[0], c.top[1], c.vert} {
		clear(s)
	}
}

// advance moves the window one layer up. Top layer edges become bottom layer
// edges and the rest is cleared.
func (c *slabCache) advance() {
	c.bottom, c.top = c.top, c.bottom
	clear(c.top[0])
	clear(c.top[1])
	clear(c.vert)
	c.z++
}

func (c *slabCache) slot(k edgeKey) *uint32 {
	i, j, kz := unpackLattice(k.a)
	i -= c.base[0]
	j -= c.base[1]
	kz -= c.base[2]
	if i < 0 || j < 0 || i > c.n || j > c.n {
		panic(fmt.Sprintf("bug: edge (%d,%d,%d) axis %d outside of slab cache window", i, j, kz, k.b))
	}
	idx := j*(c.n+1) + i
	switch {
	case k.b == 2 && kz == c.z:
		return &c.vert[idx]
	case k.b < 2 && kz == c.z:
		return &c.bottom[k.b][idx]
	case k.b < 2 && kz == c.z+1:
		return &c.top[k.b][idx]
	}
	panic(fmt.Sprintf("bug: edge (%d,%d,%d) axis %d outside of slab %d", i, j, kz, k.b, c.z))
}

func (c *slabCache) lookup(k edgeKey) (uint32, bool) {
	v := *c.slot(k)
	return v - 1, v != 0
}

func (c *slabCache) store(k edgeKey, index uint32) {
	s := c.slot(k)
	if *s != 0 {
		panic(fmt.Sprintf("bug: edge key %v stored twice", k))
	}
	*s = index + 1
}

// hashCache is the unbounded cache used when cells are not visited in a
// fixed raster order.
type hashCache map[edgeKey]uint32

func (c hashCache) lookup(k edgeKey) (uint32, bool) {
	v, ok := c[k]
	return v, ok
}

func (c hashCache) store(k edgeKey, index uint32) {
	if _, ok := c[k]; ok {
		panic(fmt.Sprintf("bug: edge key %v stored twice", k))
	}
	c[k] = index
}

// meshBuilder accumulates the output of an extraction. Vertices are created
// once per edge key through the cache.
type meshBuilder struct {
	cache vertexCache
	iso   float64
	mesh  isosurface.Mesh
	// keys holds the edge key of every vertex when record is set so chunks
	// can be welded afterwards.
	keys []edgeKey
	// normal computes the vertex normal at a position. nil disables normals.
	normal func(p r3.Vec) r3.Vec
	record bool
}

// edgeVertex returns the index of the vertex on the edge identified by key,
// creating it by linear interpolation between p0 and p1 on first encounter.
func (mb *meshBuilder) edgeVertex(key edgeKey, p0, p1 r3.Vec, v0, v1 float64) uint32 {
	if idx, ok := mb.cache.lookup(key); ok {
		return idx
	}
	idx := mb.vertex(d3.Lerp(p0, p1, edgeLerp(mb.iso, v0, v1)))
	if mb.record {
		mb.keys = append(mb.keys, key)
	}
	mb.cache.store(key, idx)
	return idx
}

// vertex appends a vertex at p without deduplication.
func (mb *meshBuilder) vertex(p r3.Vec) uint32 {
	if len(mb.mesh.Vertices) >= math.MaxUint32 {
		panic("bug: vertex index overflow")
	}
	idx := uint32(len(mb.mesh.Vertices))
	mb.mesh.Vertices = append(mb.mesh.Vertices, p)
	if mb.normal != nil {
		mb.mesh.Normals = append(mb.mesh.Normals, mb.normal(p))
	}
	return idx
}

// quad appends the counter-clockwise quad a, b, c, d split along a-c.
func (mb *meshBuilder) quad(a, b, c, d uint32) {
	mb.mesh.Triangles = append(mb.mesh.Triangles,
		isosurface.Triangle{a, b, c},
		isosurface.Triangle{a, c, d},
	)
}

// triangle appends a triangle given in table winding order, dropping it
// if two of its indices coincide.
func (mb *meshBuilder) triangle(a, b, c uint32) {
	if a == b || b == c || c == a {
		return
	}
	mb.mesh.Triangles = append(mb.mesh.Triangles, isosurface.Triangle{a, c, b})
}

// take hands the accumulated mesh over to the caller.
func (mb *meshBuilder) take() *isosurface.Mesh {
	m := mb.mesh
	mb.mesh = isosurface.Mesh{}
	if m.Vertices == nil {
		m.Vertices = []r3.Vec{}
		m.Triangles = []isosurface.Triangle{}
	}
	return &m
}
