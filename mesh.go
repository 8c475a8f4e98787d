package isosurface

import (
	"github.com/pkg/errors"
	"github.com/soypat/isosurface/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle is an ordered triple of vertex indices. Vertices are wound
// counter-clockwise when viewed from the side of the surface where the field
// is above the iso-level.
//
// Indices are 32 bits wide: a 32³ chunk routinely exceeds 65536 vertices.
type Triangle [3]uint32

// Mesh is an indexed triangle mesh as produced by the extractors.
// Once returned by an extractor the Mesh is owned solely by the caller.
type Mesh struct {
	Vertices []r3.Vec
	// Normals is either empty or holds one unit normal per vertex.
	Normals   []r3.Vec
	Triangles []Triangle
}

// Len returns the number of triangles in the mesh.
func (m *Mesh) Len() int { return len(m.Triangles) }

// Triangle3 returns the vertex positions of the i'th triangle.
func (m *Mesh) Triangle3(i int) [3]r3.Vec {
	t := m.Triangles[i]
	return [3]r3.Vec{m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]}
}

// Validate checks that every triangle references existing vertices and that
// Normals, if present, matches Vertices in length.
func (m *Mesh) Validate() error {
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices) {
		return errors.Errorf("mesh has %d normals for %d vertices", len(m.Normals), len(m.Vertices))
	}
	nv := uint64(len(m.Vertices))
	for i, t := range m.Triangles {
		for _, idx := range t {
			if uint64(idx) >= nv {
				return errors.Errorf("triangle %d references vertex %d, mesh has %d vertices", i, idx, nv)
			}
		}
	}
	return nil
}

// Bounds returns the bounding box of the mesh vertices. An empty mesh
// returns the zero box.
func (m *Mesh) Bounds() r3.Box {
	if len(m.Vertices) == 0 {
		return r3.Box{}
	}
	bb := d3.EmptyBox()
	for _, v := range m.Vertices {
		bb = bb.Include(v)
	}
	return r3.Box(bb)
}

// Indices returns the triangle indices flattened into a single slice, ready
// to be uploaded as an index buffer.
func (m *Mesh) Indices() []uint32 {
	idx := make([]uint32, 0, 3*len(m.Triangles))
	for _, t := range m.Triangles {
		idx = append(idx, t[0], t[1], t[2])
	}
	return idx
}

// AppendInterleaved appends the vertex positions to dst as tightly packed
// float32 triples. If normals is true and the mesh has normals each position
// is followed by its normal.
func (m *Mesh) AppendInterleaved(dst []float32, normals bool) []float32 {
	normals = normals && len(m.Normals) == len(m.Vertices)
	for i, v := range m.Vertices {
		dst = append(dst, float32(v.X), float32(v.Y), float32(v.Z))
		if normals {
			n := m.Normals[i]
			dst = append(dst, float32(n.X), float32(n.Y), float32(n.Z))
		}
	}
	return dst
}

// BoundaryEdges returns the number of undirected edges referenced by exactly one
// triangle. A closed (watertight) surface has none.
func (m *Mesh) BoundaryEdges() int {
	count := make(map[[2]uint32]int, 3*len(m.Triangles)/2)
	for _, t := range m.Triangles {
		for i := 0; i < 3; i++ {
			a, b := t[i], t[(i+1)%3]
			if a > b {
				a, b = b, a
			}
			count[[2]uint32{a, b}]++
		}
	}
	n := 0
	for _, c := range count {
		if c == 1 {
			n++
		}
	}
	return n
}
