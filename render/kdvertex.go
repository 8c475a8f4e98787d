package render

import (
	"slices"

	"github.com/soypat/isosurface"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	_ kdtree.Interface  = kdVertices{}
	_ kdtree.Comparable = kdVertex{}
)

// CoincidentVertices returns the pairs of distinct vertices of m lying within
// tol of each other, ordered by first then second index. A mesh with correctly
// deduplicated vertices returns none for a tolerance much smaller than its
// cell size.
func CoincidentVertices(m *isosurface.Mesh, tol float64) [][2]uint32 {
	if len(m.Vertices) < 2 {
		return nil
	}
	verts := make(kdVertices, len(m.Vertices))
	for i, v := range m.Vertices {
		verts[i] = kdVertex{Vec: v, idx: uint32(i)}
	}
	tree := kdtree.New(verts, false)
	var pairs [][2]uint32
	for i, v := range m.Vertices {
		keep := kdtree.NewDistKeeper(tol * tol)
		tree.NearestSet(keep, kdVertex{Vec: v, idx: uint32(i)})
		for _, c := range keep.Heap {
			if c.Comparable == nil {
				// Distance sentinel.
				continue
			}
			j := c.Comparable.(kdVertex).idx
			if j > uint32(i) {
				pairs = append(pairs, [2]uint32{uint32(i), j})
			}
		}
	}
	slices.SortFunc(pairs, func(a, b [2]uint32) int {
		if a[0] != b[0] {
			return int(a[0]) - int(b[0])
		}
		return int(a[1]) - int(b[1])
	})
	return pairs
}

type kdVertex struct {
	r3.Vec
	idx uint32
}

type kdVertices []kdVertex

func (k kdVertices) Index(i int) kdtree.Comparable { return k[i] }

// Len returns the length of the list.
func (k kdVertices) Len() int { return len(k) }

// Pivot partitions the list based on the dimension specified.
func (k kdVertices) Pivot(d kdtree.Dim) int {
	p := kdPlane{dim: int(d), vertices: k}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

// Slice returns a slice of the list using zero-based half
// open indexing equivalent to built-in slice indexing.
func (k kdVertices) Slice(start, end int) kdtree.Interface {
	return k[start:end]
}

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
//
// Given c = a.Compare(b, d):
//
//	c = a_d - b_d
func (a kdVertex) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return kdComp(a.Vec, b.(kdVertex).Vec, int(d))
}

// Dims returns the number of dimensions described in the Comparable.
func (a kdVertex) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between the receiver and
// the parameter.
func (a kdVertex) Distance(b kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(a.Vec, b.(kdVertex).Vec))
}

// c = a.dim - b.dim
func kdComp(a, b r3.Vec, dim int) (c float64) {
	switch dim {
	case 0:
		c = a.X - b.X
	case 1:
		c = a.Y - b.Y
	case 2:
		c = a.Z - b.Z
	}
	return c
}

type kdPlane struct {
	dim      int
	vertices kdVertices
}

func (p kdPlane) Less(i, j int) bool {
	return kdComp(p.vertices[i].Vec, p.vertices[j].Vec, p.dim) < 0
}
func (p kdPlane) Swap(i, j int) {
	p.vertices[i], p.vertices[j] = p.vertices[j], p.vertices[i]
}
func (p kdPlane) Len() int {
	return len(p.vertices)
}
func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.vertices = p.vertices[start:end]
	return p
}
