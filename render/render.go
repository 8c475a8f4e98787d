package render

import (
	"context"

	"github.com/soypat/isosurface"
	"github.com/soypat/isosurface/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle3 is a triangle in 3d space with vertices in counter-clockwise order.
type Triangle3 struct {
	V [3]r3.Vec
}

// Renderer streams triangles. ReadTriangles fills dst and returns the number
// of triangles written, returning io.EOF once no triangles remain.
type Renderer interface {
	ReadTriangles(dst []Triangle3) (int, error)
}

// Extractor converts a scalar field into an indexed mesh.
type Extractor interface {
	Extract(ctx context.Context, s isosurface.Sampler) (*isosurface.Mesh, error)
}

var (
	_ Extractor = (*MarchingCubes)(nil)
	_ Extractor = (*LinearHashedMarchingCubes)(nil)
	_ Extractor = (*DualContouring)(nil)
)

// Normal returns the normal vector to the plane defined by the 3d triangle.
func (t *Triangle3) Normal() r3.Vec {
	e1 := r3.Sub(t.V[1], t.V[0])
	e2 := r3.Sub(t.V[2], t.V[0])
	return r3.Unit(r3.Cross(e1, e2))
}

// Degenerate returns true if two vertices coincide within tol or the
// triangle has zero area. A degenerate triangle has no defined normal.
func (t *Triangle3) Degenerate(tol float64) bool {
	if d3.EqualWithin(t.V[0], t.V[1], tol) ||
		d3.EqualWithin(t.V[1], t.V[2], tol) ||
		d3.EqualWithin(t.V[2], t.V[0], tol) {
		return true
	}
	return r3.Norm2(r3.Cross(r3.Sub(t.V[1], t.V[0]), r3.Sub(t.V[2], t.V[0]))) == 0
}
