package render

import (
	"math"
	"testing"

	"github.com/soypat/isosurface"
	"gonum.org/v1/gonum/spatial/r3"
)

func r3Vec(x, y, z float64) r3.Vec { return r3.Vec{X: x, Y: y, Z: z} }

// sphereField is the signed distance to a sphere written out with math.Sqrt
// so sample values are reproducible bit for bit.
func sphereField(c r3.Vec, r float64) isosurface.Sampler {
	return isosurface.SamplerFunc(func(p r3.Vec) float64 {
		dx, dy, dz := p.X-c.X, p.Y-c.Y, p.Z-c.Z
		return math.Sqrt(dx*dx+dy*dy+dz*dz) - r
	})
}

func constField(v float64) isosurface.Sampler {
	return isosurface.SamplerFunc(func(r3.Vec) float64 { return v })
}

// checkerField alternates sign on every lattice point of a unit grid.
func checkerField() isosurface.Sampler {
	return isosurface.SamplerFunc(func(p r3.Vec) float64 {
		n := int(math.Round(p.X) + math.Round(p.Y) + math.Round(p.Z))
		if n%2 == 0 {
			return 1
		}
		return -1
	})
}

// checkClosed fails the test if the mesh has boundary edges or if any
// directed edge is used twice, which would mean inconsistent winding.
func checkClosed(t *testing.T, m *isosurface.Mesh) {
	t.Helper()
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	if n := m.BoundaryEdges(); n != 0 {
		t.Errorf("mesh has %d boundary edges", n)
	}
	directed := make(map[[2]uint32]bool)
	for _, tri := range m.Triangles {
		for i := 0; i < 3; i++ {
			e := [2]uint32{tri[i], tri[(i+1)%3]}
			if directed[e] {
				t.Errorf("directed edge %v used twice", e)
				return
			}
			directed[e] = true
		}
	}
}

// countInward returns the number of triangles whose normal points towards c.
func countInward(m *isosurface.Mesh, c r3.Vec) int {
	n := 0
	for i := range m.Triangles {
		tri := Triangle3{V: m.Triangle3(i)}
		centroid := r3.Scale(1./3, r3.Add(tri.V[0], r3.Add(tri.V[1], tri.V[2])))
		if r3.Dot(tri.Normal(), r3.Sub(centroid, c)) <= 0 {
			n++
		}
	}
	return n
}
