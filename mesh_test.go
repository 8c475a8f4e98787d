package isosurface

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"
)

// tetrahedron returns a closed mesh with outward facing triangles.
func tetrahedron() *Mesh {
	return &Mesh{
		Vertices: []r3.Vec{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
			{X: 0, Y: 0, Z: 1},
		},
		Triangles: []Triangle{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}},
	}
}

func TestMeshValidate(t *testing.T) {
	m := tetrahedron()
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	m.Normals = make([]r3.Vec, 3)
	if err := m.Validate(); err == nil {
		t.Error("expected error for mismatched normals")
	}
	m.Normals = nil
	m.Triangles = append(m.Triangles, Triangle{0, 1, 4})
	if err := m.Validate(); err == nil {
		t.Error("expected error for dangling index")
	}
}

func TestMeshBoundaryEdges(t *testing.T) {
	m := tetrahedron()
	if n := m.BoundaryEdges(); n != 0 {
		t.Errorf("closed mesh has %d boundary edges", n)
	}
	m.Triangles = m.Triangles[:3]
	if n := m.BoundaryEdges(); n != 3 {
		t.Errorf("got %d boundary edges, want 3", n)
	}
}

func TestMeshBuffers(t *testing.T) {
	m := tetrahedron()
	want := []uint32{0, 2, 1, 0, 1, 3, 0, 3, 2, 1, 2, 3}
	if diff := cmp.Diff(want, m.Indices()); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}
	got := m.AppendInterleaved(nil, true)
	if len(got) != 12 {
		t.Errorf("mesh without normals: got %d floats, want 12", len(got))
	}
	m.Normals = []r3.Vec{{X: -1}, {X: 1}, {Y: 1}, {Z: 1}}
	got = m.AppendInterleaved([]float32{7}, true)
	wantF := []float32{7, 0, 0, 0, -1, 0, 0, 1, 0, 0, 1, 0, 0}
	if diff := cmp.Diff(wantF, got[:len(wantF)]); diff != "" {
		t.Errorf("interleaved mismatch (-want +got):\n%s", diff)
	}
	if len(got) != 1+24 {
		t.Errorf("got %d floats, want 25", len(got))
	}
}

func TestMeshBounds(t *testing.T) {
	if got := (&Mesh{}).Bounds(); got != (r3.Box{}) {
		t.Errorf("empty mesh bounds %v", got)
	}
	m := tetrahedron()
	m.Vertices[3] = r3.Vec{X: -2, Y: 0.5, Z: 3}
	want := r3.Box{Min: r3.Vec{X: -2}, Max: r3.Vec{X: 1, Y: 1, Z: 3}}
	if got := m.Bounds(); got != want {
		t.Errorf("got bounds %v, want %v", got, want)
	}
	tri := m.Triangle3(1)
	if tri[2] != m.Vertices[3] {
		t.Errorf("Triangle3 returned %v", tri)
	}
}

func TestSamplerGradient(t *testing.T) {
	f := SamplerFunc(func(p r3.Vec) float64 { return 3*p.X - 2*p.Y + p.Z*p.Z })
	g := Gradient(f, r3.Vec{Z: 2}, 1e-4)
	want := r3.Vec{X: 3, Y: -2, Z: 4}
	if r3.Norm(r3.Sub(g, want)) > 1e-6 {
		t.Errorf("got gradient %v, want %v", g, want)
	}
	if n := Normal(SamplerFunc(func(r3.Vec) float64 { return 1 }), r3.Vec{}, 1e-3); n != (r3.Vec{}) {
		t.Errorf("constant field normal %v, want zero", n)
	}
}
