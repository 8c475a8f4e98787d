package render

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/soypat/isosurface"
	"github.com/soypat/isosurface/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// cubeField is the Chebyshev distance to an axis aligned cube of the given
// half size. Its level sets have exact sharp edges and corners.
func cubeField(c r3.Vec, half float64) isosurface.Sampler {
	return isosurface.SamplerFunc(func(p r3.Vec) float64 {
		return d3.Max(d3.AbsElem(r3.Sub(p, c))) - half
	})
}

func TestDualContouringEmpty(t *testing.T) {
	m, err := ExtractDualContouring(context.Background(), 4, constField(1), 0, r3.Vec{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if m.Vertices == nil || m.Triangles == nil {
		t.Error("want non-nil empty slices")
	}
	if len(m.Vertices) != 0 || len(m.Triangles) != 0 {
		t.Errorf("got %d vertices, %d triangles; want empty mesh", len(m.Vertices), len(m.Triangles))
	}
}

func TestDualContouringPlane(t *testing.T) {
	plane := isosurface.SamplerFunc(func(p r3.Vec) float64 { return p.Z - 0.5 })
	dc, err := NewDualContouring(DenseConfig{Size: 2, CellSize: 1, Normals: true})
	if err != nil {
		t.Fatal(err)
	}
	m, err := dc.Extract(context.Background(), plane)
	if err != nil {
		t.Fatal(err)
	}
	wantVerts := []r3.Vec{
		{X: 0.5, Y: 0.5, Z: 0.5},
		{X: 1.5, Y: 0.5, Z: 0.5},
		{X: 0.5, Y: 1.5, Z: 0.5},
		{X: 1.5, Y: 1.5, Z: 0.5},
	}
	if diff := cmp.Diff(wantVerts, m.Vertices); diff != "" {
		t.Errorf("vertices mismatch (-want +got):\n%s", diff)
	}
	// One interior edge crosses the plane, giving a single quad.
	wantTris := []isosurface.Triangle{{0, 1, 3}, {0, 3, 2}}
	if diff := cmp.Diff(wantTris, m.Triangles); diff != "" {
		t.Errorf("triangles mismatch (-want +got):\n%s", diff)
	}
	if n := m.BoundaryEdges(); n != 4 {
		t.Errorf("got %d boundary edges, want 4", n)
	}
	for i := range m.Triangles {
		tri := Triangle3{V: m.Triangle3(i)}
		if !d3.EqualWithin(tri.Normal(), r3.Vec{Z: 1}, 1e-12) {
			t.Errorf("triangle %d normal %v, want +z", i, tri.Normal())
		}
	}
	if len(m.Normals) != len(m.Vertices) {
		t.Fatalf("got %d normals for %d vertices", len(m.Normals), len(m.Vertices))
	}
	for i, n := range m.Normals {
		if !d3.EqualWithin(n, r3.Vec{Z: 1}, 1e-9) {
			t.Errorf("vertex %d normal %v, want +z", i, n)
		}
	}
}

func TestDualContouringSphere(t *testing.T) {
	const r = 5.3
	c := r3Vec(8, 8, 8)
	ctx := context.Background()
	dc, err := NewDualContouring(DenseConfig{Size: 16, CellSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	m, err := dc.Extract(ctx, sphereField(c, r))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Vertices) != 536 || len(m.Triangles) != 1068 {
		t.Errorf("got %d vertices, %d triangles; want 536, 1068", len(m.Vertices), len(m.Triangles))
	}
	checkClosed(t, m)
	if n := countInward(m, c); n != 0 {
		t.Errorf("%d triangles face the sphere center", n)
	}
	for i, v := range m.Vertices {
		if d := math.Abs(r3.Norm(r3.Sub(v, c)) - r); d > 0.1 {
			t.Errorf("vertex %d at %v is %g off the surface", i, v, d)
		}
	}
	// Buffers are reused between calls.
	again, err := dc.Extract(ctx, sphereField(c, r))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(m, again); diff != "" {
		t.Errorf("repeated extraction differs (-first +second):\n%s", diff)
	}
}

func TestDualContouringSharpCorner(t *testing.T) {
	c := r3Vec(4.37, 4.37, 4.37)
	corner := r3Vec(2.37, 2.37, 2.37)
	ctx := context.Background()
	field := cubeField(c, 2)
	m, err := ExtractDualContouring(ctx, 9, field, 0, r3.Vec{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Vertices) != 98 || len(m.Triangles) != 192 {
		t.Errorf("got %d vertices, %d triangles; want 98, 192", len(m.Vertices), len(m.Triangles))
	}
	checkClosed(t, m)
	if n := countInward(m, c); n != 0 {
		t.Errorf("%d triangles face the cube center", n)
	}
	if d := nearest(m.Vertices, corner); d > 1e-9 {
		t.Errorf("nearest vertex is %g from the cube corner", d)
	}
	// Marching cubes vertices lie on lattice edges and miss the corner.
	mc, err := ExtractDense(ctx, 9, field, 0, r3.Vec{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if d := nearest(mc.Vertices, corner); d < 0.5 {
		t.Errorf("marching cubes vertex %g from the corner", d)
	}
}

func nearest(verts []r3.Vec, p r3.Vec) float64 {
	best := math.Inf(1)
	for _, v := range verts {
		best = math.Min(best, r3.Norm(r3.Sub(v, p)))
	}
	return best
}

func TestDualContouringErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := NewDualContouring(DenseConfig{Size: 0, CellSize: 1}); !errors.Is(err, isosurface.ErrInvalidInput) {
		t.Errorf("zero size: got %v", err)
	}
	if _, err := ExtractDualContouring(ctx, 2, nil, 0, r3.Vec{}, 1); !errors.Is(err, isosurface.ErrInvalidInput) {
		t.Errorf("nil sampler: got %v", err)
	}
	sphere := sphereField(r3Vec(1, 1, 1), 0.6)
	hole := isosurface.SamplerFunc(func(p r3.Vec) float64 {
		if p == r3Vec(2, 0, 1) {
			return math.Inf(1)
		}
		return sphere.Sample(p)
	})
	m, err := ExtractDualContouring(ctx, 2, hole, 0, r3.Vec{}, 1)
	if !errors.Is(err, isosurface.ErrNonFinite) || m != nil {
		t.Errorf("got %v, %v; want nil mesh and ErrNonFinite", m, err)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	m, err = ExtractDualContouring(cancelled, 2, sphere, 0, r3.Vec{}, 1)
	if !errors.Is(err, context.Canceled) || m != nil {
		t.Errorf("got %v, %v; want nil mesh and context.Canceled", m, err)
	}
}

func TestQEF(t *testing.T) {
	var q qef
	for _, test := range []struct {
		name    string
		points  []r3.Vec
		normals []r3.Vec
		want    r3.Vec
		topo    localTopology
	}{
		{
			name:    "planar",
			points:  []r3.Vec{{X: 0, Z: 1}, {X: 1, Z: 1}, {Y: 1, Z: 1}},
			normals: []r3.Vec{{Z: 1}, {Z: 1}, {Z: 1}},
			want:    r3.Vec{X: 1. / 3, Y: 1. / 3, Z: 1},
			topo:    topologyPlanar,
		},
		{
			name:    "edge",
			points:  []r3.Vec{{X: 1, Y: 0.2, Z: 0.7}, {X: 0.4, Y: 2, Z: 0.1}, {X: 1, Y: 0.5, Z: 0.5}},
			normals: []r3.Vec{{X: 1}, {Y: 1}, {X: 1}},
			want:    r3.Vec{X: 1, Y: 2, Z: 1.3 / 3},
			topo:    topologyEdge,
		},
		{
			name:    "corner",
			points:  []r3.Vec{{X: -1, Y: 0.5, Z: 0.5}, {X: 0.5, Y: 3, Z: 0.5}, {X: 0.5, Y: 0.5, Z: 2}},
			normals: []r3.Vec{{X: -1}, {Y: 1}, {Z: 1}},
			want:    r3.Vec{X: -1, Y: 3, Z: 2},
			topo:    topologyCorner,
		},
	} {
		q.reset()
		for i, p := range test.points {
			q.add(p, test.normals[i])
		}
		got, topo := q.solve()
		if topo != test.topo {
			t.Errorf("%s: got topology %v, want %v", test.name, topo, test.topo)
		}
		if !d3.EqualWithin(got, test.want, 1e-12) {
			t.Errorf("%s: got %v, want %v", test.name, got, test.want)
		}
	}
}

func BenchmarkDualContouring(b *testing.B) {
	ctx := context.Background()
	dc, err := NewDualContouring(DenseConfig{Size: 32, CellSize: 1})
	if err != nil {
		b.Fatal(err)
	}
	s := sphereField(r3Vec(16, 16, 16), 11)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := dc.Extract(ctx, s)
		if err != nil {
			b.Fatal(err)
		}
	}
}
