package render

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/soypat/isosurface"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestLinearHashedEmpty(t *testing.T) {
	ctx := context.Background()
	cfg := OctreeConfig{Size: 1, MaxDepth: 4}
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}
	oc, err := buildOctree(ctx, &cfg, constField(1))
	if err != nil {
		t.Fatal(err)
	}
	// Only the forced minimum depth is subdivided.
	if len(oc.nodes) != 1+8+64 || len(oc.leaves) != 64 {
		t.Errorf("got %d nodes %d leaves, want 73 and 64", len(oc.nodes), len(oc.leaves))
	}
	for _, v := range []float64{1, -1} {
		m, err := ExtractLinearHashed(ctx, r3.Vec{}, 1, 4, nil, constField(v), 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(m.Vertices) != 0 || len(m.Triangles) != 0 {
			t.Errorf("field %g: got %d vertices %d triangles, want empty mesh", v, len(m.Vertices), len(m.Triangles))
		}
	}
}

func TestLinearHashedSphere(t *testing.T) {
	ctx := context.Background()
	center := r3Vec(0.5, 0.5, 0.5)
	field := sphereField(center, 0.3)
	for _, test := range []struct {
		maxDepth        int
		nodes           int
		vertices, faces int
	}{
		{maxDepth: 3, nodes: 329, vertices: 96, faces: 188},
		{maxDepth: 4, nodes: 1353, vertices: 456, faces: 908},
		{maxDepth: 5, vertices: 1704, faces: 3404},
	} {
		cfg := OctreeConfig{Size: 1, MaxDepth: test.maxDepth}
		if test.nodes != 0 {
			if err := cfg.validate(); err != nil {
				t.Fatal(err)
			}
			oc, err := buildOctree(ctx, &cfg, field)
			if err != nil {
				t.Fatal(err)
			}
			if len(oc.nodes) != test.nodes {
				t.Errorf("depth %d: got %d nodes, want %d", test.maxDepth, len(oc.nodes), test.nodes)
			}
		}
		m, err := ExtractLinearHashed(ctx, r3.Vec{}, 1, test.maxDepth, nil, field, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(m.Vertices) != test.vertices || len(m.Triangles) != test.faces {
			t.Errorf("depth %d: got %d vertices %d triangles, want %d and %d",
				test.maxDepth, len(m.Vertices), len(m.Triangles), test.vertices, test.faces)
		}
		checkClosed(t, m)
		if n := countInward(m, center); n != 0 {
			t.Errorf("depth %d: %d triangles face inward", test.maxDepth, n)
		}
		if pairs := CoincidentVertices(m, 1e-9); len(pairs) != 0 {
			t.Errorf("depth %d: duplicate vertices %v", test.maxDepth, pairs)
		}
	}
}

func TestLinearHashedLeafLevels(t *testing.T) {
	cfg := OctreeConfig{Size: 1, MaxDepth: 3}
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}
	oc, err := buildOctree(context.Background(), &cfg, sphereField(r3Vec(0.5, 0.5, 0.5), 0.3))
	if err != nil {
		t.Fatal(err)
	}
	levels := make(map[int]int)
	for _, leaf := range oc.leaves {
		levels[leaf.Level()]++
	}
	if diff := cmp.Diff(map[int]int{2: 32, 3: 256}, levels); diff != "" {
		t.Errorf("leaf levels mismatch (-want +got):\n%s", diff)
	}
}

// One half of the root is refined one level deeper than the other half so
// the surface crosses the boundary between leaves of depth D and D-1.
func TestLinearHashedCrackFree(t *testing.T) {
	ctx := context.Background()
	field := sphereField(r3Vec(0.5, 0.5, 0.5), 0.3)
	for _, test := range []struct {
		maxDepth        int
		leaves          map[int]int
		vertices, faces int
	}{
		{maxDepth: 4, leaves: map[int]int{3: 256, 4: 2048}, vertices: 296, faces: 588},
		{maxDepth: 5, vertices: 1108, faces: 2212},
	} {
		d := test.maxDepth
		refine := func(c Cell) bool {
			return c.Level < d-1 || (c.Level < d && c.Center.X < 0.5)
		}
		cfg := OctreeConfig{Size: 1, MaxDepth: d, Refine: refine}
		lh, err := NewLinearHashedMarchingCubes(cfg)
		if err != nil {
			t.Fatal(err)
		}
		m, err := lh.Extract(ctx, field)
		if err != nil {
			t.Fatal(err)
		}
		if len(m.Vertices) != test.vertices || len(m.Triangles) != test.faces {
			t.Errorf("depth %d: got %d vertices %d triangles, want %d and %d",
				d, len(m.Vertices), len(m.Triangles), test.vertices, test.faces)
		}
		checkClosed(t, m)
		if pairs := CoincidentVertices(m, 1e-9); len(pairs) != 0 {
			t.Errorf("depth %d: %d near-coincident vertex pairs across refinement boundary, first %v",
				d, len(pairs), pairs[0])
		}
		if test.leaves != nil {
			oc, err := buildOctree(ctx, &lh.cfg, field)
			if err != nil {
				t.Fatal(err)
			}
			levels := make(map[int]int)
			for _, leaf := range oc.leaves {
				levels[leaf.Level()]++
			}
			if diff := cmp.Diff(test.leaves, levels); diff != "" {
				t.Errorf("leaf levels mismatch (-want +got):\n%s", diff)
			}
		}
	}
}

func TestLinearHashedDeterministic(t *testing.T) {
	ctx := context.Background()
	field := sphereField(r3Vec(0.45, 0.5, 0.55), 0.27)
	first, err := ExtractLinearHashed(ctx, r3.Vec{}, 1, 5, nil, field, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ExtractLinearHashed(ctx, r3.Vec{}, 1, 5, nil, field, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("extraction not deterministic (-first +second):\n%s", diff)
	}
}

func TestLinearHashedWorldSpace(t *testing.T) {
	center := r3Vec(11, 1, -1)
	const radius = 0.6
	lh, err := NewLinearHashedMarchingCubes(OctreeConfig{
		Origin:   r3Vec(10, 0, -2),
		Size:     2,
		MaxDepth: 5,
		Normals:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	m, err := lh.Extract(context.Background(), sphereField(center, radius))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Triangles) == 0 {
		t.Fatal("no triangles extracted")
	}
	checkClosed(t, m)
	leaf := 2.0 / 32
	for i, v := range m.Vertices {
		if d := r3.Norm(r3.Sub(v, center)); math.Abs(d-radius) > leaf {
			t.Errorf("vertex %v at distance %g from center", v, d)
		}
		radial := r3.Unit(r3.Sub(v, center))
		if r3.Dot(m.Normals[i], radial) < 0.999 {
			t.Errorf("vertex %v normal %v, want %v", v, m.Normals[i], radial)
		}
	}
}

func TestLinearHashedIsoLevel(t *testing.T) {
	ctx := context.Background()
	center := r3Vec(0.5, 0.5, 0.5)
	// The 0.1 level set of a sphere of radius 0.2 is the zero level set of a
	// sphere of radius 0.3.
	shifted, err := ExtractLinearHashed(ctx, r3.Vec{}, 1, 4, nil, sphereField(center, 0.2), 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if len(shifted.Triangles) == 0 {
		t.Fatal("no triangles extracted")
	}
	checkClosed(t, shifted)
	for _, v := range shifted.Vertices {
		if d := r3.Norm(r3.Sub(v, center)); math.Abs(d-0.3) > 1./16 {
			t.Errorf("vertex %v at distance %g from center", v, d)
		}
	}
}

func TestLinearHashedNorm(t *testing.T) {
	ctx := context.Background()
	field := sphereField(r3Vec(0.5, 0.5, 0.5), 0.3)
	count := func(norm Norm) int {
		cfg := OctreeConfig{Size: 1, MaxDepth: 5, Norm: norm}
		if err := cfg.validate(); err != nil {
			t.Fatal(err)
		}
		oc, err := buildOctree(ctx, &cfg, field)
		if err != nil {
			t.Fatal(err)
		}
		return len(oc.nodes)
	}
	euclid, max := count(NormEuclidean), count(NormMax)
	if max > euclid {
		t.Errorf("max norm refined more nodes (%d) than euclidean norm (%d)", max, euclid)
	}
}

func TestLinearHashedErrors(t *testing.T) {
	ctx := context.Background()
	field := sphereField(r3Vec(0.5, 0.5, 0.5), 0.3)
	for _, test := range []struct {
		name     string
		size     float64
		maxDepth int
		iso      float64
	}{
		{"zero depth", 1, 0, 0},
		{"negative depth", 1, -1, 0},
		{"too deep", 1, MaxOctreeDepth, 0},
		{"zero size", 0, 3, 0},
		{"NaN iso", 1, 3, math.NaN()},
	} {
		m, err := ExtractLinearHashed(ctx, r3.Vec{}, test.size, test.maxDepth, nil, field, test.iso)
		if !errors.Is(err, isosurface.ErrInvalidInput) || m != nil {
			t.Errorf("%s: got %v, want ErrInvalidInput", test.name, err)
		}
	}
	if _, err := ExtractLinearHashed(ctx, r3.Vec{}, 1, 3, nil, nil, 0); !errors.Is(err, isosurface.ErrInvalidInput) {
		t.Errorf("nil sampler: got %v", err)
	}
	nan := isosurface.SamplerFunc(func(p r3.Vec) float64 {
		if p.X > 0.6 {
			return math.NaN()
		}
		return field.Sample(p)
	})
	if m, err := ExtractLinearHashed(ctx, r3.Vec{}, 1, 3, nil, nan, 0); !errors.Is(err, isosurface.ErrNonFinite) || m != nil {
		t.Errorf("NaN field: got %v", err)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := ExtractLinearHashed(cancelled, r3.Vec{}, 1, 3, nil, field, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: got %v", err)
	}
}

func BenchmarkLinearHashed(b *testing.B) {
	ctx := context.Background()
	field := sphereField(r3Vec(0.5, 0.5, 0.5), 0.35)
	for i := 0; i < b.N; i++ {
		if _, err := ExtractLinearHashed(ctx, r3.Vec{}, 1, 7, nil, field, 0); err != nil {
			b.Fatal(err)
		}
	}
}
