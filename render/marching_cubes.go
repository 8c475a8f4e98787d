package render

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/soypat/isosurface"
	"github.com/soypat/isosurface/internal/d3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// DenseConfig configures a MarchingCubes extractor.
type DenseConfig struct {
	// Size is the number of cells along each axis of the chunk.
	Size int
	// Origin is the position of lattice point (0,0,0).
	Origin   r3.Vec
	CellSize float64
	IsoLevel float64
	// Normals enables per vertex normals computed from the field gradient.
	Normals bool
	// NormalStep is the finite difference step used for normals when the
	// sampler has no analytic gradient. Defaults to a thousandth of CellSize.
	NormalStep float64
	// Logger receives extraction statistics at debug level. Defaults to a no-op logger.
	Logger *zap.Logger
}

func (cfg *DenseConfig) validate() error {
	switch {
	case cfg.Size <= 0 || cfg.Size >= maxLattice:
		return errors.Wrapf(isosurface.ErrInvalidInput, "chunk size %d", cfg.Size)
	case !(cfg.CellSize > 0) || math.IsInf(cfg.CellSize, 0):
		return errors.Wrapf(isosurface.ErrInvalidInput, "cell size %g", cfg.CellSize)
	case !d3.IsFinite(cfg.Origin):
		return errors.Wrapf(isosurface.ErrInvalidInput, "origin %v", cfg.Origin)
	case math.IsNaN(cfg.IsoLevel) || math.IsInf(cfg.IsoLevel, 0):
		return errors.Wrapf(isosurface.ErrInvalidInput, "iso-level %g", cfg.IsoLevel)
	case math.IsNaN(cfg.NormalStep) || math.IsInf(cfg.NormalStep, 0):
		return errors.Wrapf(isosurface.ErrInvalidInput, "normal step %g", cfg.NormalStep)
	}
	if cfg.NormalStep <= 0 {
		cfg.NormalStep = 1e-3 * cfg.CellSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return nil
}

// MarchingCubes extracts fully deduplicated meshes from a dense chunk of
// Size³ cells. The field is streamed one lattice layer at a time so only two
// layers of samples and one slab of edge indices are held in memory.
//
// A MarchingCubes reuses its buffers between calls and is not safe for
// concurrent use.
type MarchingCubes struct {
	cfg    DenseConfig
	layers [2][]float64
	cache  *slabCache
	// base is the lattice point of the chunk's minimum corner within a
	// larger lattice of chunks.
	base [3]int
}

// NewMarchingCubes returns a dense extractor for the chunk described by cfg.
func NewMarchingCubes(cfg DenseConfig) (*MarchingCubes, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	side := cfg.Size + 1
	buf := make([]float64, 2*side*side)
	return &MarchingCubes{
		cfg:    cfg,
		layers: [2][]float64{buf[:side*side], buf[side*side:]},
		cache:  newSlabCache(cfg.Size),
	}, nil
}

// ExtractDense samples s on the n³ cell chunk with minimum corner origin and
// returns the mesh of its iso surface at iso.
func ExtractDense(ctx context.Context, n int, s isosurface.Sampler, iso float64, origin r3.Vec, cellSize float64) (*isosurface.Mesh, error) {
	mc, err := NewMarchingCubes(DenseConfig{
		Size:     n,
		Origin:   origin,
		CellSize: cellSize,
		IsoLevel: iso,
	})
	if err != nil {
		return nil, err
	}
	return mc.Extract(ctx, s)
}

// Extract samples s over the chunk and returns the extracted mesh. Cells are
// visited in z, y, x order. ctx is checked once per row of cells, on
// cancellation the partial mesh is discarded and ctx.Err() returned.
func (mc *MarchingCubes) Extract(ctx context.Context, s isosurface.Sampler) (*isosurface.Mesh, error) {
	if s == nil {
		return nil, errors.Wrap(isosurface.ErrInvalidInput, "nil sampler")
	}
	m, _, err := mc.extract(ctx, s, nil, false)
	return m, err
}

// ExtractGrid extracts the mesh of a previously sampled grid. The grid must
// have as many cells per axis as the extractor.
func (mc *MarchingCubes) ExtractGrid(ctx context.Context, g *Grid) (*isosurface.Mesh, error) {
	if g == nil || g.N != mc.cfg.Size || len(g.Values) != (g.N+1)*(g.N+1)*(g.N+1) {
		return nil, errors.Wrapf(isosurface.ErrInvalidInput, "grid does not match chunk size %d", mc.cfg.Size)
	}
	m, _, err := mc.extract(ctx, nil, g, false)
	return m, err
}

// extract runs a single extraction from either a sampler or a grid. When
// record is set the edge key of every vertex is returned alongside the mesh.
func (mc *MarchingCubes) extract(ctx context.Context, s isosurface.Sampler, g *Grid, record bool) (*isosurface.Mesh, []edgeKey, error) {
	start := time.Now()
	cfg := &mc.cfg
	n := cfg.Size
	side := n + 1
	mc.cache.reset(mc.base)
	mb := meshBuilder{cache: mc.cache, iso: cfg.IsoLevel, record: record}
	if cfg.Normals {
		field := s
		if g != nil {
			field = g.Interpolator(cfg.Origin, cfg.CellSize)
		}
		mb.normal = func(p r3.Vec) r3.Vec { return isosurface.Normal(field, p, cfg.NormalStep) }
	}
	fetch := func(k int, dst []float64) ([]float64, error) {
		if g != nil {
			l := g.layer(k)
			return l, checkLayer(l, side, k)
		}
		return dst, sampleLayer(ctx, dst, side, k, mc.base, s, cfg.Origin, cfg.CellSize)
	}

	bottom, err := fetch(0, mc.layers[0])
	if err != nil {
		return nil, nil, err
	}
	active := 0
	for k := 0; k < n; k++ {
		top, err := fetch(k+1, mc.layers[1])
		if err != nil {
			return nil, nil, err
		}
		slab := [2][]float64{bottom, top}
		for j := 0; j < n; j++ {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			for i := 0; i < n; i++ {
				if mc.marchCell(&mb, &slab, i, j, k) {
					active++
				}
			}
		}
		mc.cache.advance()
		mc.layers[0], mc.layers[1] = mc.layers[1], mc.layers[0]
		bottom = top
	}
	keys := mb.keys
	m := mb.take()
	cfg.Logger.Debug("dense extraction done",
		zap.Int("size", n),
		zap.Ints("base", mc.base[:]),
		zap.Int("samples", side*side*side),
		zap.Int("activeCells", active),
		zap.Int("vertices", len(m.Vertices)),
		zap.Int("triangles", len(m.Triangles)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return m, keys, nil
}

// marchCell triangulates cell (i,j,k) of the chunk. slab holds the samples of
// the cell's bottom and top lattice layers. It reports whether the cell
// intersects the surface.
func (mc *MarchingCubes) marchCell(mb *meshBuilder, slab *[2][]float64, i, j, k int) bool {
	side := mc.cfg.Size + 1
	var values [8]float64
	for c, off := range mcCorners {
		values[c] = slab[off[2]][(j+off[1])*side+i+off[0]]
	}
	cfg := cubeConfig(&values, mc.cfg.IsoLevel)
	edges := crossingEdges(cfg)
	if edges == 0 {
		return false
	}
	gi, gj, gk := mc.base[0]+i, mc.base[1]+j, mc.base[2]+k
	var verts [12]uint32
	for e := 0; e < 12; e++ {
		if edges&(1<<e) == 0 {
			continue
		}
		c0, c1 := mcEdgeCorners[e][0], mcEdgeCorners[e][1]
		o0, o1 := mcCorners[c0], mcCorners[c1]
		key := latticeEdgeKey(gi+o0[0], gj+o0[1], gk+o0[2], mcEdgeAxis[e])
		p0 := mc.position(gi+o0[0], gj+o0[1], gk+o0[2])
		p1 := mc.position(gi+o1[0], gj+o1[1], gk+o1[2])
		verts[e] = mb.edgeVertex(key, p0, p1, values[c0], values[c1])
	}
	tris := caseTriangles(cfg)
	for t := 0; t+2 < len(tris); t += 3 {
		mb.triangle(verts[tris[t]], verts[tris[t+1]], verts[tris[t+2]])
	}
	return true
}

// position returns the world position of global lattice point (i,j,k).
func (mc *MarchingCubes) position(i, j, k int) r3.Vec {
	o, cs := mc.cfg.Origin, mc.cfg.CellSize
	return r3.Vec{
		X: o.X + cs*float64(i),
		Y: o.Y + cs*float64(j),
		Z: o.Z + cs*float64(k),
	}
}
