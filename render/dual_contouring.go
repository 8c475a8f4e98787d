package render

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/soypat/isosurface"
	"github.com/soypat/isosurface/internal/d3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// dcQuadCells lists, per edge axis, the offsets of the four cells around a
// lattice edge from the cell whose minimum corner is the edge start. The
// order is counter-clockwise seen from the positive end of the axis.
var dcQuadCells = [3][4][3]int{
	{{0, -1, -1}, {0, 0, -1}, {0, 0, 0}, {0, -1, 0}},
	{{-1, 0, -1}, {-1, 0, 0}, {0, 0, 0}, {0, 0, -1}},
	{{-1, -1, 0}, {0, -1, 0}, {0, 0, 0}, {-1, 0, 0}},
}

// DualContouring extracts meshes from Hermite data on a dense chunk of
// Size³ cells: every cell crossed by the surface gets a single vertex placed
// at the minimiser of the quadratic error of the tangent planes at its edge
// crossings, and every crossed lattice edge becomes a quad joining the
// vertices of its four cells. Sharp edges and corners of the field are kept
// instead of being chamfered as with MarchingCubes.
//
// Tangent planes need gradients so the sampler is always required. Edges on
// the chunk boundary have fewer than four cells and produce no quads.
//
// A DualContouring reuses its buffers between calls and is not safe for
// concurrent use.
type DualContouring struct {
	cfg   DenseConfig
	grid  *Grid
	cells []uint32 // vertex index+1 of every cell, 0 if not crossed.
	q     qef
}

// NewDualContouring returns a dual contouring extractor for the chunk
// described by cfg.
func NewDualContouring(cfg DenseConfig) (*DualContouring, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	g, err := NewGrid(cfg.Size)
	if err != nil {
		return nil, err
	}
	return &DualContouring{
		cfg:   cfg,
		grid:  g,
		cells: make([]uint32, cfg.Size*cfg.Size*cfg.Size),
	}, nil
}

// ExtractDualContouring samples s on the n³ cell chunk with minimum corner
// origin and returns the dual contoured mesh of its iso surface at iso.
func ExtractDualContouring(ctx context.Context, n int, s isosurface.Sampler, iso float64, origin r3.Vec, cellSize float64) (*isosurface.Mesh, error) {
	dc, err := NewDualContouring(DenseConfig{
		Size:     n,
		Origin:   origin,
		CellSize: cellSize,
		IsoLevel: iso,
	})
	if err != nil {
		return nil, err
	}
	return dc.Extract(ctx, s)
}

// Extract samples s over the chunk and returns the dual contoured mesh.
// ctx is checked once per row of cells; on cancellation the partial mesh is
// discarded and ctx.Err() returned.
func (dc *DualContouring) Extract(ctx context.Context, s isosurface.Sampler) (*isosurface.Mesh, error) {
	if s == nil {
		return nil, errors.Wrap(isosurface.ErrInvalidInput, "nil sampler")
	}
	start := time.Now()
	cfg := &dc.cfg
	n := cfg.Size
	if err := dc.grid.Fill(ctx, s, cfg.Origin, cfg.CellSize); err != nil {
		return nil, err
	}
	clear(dc.cells)
	mb := meshBuilder{iso: cfg.IsoLevel}
	if cfg.Normals {
		mb.normal = func(p r3.Vec) r3.Vec { return isosurface.Normal(s, p, cfg.NormalStep) }
	}

	var features [3]int
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for i := 0; i < n; i++ {
				if topo, ok := dc.placeVertex(&mb, s, i, j, k); ok {
					features[topo]++
				}
			}
		}
	}

	g := dc.grid
	for k := 0; k <= n; k++ {
		for j := 0; j <= n; j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for i := 0; i <= n; i++ {
				for axis := 0; axis < 3; axis++ {
					dc.edgeQuad(&mb, g, [3]int{i, j, k}, axis)
				}
			}
		}
	}
	m := mb.take()
	cfg.Logger.Debug("dual contouring done",
		zap.Int("size", n),
		zap.Int("samples", len(g.Values)),
		zap.Int("planarCells", features[topologyPlanar]),
		zap.Int("edgeCells", features[topologyEdge]),
		zap.Int("cornerCells", features[topologyCorner]),
		zap.Int("vertices", len(m.Vertices)),
		zap.Int("triangles", len(m.Triangles)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

// placeVertex creates the vertex of cell (i,j,k) if the surface crosses it.
func (dc *DualContouring) placeVertex(mb *meshBuilder, s isosurface.Sampler, i, j, k int) (localTopology, bool) {
	cfg := &dc.cfg
	var values [8]float64
	for c, off := range mcCorners {
		values[c] = dc.grid.At(i+off[0], j+off[1], k+off[2])
	}
	edges := crossingEdges(cubeConfig(&values, cfg.IsoLevel))
	if edges == 0 {
		return 0, false
	}
	dc.q.reset()
	for e := 0; e < 12; e++ {
		if edges&(1<<e) == 0 {
			continue
		}
		c0, c1 := mcEdgeCorners[e][0], mcEdgeCorners[e][1]
		o0, o1 := mcCorners[c0], mcCorners[c1]
		p0 := dc.position(i+o0[0], j+o0[1], k+o0[2])
		p1 := dc.position(i+o1[0], j+o1[1], k+o1[2])
		p := d3.Lerp(p0, p1, edgeLerp(cfg.IsoLevel, values[c0], values[c1]))
		dc.q.add(p, isosurface.Normal(s, p, cfg.NormalStep))
	}
	v, topo := dc.q.solve()
	// Keep the vertex inside its cell so quads cannot fold over neighbours.
	lo, hi := dc.position(i, j, k), dc.position(i+1, j+1, k+1)
	v = d3.MaxElem(lo, d3.MinElem(v, hi))
	dc.cells[dc.cellIndex(i, j, k)] = mb.vertex(v) + 1
	return topo, true
}

// edgeQuad emits the quad of the lattice edge starting at lattice point l
// along axis if it is crossed by the surface and lies inside the chunk.
func (dc *DualContouring) edgeQuad(mb *meshBuilder, g *Grid, l [3]int, axis int) {
	n := dc.cfg.Size
	end := l
	end[axis]++
	if end[axis] > n {
		return
	}
	for d := 0; d < 3; d++ {
		if d != axis && (l[d] < 1 || l[d] > n-1) {
			return
		}
	}
	below0 := g.At(l[0], l[1], l[2]) < dc.cfg.IsoLevel
	below1 := g.At(end[0], end[1], end[2]) < dc.cfg.IsoLevel
	if below0 == below1 {
		return
	}
	var idx [4]uint32
	for q, off := range dcQuadCells[axis] {
		v := dc.cells[dc.cellIndex(l[0]+off[0], l[1]+off[1], l[2]+off[2])]
		if v == 0 {
			panic("bug: crossed edge next to a cell without vertex")
		}
		idx[q] = v - 1
	}
	if below0 {
		// Field rises along the axis so the surface faces its positive end.
		mb.quad(idx[0], idx[1], idx[2], idx[3])
	} else {
		mb.quad(idx[3], idx[2], idx[1], idx[0])
	}
}

func (dc *DualContouring) cellIndex(i, j, k int) int {
	n := dc.cfg.Size
	return i + n*(j+n*k)
}

// position returns the world position of lattice point (i,j,k).
func (dc *DualContouring) position(i, j, k int) r3.Vec {
	o, cs := dc.cfg.Origin, dc.cfg.CellSize
	return r3.Vec{
		X: o.X + cs*float64(i),
		Y: o.Y + cs*float64(j),
		Z: o.Z + cs*float64(k),
	}
}
