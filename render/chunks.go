package render

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/soypat/isosurface"
	"github.com/soypat/isosurface/internal/d3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// ChunkConfig configures ExtractChunks.
type ChunkConfig struct {
	// Chunks is the number of chunks along x, y and z.
	Chunks [3]int
	// Size is the number of cells along each axis of a chunk.
	Size     int
	Origin   r3.Vec
	CellSize float64
	IsoLevel float64
	Normals  bool
	// NormalStep, see DenseConfig.
	NormalStep float64
	// Workers limits the number of chunks extracted concurrently.
	// Defaults to GOMAXPROCS.
	Workers int
	Logger  *zap.Logger
}

func (cfg *ChunkConfig) validate() error {
	for axis, n := range cfg.Chunks {
		if n <= 0 || cfg.Size <= 0 || n*cfg.Size >= maxLattice {
			return errors.Wrapf(isosurface.ErrInvalidInput, "%d chunks of size %d along axis %d", n, cfg.Size, axis)
		}
	}
	switch {
	case !(cfg.CellSize > 0) || math.IsInf(cfg.CellSize, 0):
		return errors.Wrapf(isosurface.ErrInvalidInput, "cell size %g", cfg.CellSize)
	case !d3.IsFinite(cfg.Origin):
		return errors.Wrapf(isosurface.ErrInvalidInput, "origin %v", cfg.Origin)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return nil
}

type chunkResult struct {
	mesh *isosurface.Mesh
	keys []edgeKey
}

// ExtractChunks extracts a lattice of dense chunks concurrently, each with its
// own extractor and cache, and stitches the results into one mesh. Vertices on
// chunk boundaries are welded by their global edge key so each appears once.
// Vertex positions are computed from global lattice coordinates, so the
// result does not depend on the number of workers.
func ExtractChunks(ctx context.Context, cfg ChunkConfig, s isosurface.Sampler) (*isosurface.Mesh, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Wrap(isosurface.ErrInvalidInput, "nil sampler")
	}
	start := time.Now()
	nx, ny, nz := cfg.Chunks[0], cfg.Chunks[1], cfg.Chunks[2]
	results := make([]chunkResult, nx*ny*nz)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for idx := range results {
		idx := idx
		base := [3]int{
			cfg.Size * (idx % nx),
			cfg.Size * (idx / nx % ny),
			cfg.Size * (idx / (nx * ny)),
		}
		g.Go(func() error {
			mc, err := NewMarchingCubes(DenseConfig{
				Size:       cfg.Size,
				Origin:     cfg.Origin,
				CellSize:   cfg.CellSize,
				IsoLevel:   cfg.IsoLevel,
				Normals:    cfg.Normals,
				NormalStep: cfg.NormalStep,
				Logger:     cfg.Logger,
			})
			if err != nil {
				return err
			}
			mc.base = base
			m, keys, err := mc.extract(gctx, s, nil, true)
			if err != nil {
				return errors.WithMessagef(err, "chunk %v", base)
			}
			results[idx] = chunkResult{mesh: m, keys: keys}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	m, welded := weldChunks(results)
	cfg.Logger.Debug("chunked extraction done",
		zap.Ints("chunks", cfg.Chunks[:]),
		zap.Int("workers", cfg.Workers),
		zap.Int("welded", welded),
		zap.Int("vertices", len(m.Vertices)),
		zap.Int("triangles", len(m.Triangles)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

// weldChunks concatenates chunk meshes in chunk order, merging vertices with
// equal edge keys. It returns the stitched mesh and the number of merged vertices.
func weldChunks(results []chunkResult) (*isosurface.Mesh, int) {
	var nv, nt int
	for _, r := range results {
		nv += len(r.mesh.Vertices)
		nt += len(r.mesh.Triangles)
	}
	out := &isosurface.Mesh{
		Vertices:  make([]r3.Vec, 0, nv),
		Triangles: make([]isosurface.Triangle, 0, nt),
	}
	index := make(map[edgeKey]uint32, nv)
	welded := 0
	for _, r := range results {
		remap := make([]uint32, len(r.mesh.Vertices))
		for vi, k := range r.keys {
			if idx, ok := index[k]; ok {
				remap[vi] = idx
				welded++
				continue
			}
			idx := uint32(len(out.Vertices))
			out.Vertices = append(out.Vertices, r.mesh.Vertices[vi])
			if len(r.mesh.Normals) != 0 {
				out.Normals = append(out.Normals, r.mesh.Normals[vi])
			}
			index[k] = idx
			remap[vi] = idx
		}
		for _, t := range r.mesh.Triangles {
			out.Triangles = append(out.Triangles, isosurface.Triangle{remap[t[0]], remap[t[1]], remap[t[2]]})
		}
	}
	return out, welded
}
