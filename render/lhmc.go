package render

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/soypat/isosurface"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// LinearHashedMarchingCubes extracts meshes from an adaptively refined
// octree whose nodes live in a hash map keyed by Morton code. Surfaces are
// polygonized on the dual grid of the leaves: every interior leaf corner
// gathers the (possibly coarser) nodes around it into a dual cube. Edges
// are identified by the node pair they join so a vertex between nodes of
// different depth is shared by all dual cubes touching it.
type LinearHashedMarchingCubes struct {
	cfg OctreeConfig
}

// NewLinearHashedMarchingCubes returns an octree extractor configured by cfg.
func NewLinearHashedMarchingCubes(cfg OctreeConfig) (*LinearHashedMarchingCubes, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &LinearHashedMarchingCubes{cfg: cfg}, nil
}

// ExtractLinearHashed extracts the iso surface of s within the root cube of
// side size and minimum corner origin, subdividing at most maxDepth times.
// A nil refine selects the default refinement test.
func ExtractLinearHashed(ctx context.Context, origin r3.Vec, size float64, maxDepth int, refine RefineFunc, s isosurface.Sampler, iso float64) (*isosurface.Mesh, error) {
	lh, err := NewLinearHashedMarchingCubes(OctreeConfig{
		Origin:   origin,
		Size:     size,
		MaxDepth: maxDepth,
		Refine:   refine,
		IsoLevel: iso,
	})
	if err != nil {
		return nil, err
	}
	return lh.Extract(ctx, s)
}

// Extract builds the octree of s and returns its mesh. Nodes are visited in
// breadth first order during the build and dual cubes in ascending Morton
// order, so the output is deterministic.
func (lh *LinearHashedMarchingCubes) Extract(ctx context.Context, s isosurface.Sampler) (*isosurface.Mesh, error) {
	if s == nil {
		return nil, errors.Wrap(isosurface.ErrInvalidInput, "nil sampler")
	}
	start := time.Now()
	cfg := &lh.cfg
	oc, err := buildOctree(ctx, cfg, s)
	if err != nil {
		return nil, err
	}
	prim := oc.primalVertices()
	codes := make([]Morton, 0, len(prim))
	for p := range prim {
		codes = append(codes, p)
	}
	slices.Sort(codes)

	mb := meshBuilder{cache: make(hashCache), iso: 0}
	if cfg.Normals {
		mb.normal = func(p r3.Vec) r3.Vec { return isosurface.Normal(s, p, cfg.NormalStep) }
	}
	for i, p := range codes {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		oc.marchDual(&mb, p, prim[p])
	}
	m := mb.take()
	cfg.Logger.Debug("linear hashed extraction done",
		zap.Int("maxDepth", cfg.MaxDepth),
		zap.Int("nodes", len(oc.nodes)),
		zap.Int("leaves", len(oc.leaves)),
		zap.Int("dualCubes", len(codes)),
		zap.Int("vertices", len(m.Vertices)),
		zap.Int("triangles", len(m.Triangles)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

// marchDual polygonizes the dual cube around primal vertex p, where level is
// the deepest level of the leaves sharing p.
func (oc *linearOctree) marchDual(mb *meshBuilder, p Morton, level int) {
	var (
		nodes  [8]Morton
		values [8]float64
	)
	for c, off := range mcCorners {
		// Dual cube corner c is the node on the opposite side of p.
		w := uint8(7 ^ (off[0] | off[1]<<1 | off[2]<<2))
		nodes[c] = oc.existing(dualNode(p, level, w))
		values[c] = oc.nodes[nodes[c]]
	}
	cfg := cubeConfig(&values, 0)
	edges := crossingEdges(cfg)
	if edges == 0 {
		return
	}
	var verts [12]uint32
	for e := 0; e < 12; e++ {
		if edges&(1<<e) == 0 {
			continue
		}
		c0, c1 := mcEdgeCorners[e][0], mcEdgeCorners[e][1]
		n0, n1 := nodes[c0], nodes[c1]
		if n0 == n1 {
			panic("bug: crossing edge joins a node with itself")
		}
		// Keep interpolation direction independent of which dual cube
		// resolves the edge first.
		v0, v1 := values[c0], values[c1]
		if n0 > n1 {
			n0, n1 = n1, n0
			v0, v1 = v1, v0
		}
		verts[e] = mb.edgeVertex(nodeEdgeKey(n0, n1),
			oc.position(n0.Center()), oc.position(n1.Center()), v0, v1)
	}
	tris := caseTriangles(cfg)
	for t := 0; t+2 < len(tris); t += 3 {
		mb.triangle(verts[tris[t]], verts[tris[t+1]], verts[tris[t+2]])
	}
}
