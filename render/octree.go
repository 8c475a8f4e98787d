package render

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/soypat/isosurface"
	"github.com/soypat/isosurface/internal/d3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Norm selects the distance used to measure the half diagonal of an octree
// node in the default refinement test.
type Norm int

const (
	// NormEuclidean measures the half diagonal as √3 times the half size.
	NormEuclidean Norm = iota
	// NormMax measures the half diagonal as the half size.
	NormMax
)

// Cell describes an octree node to a RefineFunc.
type Cell struct {
	Code  Morton
	Level int
	// Center is the world position of the node center.
	Center r3.Vec
	// HalfSize is half the node's side length in world units.
	HalfSize float64
	// Value is the field at Center minus the iso-level.
	Value float64
}

// RefineFunc reports whether an octree node should be subdivided. It is never
// called for nodes at the configured maximum depth.
type RefineFunc func(c Cell) bool

// maxLeafDepth is the deepest leaf level. One level of headroom is kept
// below MaxOctreeDepth so corner codes can detect overflow past the root.
const maxLeafDepth = MaxOctreeDepth - 1

// OctreeConfig configures a LinearHashedMarchingCubes extractor.
type OctreeConfig struct {
	// Origin and Size describe the root cube: Origin is its minimum corner.
	Origin r3.Vec
	Size   float64
	// MaxDepth caps subdivision. Must be in [1, 20].
	MaxDepth int
	// MinDepth is the level down to which the default refinement test
	// always subdivides. Defaults to 2.
	MinDepth int
	// Refine replaces the default refinement test when not nil.
	Refine   RefineFunc
	IsoLevel float64
	// Norm selects the half diagonal measure of the default refinement test.
	Norm    Norm
	Normals bool
	// NormalStep is the finite difference step of normals. Defaults to a
	// thousandth of the finest node size.
	NormalStep float64
	// Logger receives extraction statistics at debug level.
	Logger *zap.Logger
}

func (cfg *OctreeConfig) validate() error {
	switch {
	case cfg.MaxDepth <= 0 || cfg.MaxDepth > maxLeafDepth:
		return errors.Wrapf(isosurface.ErrInvalidInput, "max depth %d", cfg.MaxDepth)
	case cfg.MinDepth < 0:
		return errors.Wrapf(isosurface.ErrInvalidInput, "min depth %d", cfg.MinDepth)
	case !(cfg.Size > 0) || math.IsInf(cfg.Size, 0):
		return errors.Wrapf(isosurface.ErrInvalidInput, "root size %g", cfg.Size)
	case !d3.IsFinite(cfg.Origin):
		return errors.Wrapf(isosurface.ErrInvalidInput, "origin %v", cfg.Origin)
	case math.IsNaN(cfg.IsoLevel) || math.IsInf(cfg.IsoLevel, 0):
		return errors.Wrapf(isosurface.ErrInvalidInput, "iso-level %g", cfg.IsoLevel)
	case cfg.Norm != NormEuclidean && cfg.Norm != NormMax:
		return errors.Wrapf(isosurface.ErrInvalidInput, "unknown norm %d", cfg.Norm)
	case math.IsNaN(cfg.NormalStep) || math.IsInf(cfg.NormalStep, 0):
		return errors.Wrapf(isosurface.ErrInvalidInput, "normal step %g", cfg.NormalStep)
	}
	if cfg.MinDepth == 0 {
		cfg.MinDepth = 2
	}
	if cfg.NormalStep <= 0 {
		cfg.NormalStep = 1e-3 * cfg.Size / float64(uint64(1)<<cfg.MaxDepth)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return nil
}

// linearOctree is an octree stored as a hash map from Morton code to the
// node's value. Adjacent nodes are found by computing their codes.
type linearOctree struct {
	nodes  map[Morton]float64
	leaves []Morton
	origin r3.Vec
	size   float64
	// hdiag is a lookup table of node half diagonals per level.
	hdiag []float64
}

const ctxCheckInterval = 1 << 12

// buildOctree samples and subdivides nodes breadth first starting at the root.
func buildOctree(ctx context.Context, cfg *OctreeConfig, s isosurface.Sampler) (*linearOctree, error) {
	oc := &linearOctree{
		nodes:  make(map[Morton]float64),
		origin: cfg.Origin,
		size:   cfg.Size,
		hdiag:  make([]float64, cfg.MaxDepth+1),
	}
	diag := math.Sqrt(3)
	if cfg.Norm == NormMax {
		diag = 1
	}
	for l := range oc.hdiag {
		oc.hdiag[l] = diag * oc.halfSize(l)
	}
	refine := cfg.Refine
	if refine == nil {
		refine = func(c Cell) bool {
			return c.Level < cfg.MinDepth || math.Abs(c.Value) <= oc.hdiag[c.Level]
		}
	}

	todo := []Morton{rootCode}
	for level := 0; len(todo) > 0; level++ {
		var next []Morton
		for i, code := range todo {
			if i%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			c := Cell{
				Code:     code,
				Level:    level,
				Center:   oc.position(code.Center()),
				HalfSize: oc.halfSize(level),
			}
			v := s.Sample(c.Center)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Wrapf(isosurface.ErrNonFinite, "sample %g at node %#o center %v", v, code, c.Center)
			}
			c.Value = v - cfg.IsoLevel
			oc.nodes[code] = c.Value
			if level < cfg.MaxDepth && refine(c) {
				for o := uint8(0); o < 8; o++ {
					next = append(next, code.Child(o))
				}
			} else {
				oc.leaves = append(oc.leaves, code)
			}
		}
		todo = next
	}
	return oc, nil
}

// position maps a point of the unit cube to world space.
func (oc *linearOctree) position(unit r3.Vec) r3.Vec {
	return r3.Add(oc.origin, r3.Scale(oc.size, unit))
}

func (oc *linearOctree) halfSize(level int) float64 {
	return 0.5 * oc.size / float64(uint64(1)<<level)
}

// primalVertices returns the interior corners of all leaves mapped to the
// deepest level of the leaves touching them.
func (oc *linearOctree) primalVertices() map[Morton]int {
	prim := make(map[Morton]int, len(oc.leaves))
	for _, leaf := range oc.leaves {
		l := leaf.Level()
		for w := uint8(0); w < 8; w++ {
			p, ok := primalVertex(leaf, l, w)
			if !ok {
				continue
			}
			if got, ok := prim[p]; !ok || got < l {
				prim[p] = l
			}
		}
	}
	return prim
}

// existing returns code or its nearest ancestor present in the octree.
func (oc *linearOctree) existing(code Morton) Morton {
	for code > rootCode {
		if _, ok := oc.nodes[code]; ok {
			return code
		}
		code = code.Parent()
	}
	panic("bug: dual node has no subdivided ancestor")
}
