package render

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/soypat/isosurface"
	"gonum.org/v1/gonum/spatial/r3"
)

// Grid stores the field samples of an N×N×N cell chunk on its (N+1)³
// lattice points. Values is laid out x fastest, then y, then z.
type Grid struct {
	N      int
	Values []float64
}

// NewGrid allocates a zeroed grid of n cells per axis.
func NewGrid(n int) (*Grid, error) {
	if n <= 0 || n >= maxLattice {
		return nil, errors.Wrapf(isosurface.ErrInvalidInput, "grid size %d", n)
	}
	side := n + 1
	return &Grid{N: n, Values: make([]float64, side*side*side)}, nil
}

func (g *Grid) index(i, j, k int) int {
	side := g.N + 1
	return i + side*(j+side*k)
}

// At returns the sample at lattice point (i,j,k).
func (g *Grid) At(i, j, k int) float64 { return g.Values[g.index(i, j, k)] }

// Set sets the sample at lattice point (i,j,k).
func (g *Grid) Set(i, j, k int, v float64) { g.Values[g.index(i, j, k)] = v }

// layer returns the samples of lattice layer k.
func (g *Grid) layer(k int) []float64 {
	side := g.N + 1
	return g.Values[k*side*side : (k+1)*side*side]
}

// Fill samples s at every lattice point origin + cellSize*(i,j,k). Non-finite
// samples abort the fill with ErrNonFinite. ctx is checked once per row.
func (g *Grid) Fill(ctx context.Context, s isosurface.Sampler, origin r3.Vec, cellSize float64) error {
	if s == nil {
		return errors.Wrap(isosurface.ErrInvalidInput, "nil sampler")
	}
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return errors.Wrapf(isosurface.ErrInvalidInput, "cell size %g", cellSize)
	}
	side := g.N + 1
	for k := 0; k < side; k++ {
		if err := sampleLayer(ctx, g.layer(k), side, k, [3]int{}, s, origin, cellSize); err != nil {
			return err
		}
	}
	return nil
}

// Interpolator returns the trilinear interpolant of the grid samples placed
// at origin with the given cell size. Points outside the grid are clamped.
func (g *Grid) Interpolator(origin r3.Vec, cellSize float64) isosurface.Sampler {
	return gridInterpolator{g: g, origin: origin, inv: 1 / cellSize}
}

type gridInterpolator struct {
	g      *Grid
	origin r3.Vec
	inv    float64
}

func (gi gridInterpolator) Sample(p r3.Vec) float64 {
	n := gi.g.N
	l := r3.Scale(gi.inv, r3.Sub(p, gi.origin))
	i, fx := splitCoord(l.X, n)
	j, fy := splitCoord(l.Y, n)
	k, fz := splitCoord(l.Z, n)
	lerp := func(a, b, t float64) float64 { return a + t*(b-a) }
	c00 := lerp(gi.g.At(i, j, k), gi.g.At(i+1, j, k), fx)
	c10 := lerp(gi.g.At(i, j+1, k), gi.g.At(i+1, j+1, k), fx)
	c01 := lerp(gi.g.At(i, j, k+1), gi.g.At(i+1, j, k+1), fx)
	c11 := lerp(gi.g.At(i, j+1, k+1), gi.g.At(i+1, j+1, k+1), fx)
	return lerp(lerp(c00, c10, fy), lerp(c01, c11, fy), fz)
}

// splitCoord clamps a lattice coordinate to [0,n] and splits it into the
// index of the cell containing it and the fraction within that cell.
func splitCoord(x float64, n int) (int, float64) {
	x = math.Max(0, math.Min(float64(n), x))
	i := int(x)
	if i == n {
		i--
	}
	return i, x - float64(i)
}

// sampleLayer fills dst with the side×side samples of lattice layer k
// offset by base. ctx is checked once per row.
func sampleLayer(ctx context.Context, dst []float64, side, k int, base [3]int, s isosurface.Sampler, origin r3.Vec, cellSize float64) error {
	gk := base[2] + k
	z := origin.Z + cellSize*float64(gk)
	for j := 0; j < side; j++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		gj := base[1] + j
		y := origin.Y + cellSize*float64(gj)
		row := dst[j*side : (j+1)*side]
		for i := range row {
			gi := base[0] + i
			p := r3.Vec{X: origin.X + cellSize*float64(gi), Y: y, Z: z}
			v := s.Sample(p)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(isosurface.ErrNonFinite, "sample %g at lattice point (%d,%d,%d) position %v", v, gi, gj, gk, p)
			}
			row[i] = v
		}
	}
	return nil
}

// checkLayer validates stored samples of lattice layer k.
func checkLayer(layer []float64, side, k int) error {
	for idx, v := range layer {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(isosurface.ErrNonFinite, "sample %g at lattice point (%d,%d,%d)", v, idx%side, idx/side, k)
		}
	}
	return nil
}
