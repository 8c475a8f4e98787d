// Package implicit implements signed distance fields of simple solids and
// their boolean combinations. Every Shape is an isosurface.Sampler whose
// surface lies at the zero iso-level, negative inside.
package implicit

import (
	"math"

	"github.com/pkg/errors"
	"github.com/soypat/isosurface"
	"github.com/soypat/isosurface/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Shape is a bounded signed distance field.
type Shape interface {
	isosurface.Sampler
	// Bounds returns the bounding box that completely contains
	// the Shape's interior.
	Bounds() r3.Box
}

var (
	_ isosurface.Gradienter = (*sphere)(nil)
	_ isosurface.Gradienter = (*plane)(nil)
	_ isosurface.Gradienter = (*translateGradient)(nil)
)

type sphere struct {
	radius float64
	bb     r3.Box
}

// Sphere returns a sphere of the given radius centered at the origin.
func Sphere(radius float64) (Shape, error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, errors.Errorf("sphere radius must be positive and finite, got %g", radius)
	}
	d := d3.Elem(radius)
	return &sphere{
		radius: radius,
		bb:     r3.Box{Min: r3.Scale(-1, d), Max: d},
	}, nil
}

// Sample returns the minimum distance to a sphere.
func (s *sphere) Sample(p r3.Vec) float64 {
	return r3.Norm(p) - s.radius
}

// Gradient of a sphere is the direction from its center.
func (s *sphere) Gradient(p r3.Vec) r3.Vec {
	if r3.Norm2(p) == 0 {
		return r3.Vec{Z: 1}
	}
	return r3.Unit(p)
}

func (s *sphere) Bounds() r3.Box { return s.bb }

type box struct {
	size  r3.Vec
	round float64
	bb    r3.Box
}

// Box returns a box of the given size centered at the origin. Edges are
// rounded with radius round > 0.
func Box(size r3.Vec, round float64) (Shape, error) {
	if d3.LTEZero(size) || !d3.IsFinite(size) {
		return nil, errors.Errorf("box size must be positive and finite, got %v", size)
	}
	if !(round >= 0) || 2*round > math.Min(size.X, math.Min(size.Y, size.Z)) {
		return nil, errors.Errorf("box rounding %g out of range for size %v", round, size)
	}
	half := r3.Scale(0.5, size)
	return &box{
		size:  r3.Sub(half, d3.Elem(round)),
		round: round,
		bb:    r3.Box{Min: r3.Scale(-1, half), Max: half},
	}, nil
}

// Sample returns the minimum distance to a box.
func (s *box) Sample(p r3.Vec) float64 {
	return sdfBox3d(p, s.size) - s.round
}

func (s *box) Bounds() r3.Box { return s.bb }

type torus struct {
	radius, tube float64
	bb           r3.Box
}

// Torus returns a torus lying in the XY plane centered at the origin. radius is
// the distance from the center to the middle of the tube.
func Torus(radius, tubeRadius float64) (Shape, error) {
	if !(tubeRadius > 0 && radius > 0) || math.IsInf(radius, 0) {
		return nil, errors.Errorf("torus radii must be positive and finite, got %g and %g", radius, tubeRadius)
	}
	if tubeRadius > radius {
		return nil, errors.Errorf("torus tube radius %g exceeds radius %g", tubeRadius, radius)
	}
	r := radius + tubeRadius
	return &torus{
		radius: radius,
		tube:   tubeRadius,
		bb:     r3.Box{Min: r3.Vec{X: -r, Y: -r, Z: -tubeRadius}, Max: r3.Vec{X: r, Y: r, Z: tubeRadius}},
	}, nil
}

func (s *torus) Sample(p r3.Vec) float64 {
	q := math.Hypot(p.X, p.Y) - s.radius
	return math.Hypot(q, p.Z) - s.tube
}

func (s *torus) Bounds() r3.Box { return s.bb }

type cylinder struct {
	height float64
	radius float64
	round  float64
	bb     r3.Box
}

// Cylinder returns a cylinder along the Z axis centered at the origin
// (rounded edges with round > 0).
func Cylinder(height, radius, round float64) (Shape, error) {
	switch {
	case math.IsNaN(height) || math.IsNaN(round) || math.IsInf(height, 0):
		return nil, errors.Errorf("cylinder dimensions must be finite, got height %g round %g", height, round)
	case !(radius > 0) || math.IsInf(radius, 0):
		return nil, errors.Errorf("cylinder radius must be positive and finite, got %g", radius)
	case round < 0:
		return nil, errors.New("cylinder round < 0")
	case round > radius:
		return nil, errors.New("cylinder round > radius")
	case height < 2*round:
		return nil, errors.New("cylinder height < 2*round")
	}
	d := r3.Vec{X: radius, Y: radius, Z: height / 2}
	return &cylinder{
		height: height/2 - round,
		radius: radius - round,
		round:  round,
		bb:     r3.Box{Min: r3.Scale(-1, d), Max: d},
	}, nil
}

func (s *cylinder) Sample(p r3.Vec) float64 {
	return sdfBox2d(math.Hypot(p.X, p.Y), p.Z, s.radius, s.height) - s.round
}

func (s *cylinder) Bounds() r3.Box { return s.bb }

type plane struct {
	point, normal r3.Vec
}

// Plane returns the half space below the plane through point with the given
// normal. The field grows in the direction of the normal. Plane is unbounded.
func Plane(point, normal r3.Vec) (Shape, error) {
	if r3.Norm2(normal) == 0 || !d3.IsFinite(normal) || !d3.IsFinite(point) {
		return nil, errors.Errorf("invalid plane point %v normal %v", point, normal)
	}
	return &plane{point: point, normal: r3.Unit(normal)}, nil
}

func (s *plane) Sample(p r3.Vec) float64 {
	return r3.Dot(r3.Sub(p, s.point), s.normal)
}

func (s *plane) Gradient(r3.Vec) r3.Vec { return s.normal }

func (s *plane) Bounds() r3.Box {
	inf := math.Inf(1)
	return r3.Box{Min: d3.Elem(-inf), Max: d3.Elem(inf)}
}

func sdfBox3d(p, s r3.Vec) float64 {
	d := r3.Sub(d3.AbsElem(p), s)
	if d.X > 0 && d.Y > 0 && d.Z > 0 {
		return r3.Norm(d)
	}
	if d.X > 0 && d.Y > 0 {
		return math.Hypot(d.X, d.Y)
	}
	if d.X > 0 && d.Z > 0 {
		return math.Hypot(d.X, d.Z)
	}
	if d.Y > 0 && d.Z > 0 {
		return math.Hypot(d.Y, d.Z)
	}
	if d.X > 0 {
		return d.X
	}
	if d.Y > 0 {
		return d.Y
	}
	if d.Z > 0 {
		return d.Z
	}
	return d3.Max(d)
}

// sdfBox2d is the distance from (x, y) to a centered rectangle of half sizes (sx, sy).
func sdfBox2d(x, y, sx, sy float64) float64 {
	dx := math.Abs(x) - sx
	dy := math.Abs(y) - sy
	if dx > 0 && dy > 0 {
		return math.Hypot(dx, dy)
	}
	return math.Max(dx, dy)
}
