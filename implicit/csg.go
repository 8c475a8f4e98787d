package implicit

import (
	"math"

	"github.com/pkg/errors"
	"github.com/soypat/isosurface"
	"github.com/soypat/isosurface/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// union is a union of Shapes.
type union struct {
	shapes []Shape
	bb     r3.Box
}

// Union returns the union of two or more shapes.
func Union(shapes ...Shape) (Shape, error) {
	if len(shapes) < 2 {
		return nil, errors.New("union requires at least 2 shapes")
	}
	for i, s := range shapes {
		if s == nil {
			return nil, errors.Errorf("nil shape argument (%d) to Union", i)
		}
	}
	bb := d3.Box(shapes[0].Bounds())
	for _, s := range shapes[1:] {
		bb = bb.Extend(d3.Box(s.Bounds()))
	}
	return &union{shapes: shapes, bb: r3.Box(bb)}, nil
}

func (s *union) Sample(p r3.Vec) float64 {
	d := s.shapes[0].Sample(p)
	for _, x := range s.shapes[1:] {
		d = math.Min(d, x.Sample(p))
	}
	return d
}

func (s *union) Bounds() r3.Box { return s.bb }

// difference is s0 - s1.
type difference struct {
	s0, s1 Shape
}

// Difference returns the difference of two shapes, s0 - s1.
func Difference(s0, s1 Shape) (Shape, error) {
	if s0 == nil || s1 == nil {
		return nil, errors.New("nil argument to Difference")
	}
	return &difference{s0: s0, s1: s1}, nil
}

func (s *difference) Sample(p r3.Vec) float64 {
	return math.Max(s.s0.Sample(p), -s.s1.Sample(p))
}

func (s *difference) Bounds() r3.Box { return s.s0.Bounds() }

type intersection struct {
	s0, s1 Shape
	bb     r3.Box
}

// Intersection returns the intersection of two shapes.
func Intersection(s0, s1 Shape) (Shape, error) {
	if s0 == nil || s1 == nil {
		return nil, errors.New("nil argument to Intersection")
	}
	b0, b1 := s0.Bounds(), s1.Bounds()
	return &intersection{
		s0: s0,
		s1: s1,
		bb: r3.Box{Min: d3.MaxElem(b0.Min, b1.Min), Max: d3.MinElem(b0.Max, b1.Max)},
	}, nil
}

func (s *intersection) Sample(p r3.Vec) float64 {
	return math.Max(s.s0.Sample(p), s.s1.Sample(p))
}

func (s *intersection) Bounds() r3.Box { return s.bb }

type translate struct {
	s      Shape
	offset r3.Vec
}

// translateGradient is a translate whose shape has an analytic gradient.
type translateGradient struct {
	translate
	g isosurface.Gradienter
}

// Translate moves a shape by offset. The result implements
// isosurface.Gradienter only if s does.
func Translate(s Shape, offset r3.Vec) (Shape, error) {
	if s == nil {
		return nil, errors.New("nil argument to Translate")
	}
	if !d3.IsFinite(offset) {
		return nil, errors.Errorf("translate offset must be finite, got %v", offset)
	}
	t := translate{s: s, offset: offset}
	if g, ok := s.(isosurface.Gradienter); ok {
		return &translateGradient{translate: t, g: g}, nil
	}
	return &t, nil
}

func (t *translate) Sample(p r3.Vec) float64 {
	return t.s.Sample(r3.Sub(p, t.offset))
}

func (t *translate) Bounds() r3.Box {
	return r3.Box(d3.Box(t.s.Bounds()).Translate(t.offset))
}

func (t *translateGradient) Gradient(p r3.Vec) r3.Vec {
	return t.g.Gradient(r3.Sub(p, t.offset))
}
