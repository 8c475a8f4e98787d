package isosurface

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Sampler is the interface to a 3d scalar field. The surface extracted from a
// Sampler is the set of points where the field equals an iso-level.
type Sampler interface {
	// Sample returns the field value at p. Implementations must be
	// deterministic and free of side effects: extractors may call Sample
	// any number of times for the same point and from different goroutines
	// when extracting separate chunks.
	Sample(p r3.Vec) float64
}

// Gradienter is implemented by samplers that can compute their gradient
// analytically. Extractors prefer it over finite differences when
// vertex normals are requested.
type Gradienter interface {
	Gradient(p r3.Vec) r3.Vec
}

// SamplerFunc adapts an ordinary function to the Sampler interface.
type SamplerFunc func(p r3.Vec) float64

// Sample calls f(p).
func (f SamplerFunc) Sample(p r3.Vec) float64 { return f(p) }

// Gradient returns the gradient of s at p. If s implements Gradienter its
// result is returned, otherwise the gradient is estimated with central
// differences of step h.
func Gradient(s Sampler, p r3.Vec, h float64) r3.Vec {
	if g, ok := s.(Gradienter); ok {
		return g.Gradient(p)
	}
	inv := 0.5 / h
	return r3.Vec{
		X: (s.Sample(r3.Vec{X: p.X + h, Y: p.Y, Z: p.Z}) - s.Sample(r3.Vec{X: p.X - h, Y: p.Y, Z: p.Z})) * inv,
		Y: (s.Sample(r3.Vec{X: p.X, Y: p.Y + h, Z: p.Z}) - s.Sample(r3.Vec{X: p.X, Y: p.Y - h, Z: p.Z})) * inv,
		Z: (s.Sample(r3.Vec{X: p.X, Y: p.Y, Z: p.Z + h}) - s.Sample(r3.Vec{X: p.X, Y: p.Y, Z: p.Z - h})) * inv,
	}
}

// Normal returns the unit gradient of s at p. A zero gradient yields the zero vector.
func Normal(s Sampler, p r3.Vec, h float64) r3.Vec {
	g := Gradient(s, p, h)
	if r3.Norm2(g) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(g)
}
