package render

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// featureCos is cos(30°). Tangent plane normals further apart than that
// mark a sharp feature.
const featureCos = 0.8660254037844387

// localTopology classifies the surface inside a cell from the spread of its
// tangent plane normals.
type localTopology uint8

const (
	topologyPlanar localTopology = iota
	topologyEdge
	topologyCorner
)

func (lt localTopology) String() string {
	switch lt {
	case topologyPlanar:
		return "planar"
	case topologyEdge:
		return "edge"
	case topologyCorner:
		return "corner"
	}
	return "unknown"
}

// qef accumulates the tangent planes of a cell and finds the point closest
// to all of them in the least squares sense.
type qef struct {
	points  []r3.Vec
	normals []r3.Vec
	mass    r3.Vec
	// count is the number of points contributing to mass. Planes with a
	// zero normal still move the mass point.
	count int
	a     []float64
	b     []float64
	svd   mat.SVD
	u, v  mat.Dense
}

func (q *qef) reset() {
	q.points = q.points[:0]
	q.normals = q.normals[:0]
	q.mass = r3.Vec{}
	q.count = 0
}

// add adds the tangent plane through p with unit normal n.
func (q *qef) add(p, n r3.Vec) {
	q.mass = r3.Add(q.mass, p)
	q.count++
	if r3.Norm2(n) == 0 {
		return
	}
	q.points = append(q.points, p)
	q.normals = append(q.normals, n)
}

// massPoint returns the mean of all added points.
func (q *qef) massPoint() r3.Vec {
	if q.count == 0 {
		panic("bug: mass point of empty qef")
	}
	return r3.Scale(1/float64(q.count), q.mass)
}

// topology returns the feature type spanned by the normals: planar when all
// normals lie within the feature angle of each other, an edge when they
// fan around a common axis and a corner otherwise.
func (q *qef) topology() localTopology {
	minCos := math.Inf(1)
	var axis r3.Vec
	for i, ni := range q.normals {
		for _, nj := range q.normals[i+1:] {
			if c := r3.Dot(ni, nj); c < minCos {
				minCos = c
				axis = r3.Cross(ni, nj)
			}
		}
	}
	if minCos > featureCos {
		return topologyPlanar
	}
	if r3.Norm2(axis) == 0 {
		// Opposing normals: a thin sheet rather than a crease.
		return topologyEdge
	}
	axis = r3.Unit(axis)
	var maxAxial float64
	for _, n := range q.normals {
		maxAxial = math.Max(maxAxial, math.Abs(r3.Dot(axis, n)))
	}
	if math.Sqrt(1-maxAxial*maxAxial) > featureCos {
		return topologyEdge
	}
	return topologyCorner
}

// solve returns the minimiser of the quadratic error of the tangent planes,
// measured from the mass point. Planar cells return the mass point; edges
// drop the least constrained direction so the vertex slides along the crease
// to the mass point.
func (q *qef) solve() (r3.Vec, localTopology) {
	mp := q.massPoint()
	if len(q.normals) < 2 {
		return mp, topologyPlanar
	}
	topo := q.topology()
	if topo == topologyPlanar {
		return mp, topo
	}
	m := len(q.normals)
	q.a = q.a[:0]
	q.b = q.b[:0]
	for i, n := range q.normals {
		q.a = append(q.a, n.X, n.Y, n.Z)
		q.b = append(q.b, r3.Dot(n, r3.Sub(q.points[i], mp)))
	}
	if m < 3 {
		// Thin SVD needs at least as many rows as columns.
		q.a = append(q.a, 0, 0, 0)
		q.b = append(q.b, 0)
		m++
	}
	if !q.svd.Factorize(mat.NewDense(m, 3, q.a), mat.SVDThin) {
		return mp, topo
	}
	values := q.svd.Values(nil)
	q.u.Reset()
	q.v.Reset()
	q.svd.UTo(&q.u)
	q.svd.VTo(&q.v)

	// Values are sorted in descending order.
	rank := len(values)
	if topo == topologyEdge {
		rank--
	}
	const rcond = 1e-6
	var x r3.Vec
	for k := 0; k < rank; k++ {
		s := values[k]
		if s <= rcond*values[0] {
			break
		}
		var utb float64
		for i := 0; i < m; i++ {
			utb += q.u.At(i, k) * q.b[i]
		}
		c := utb / s
		x = r3.Add(x, r3.Vec{X: c * q.v.At(0, k), Y: c * q.v.At(1, k), Z: c * q.v.At(2, k)})
	}
	return r3.Add(mp, x), topo
}
