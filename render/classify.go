package render

// cubeConfig returns the marching cubes case index of a cube. Bit i is set
// when corner i lies below the iso-level.
func cubeConfig(values *[8]float64, iso float64) uint8 {
	var cfg uint8
	for i, v := range values {
		if v < iso {
			cfg |= 1 << i
		}
	}
	return cfg
}

// crossingEdges returns the bitmask of cube edges whose endpoints lie on
// opposite sides of the iso-level for the given case.
func crossingEdges(cfg uint8) uint16 {
	return mcEdgeTable[cfg]
}

// caseTriangles returns the edge triples of the triangulation of a case.
// Triples from the table wind inward; callers swap the last two edges
// to emit outward facing triangles.
func caseTriangles(cfg uint8) []uint8 {
	return mcTriangleTable[cfg]
}

// edgeLerp returns the parameter along an edge at which the linear
// interpolant of v0 and v1 reaches iso. Equal endpoint values yield the
// midpoint.
func edgeLerp(iso, v0, v1 float64) float64 {
	if v0 == v1 {
		return 0.5
	}
	return (iso - v0) / (v1 - v0)
}
