package render

import (
	"io"

	"github.com/soypat/isosurface"
)

// RenderAll reads the full contents of a Renderer and returns the slice read.
// It does not return error on io.EOF, like the io.RenderAll implementation.
func RenderAll(r Renderer) ([]Triangle3, error) {
	var err error
	var nt int
	result := make([]Triangle3, 0, 1<<12)
	buf := make([]Triangle3, 1024)
	for {
		nt, err = r.ReadTriangles(buf)
		result = append(result, buf[:nt]...)
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

// NewMeshReader returns a Renderer streaming the triangles of m in order.
func NewMeshReader(m *isosurface.Mesh) Renderer {
	return &meshReader{m: m}
}

type meshReader struct {
	m    *isosurface.Mesh
	next int
}

func (mr *meshReader) ReadTriangles(dst []Triangle3) (n int, err error) {
	if len(dst) == 0 {
		panic("cannot write to empty triangle slice")
	}
	for n < len(dst) && mr.next < mr.m.Len() {
		dst[n] = Triangle3{V: mr.m.Triangle3(mr.next)}
		n++
		mr.next++
	}
	if mr.next == mr.m.Len() {
		return n, io.EOF
	}
	return n, nil
}
