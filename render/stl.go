package render

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/soypat/isosurface"
	"gonum.org/v1/gonum/spatial/r3"
)

// CreateSTL writes the triangles of m to a binary STL file at path.
// Degenerate triangles are omitted since their facet normal is undefined.
func CreateSTL(path string, m *isosurface.Mesh) error {
	if m.Len() == 0 {
		return errors.New("empty mesh")
	}
	return createSTL(path, NewMeshReader(m))
}

// WriteSTL writes the triangles of m to w in binary STL format, omitting
// degenerate triangles like CreateSTL.
func WriteSTL(w io.Writer, m *isosurface.Mesh) error {
	if m.Len() == 0 {
		return errors.New("empty mesh")
	}
	var header stlHeader
	for i := 0; i < m.Len(); i++ {
		triangle := Triangle3{V: m.Triangle3(i)}
		if !triangle.Degenerate(0) {
			header.Count++
		}
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return errors.Wrap(err, "writing STL header")
	}
	var b [stlTriangleSize]byte
	for i := 0; i < m.Len(); i++ {
		triangle := Triangle3{V: m.Triangle3(i)}
		if triangle.Degenerate(0) {
			continue
		}
		stlFromTriangle3(&triangle).put(b[:])
		if _, err := w.Write(b[:]); err != nil {
			return errors.Wrapf(err, "writing STL triangle %d", i)
		}
	}
	return nil
}

// ReadSTL reads the triangles of a binary STL stream. Facet normals are
// checked to be finite but are otherwise ignored; vertex order carries the
// orientation.
func ReadSTL(r io.Reader) ([]Triangle3, error) {
	var header stlHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "STL header read failed")
	}
	if header.Count == 0 {
		return nil, errors.New("STL header indicates 0 triangles present")
	}
	var (
		buf [stlTriangleSize]byte
		d   stlTriangle
	)
	output := make([]Triangle3, 0, min(header.Count, trianglesInBuffer))
	for i := 0; i < int(header.Count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, errors.Wrapf(err, "%d/%d STL triangles read", i, header.Count)
		}
		d.get(buf[:])
		if err := d.validate(); err != nil {
			return nil, errors.Wrapf(err, "STL triangle %d", i)
		}
		output = append(output, d.toTriangle3())
	}
	return output, nil
}

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

const (
	trianglesInBuffer = 1 << 10
	stlTriangleSize   = 50
)

type stlReader struct {
	r   Renderer
	buf [trianglesInBuffer]Triangle3
}

// Read fills b with whole STL triangles, skipping degenerate ones.
func (w *stlReader) Read(b []byte) (int, error) {
	ntMax := min(len(b)/stlTriangleSize, len(w.buf))
	if ntMax == 0 {
		return 0, errors.New("stlReader requires at least 50 bytes to write a single triangle")
	}
	var (
		err error
		it  int // Number of triangles written to byte buffer
		nt  int
	)
	for it < ntMax && err == nil {
		nt, err = w.r.ReadTriangles(w.buf[:ntMax-it])
		if nt > ntMax-it {
			panic("bug: ReadTriangles read more triangles than available in buffer")
		}
		for i := range w.buf[:nt] {
			if w.buf[i].Degenerate(0) {
				continue
			}
			stlFromTriangle3(&w.buf[i]).put(b[it*stlTriangleSize:])
			it++
		}
	}
	return it * stlTriangleSize, err
}

func createSTL(path string, r Renderer) error {
	const sizeOfSTLHeader = 84
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	// Do not write header.
	_, err = file.Seek(sizeOfSTLHeader, 0)
	if err != nil {
		return err
	}
	rd := &stlReader{
		r: r,
	}
	n, err := io.CopyBuffer(file, rd, make([]byte, stlTriangleSize*trianglesInBuffer))
	if err != nil {
		return err
	}
	_, err = file.Seek(0, 0)
	if err != nil {
		return err
	}
	header := stlHeader{
		Count: uint32(n / stlTriangleSize),
	}
	if err = binary.Write(file, binary.LittleEndian, &header); err != nil {
		return err
	}
	return nil
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // Attribute byte count
}

func stlFromTriangle3(t *Triangle3) stlTriangle {
	var d stlTriangle
	n := t.Normal()
	d.Normal = [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
	for i, v := range [3]*[3]float32{&d.Vertex1, &d.Vertex2, &d.Vertex3} {
		*v = [3]float32{float32(t.V[i].X), float32(t.V[i].Y), float32(t.V[i].Z)}
	}
	return d
}

func (t stlTriangle) put(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to marshal stlTriangle")
	}

	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
	// no attributes supported yet.
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

func (t stlTriangle) validate() error {
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return errors.New("inf/NaN STL triangle vertex")
	}
	return nil
}

func r3From3F32(f [3]float32) r3.Vec {
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}
}

func (d stlTriangle) toTriangle3() Triangle3 {
	return Triangle3{V: [3]r3.Vec{
		r3From3F32(d.Vertex1),
		r3From3F32(d.Vertex2),
		r3From3F32(d.Vertex3),
	}}
}
