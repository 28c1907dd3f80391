package isosurface

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"dicomvolume/internal/models"
)

// ErrFieldTooSmall is returned for fields with fewer than two points on an axis.
var ErrFieldTooSmall = errors.New("field must be at least 2x2x2")

// Cube corner offsets (x, y, z). Corner 0 and corner 6 span the main diagonal.
var cubeCorners = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// Six tetrahedra around the 0-6 diagonal. Every cube uses the same split, so
// shared faces are cut along the same diagonal and the surface has no cracks.
var cubeTetrahedra = [6][4]int{
	{0, 6, 1, 2}, {0, 6, 2, 3}, {0, 6, 3, 7},
	{0, 6, 7, 4}, {0, 6, 4, 5}, {0, 6, 5, 1},
}

// corner is one grid point of the current cell
type corner struct {
	x, y, z int
	index   int
	value   float64
}

func (c corner) pos() r3.Vec {
	return r3.Vec{X: float64(c.x), Y: float64(c.y), Z: float64(c.z)}
}

// crossing is the point where the level set cuts the edge from an inside
// corner to an outside corner.
type crossing struct {
	in, out corner
	t       float64
	pos     r3.Vec
}

func (c crossing) key() [2]int {
	if c.in.index < c.out.index {
		return [2]int{c.in.index, c.out.index}
	}
	return [2]int{c.out.index, c.in.index}
}

// mesher accumulates one level surface of a field
type mesher struct {
	field *Field
	iso   float64
	mesh  *models.Mesh
	edges map[[2]int]int
}

// Extract triangulates the level set {p : field(p) == iso} with unit spacing
// on every axis. Vertices are shared between faces that cut the same grid
// edge. Normals point toward decreasing field values and Values holds the
// interpolated field value at each vertex.
func Extract(f *Field, iso float64) (*models.Mesh, error) {
	if f.Depth < 2 || f.Height < 2 || f.Width < 2 {
		return nil, fmt.Errorf("field shape (%d, %d, %d): %w", f.Depth, f.Height, f.Width, ErrFieldTooSmall)
	}
	if len(f.Data) != f.Depth*f.Height*f.Width {
		return nil, fmt.Errorf("field holds %d values, shape (%d, %d, %d) needs %d",
			len(f.Data), f.Depth, f.Height, f.Width, f.Depth*f.Height*f.Width)
	}

	m := &mesher{
		field: f,
		iso:   iso,
		mesh:  &models.Mesh{Threshold: iso},
		edges: make(map[[2]int]int),
	}

	var cell [8]corner
	for z := 0; z < f.Depth-1; z++ {
		for y := 0; y < f.Height-1; y++ {
			for x := 0; x < f.Width-1; x++ {
				for i, off := range cubeCorners {
					cx, cy, cz := x+off[0], y+off[1], z+off[2]
					idx := f.index(cx, cy, cz)
					cell[i] = corner{x: cx, y: cy, z: cz, index: idx, value: f.Data[idx]}
				}
				for _, tet := range cubeTetrahedra {
					m.tetrahedron([4]corner{cell[tet[0]], cell[tet[1]], cell[tet[2]], cell[tet[3]]})
				}
			}
		}
	}
	return m.mesh, nil
}

// tetrahedron emits the zero, one or two triangles the level set cuts from t.
func (m *mesher) tetrahedron(t [4]corner) {
	var in, out []corner
	for _, c := range t {
		if c.value > m.iso {
			in = append(in, c)
		} else {
			out = append(out, c)
		}
	}
	if len(in) == 0 || len(out) == 0 {
		return
	}

	dir := r3.Sub(centroid(out), centroid(in))

	switch len(in) {
	case 1:
		a := in[0]
		m.triangle([3]crossing{m.cross(a, out[0]), m.cross(a, out[1]), m.cross(a, out[2])}, dir)
	case 3:
		b := out[0]
		m.triangle([3]crossing{m.cross(in[0], b), m.cross(in[1], b), m.cross(in[2], b)}, dir)
	case 2:
		// The cut is a quad; walk its edges in cyclic order.
		p0 := m.cross(in[0], out[0])
		p1 := m.cross(in[0], out[1])
		p2 := m.cross(in[1], out[1])
		p3 := m.cross(in[1], out[0])
		m.triangle([3]crossing{p0, p1, p2}, dir)
		m.triangle([3]crossing{p0, p2, p3}, dir)
	}
}

func (m *mesher) cross(in, out corner) crossing {
	t := (m.iso - in.value) / (out.value - in.value)
	p := r3.Add(in.pos(), r3.Scale(t, r3.Sub(out.pos(), in.pos())))
	return crossing{in: in, out: out, t: t, pos: p}
}

// triangle appends a face wound so its geometric normal agrees with dir.
// Zero-area faces are dropped.
func (m *mesher) triangle(tri [3]crossing, dir r3.Vec) {
	n := r3.Cross(r3.Sub(tri[1].pos, tri[0].pos), r3.Sub(tri[2].pos, tri[0].pos))
	if r3.Norm(n) < 1e-12 {
		return
	}
	if r3.Dot(n, dir) < 0 {
		tri[1], tri[2] = tri[2], tri[1]
		n = r3.Scale(-1, n)
	}
	face := [3]int{m.vertex(tri[0], n), m.vertex(tri[1], n), m.vertex(tri[2], n)}
	m.mesh.Faces = append(m.mesh.Faces, face)
}

// vertex returns the index of the vertex on c's grid edge, adding it if new.
func (m *mesher) vertex(c crossing, faceNormal r3.Vec) int {
	k := c.key()
	if idx, ok := m.edges[k]; ok {
		return idx
	}

	ga := m.field.gradient(c.in.x, c.in.y, c.in.z)
	gb := m.field.gradient(c.out.x, c.out.y, c.out.z)
	g := r3.Add(ga, r3.Scale(c.t, r3.Sub(gb, ga)))

	var normal r3.Vec
	if r3.Norm(g) > 0 {
		normal = r3.Unit(r3.Scale(-1, g))
	} else {
		normal = r3.Unit(faceNormal)
	}

	idx := len(m.mesh.Vertices)
	m.mesh.Vertices = append(m.mesh.Vertices, c.pos)
	m.mesh.Normals = append(m.mesh.Normals, normal)
	m.mesh.Values = append(m.mesh.Values, c.in.value+c.t*(c.out.value-c.in.value))
	m.edges[k] = idx
	return idx
}

// gradient is the central-difference gradient at a grid point, one-sided on
// the border.
func (f *Field) gradient(x, y, z int) r3.Vec {
	return r3.Vec{
		X: difference(x, f.Width, func(i int) float64 { return f.At(i, y, z) }),
		Y: difference(y, f.Height, func(i int) float64 { return f.At(x, i, z) }),
		Z: difference(z, f.Depth, func(i int) float64 { return f.At(x, y, i) }),
	}
}

func difference(i, n int, at func(int) float64) float64 {
	lo, hi := i-1, i+1
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	if hi == lo {
		return 0
	}
	return (at(hi) - at(lo)) / float64(hi-lo)
}

func centroid(cs []corner) r3.Vec {
	var sum r3.Vec
	for _, c := range cs {
		sum = r3.Add(sum, c.pos())
	}
	return r3.Scale(1/float64(len(cs)), sum)
}
