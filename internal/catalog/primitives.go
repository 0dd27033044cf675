package catalog

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/GoSim-25-26J-441/scene-synth/internal/geometry"
)

// Shapes understood by the catalog
const (
	ShapeBox     = "box"      // closed cuboid
	ShapeOpenBox = "open_box" // cuboid without its top face
	ShapePlane   = "plane"    // single floor quad
	ShapeWedge   = "wedge"    // closed triangular prism
	ShapeShelf   = "shelf"    // cuboid without its front face
	ShapeNone    = "none"     // no geometry
)

// BuildMesh creates the local mesh of a primitive. Meshes sit on y=0 and are
// centered in x and z. ShapeNone yields a nil mesh.
func BuildMesh(shape string, size r3.Vector) (*geometry.Mesh, error) {
	if shape != ShapeNone && shape != ShapePlane && (size.X <= 0 || size.Y <= 0 || size.Z <= 0) {
		return nil, fmt.Errorf("shape %s needs a positive size, got %v", shape, size)
	}

	var m *geometry.Mesh
	switch shape {
	case ShapeBox:
		m = cuboid(size, nil)
	case ShapeOpenBox:
		m = cuboid(size, map[string]bool{"top": true})
	case ShapeShelf:
		m = cuboid(size, map[string]bool{"front": true})
	case ShapeWedge:
		m = wedge(size)
	case ShapePlane:
		if size.X <= 0 || size.Z <= 0 {
			return nil, fmt.Errorf("plane needs positive x and z size, got %v", size)
		}
		m = plane(size)
	case ShapeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown shape: %s", shape)
	}

	m.ComputeNormals()
	return m, nil
}

type meshBuilder struct {
	mesh geometry.Mesh
}

// quad appends two triangles; a, b, c, d run counter-clockwise seen from outside
func (mb *meshBuilder) quad(a, b, c, d int) {
	mb.mesh.Triangles = append(mb.mesh.Triangles, a, b, c, a, c, d)
}

func (mb *meshBuilder) tri(a, b, c int) {
	mb.mesh.Triangles = append(mb.mesh.Triangles, a, b, c)
}

func cuboid(size r3.Vector, skip map[string]bool) *geometry.Mesh {
	x, y, z := size.X/2, size.Y, size.Z/2
	mb := &meshBuilder{}
	mb.mesh.Vertices = []r3.Vector{
		{X: -x, Y: 0, Z: -z}, {X: x, Y: 0, Z: -z}, {X: x, Y: y, Z: -z}, {X: -x, Y: y, Z: -z},
		{X: -x, Y: 0, Z: z}, {X: x, Y: 0, Z: z}, {X: x, Y: y, Z: z}, {X: -x, Y: y, Z: z},
	}
	faces := []struct {
		name       string
		a, b, c, d int
	}{
		{"back", 0, 3, 2, 1},
		{"front", 4, 5, 6, 7},
		{"bottom", 0, 1, 5, 4},
		{"top", 3, 7, 6, 2},
		{"left", 0, 4, 7, 3},
		{"right", 1, 2, 6, 5},
	}
	for _, f := range faces {
		if skip[f.name] {
			continue
		}
		mb.quad(f.a, f.b, f.c, f.d)
	}
	return &mb.mesh
}

func wedge(size r3.Vector) *geometry.Mesh {
	x, y, z := size.X/2, size.Y, size.Z/2
	mb := &meshBuilder{}
	// high edge along -x, sloping down to +x
	mb.mesh.Vertices = []r3.Vector{
		{X: -x, Y: 0, Z: -z}, {X: x, Y: 0, Z: -z}, {X: -x, Y: y, Z: -z},
		{X: -x, Y: 0, Z: z}, {X: x, Y: 0, Z: z}, {X: -x, Y: y, Z: z},
	}
	mb.quad(0, 1, 4, 3) // bottom
	mb.quad(0, 3, 5, 2) // back
	mb.quad(1, 2, 5, 4) // slope
	mb.tri(0, 2, 1)
	mb.tri(3, 4, 5)
	return &mb.mesh
}

func plane(size r3.Vector) *geometry.Mesh {
	x, z := size.X/2, size.Z/2
	mb := &meshBuilder{}
	mb.mesh.Vertices = []r3.Vector{
		{X: -x, Z: -z}, {X: x, Z: -z}, {X: x, Z: z}, {X: -x, Z: z},
	}
	mb.quad(0, 3, 2, 1)
	return &mb.mesh
}
