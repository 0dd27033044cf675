// Package geometry holds the mesh, pose and ray queries the scene evaluators consume.
package geometry

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Mesh is an indexed triangle mesh in local space
type Mesh struct {
	Vertices  []r3.Vector
	Normals   []r3.Vector // per vertex, same length as Vertices
	Triangles []int       // three vertex indices per triangle
}

// Validate checks index ranges and buffer lengths
func (m *Mesh) Validate() error {
	if m == nil {
		return fmt.Errorf("mesh is nil")
	}
	if len(m.Triangles)%3 != 0 {
		return fmt.Errorf("triangle index count %d is not a multiple of 3", len(m.Triangles))
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("normal count %d does not match vertex count %d", len(m.Normals), len(m.Vertices))
	}
	for i, idx := range m.Triangles {
		if idx < 0 || idx >= len(m.Vertices) {
			return fmt.Errorf("triangle index %d at position %d out of range [0, %d)", idx, i, len(m.Vertices))
		}
	}
	return nil
}

// TriangleCount returns the number of triangles
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles) / 3
}

// Bounds returns the local-space bounding box
func (m *Mesh) Bounds() AABB {
	return NewAABB(m.Vertices...)
}

// ComputeNormals fills Normals with area-weighted averaged face normals
func (m *Mesh) ComputeNormals() {
	normals := make([]r3.Vector, len(m.Vertices))
	for t := 0; t+2 < len(m.Triangles); t += 3 {
		i0, i1, i2 := m.Triangles[t], m.Triangles[t+1], m.Triangles[t+2]
		// unnormalized cross product weights by area
		n := m.Vertices[i1].Sub(m.Vertices[i0]).Cross(m.Vertices[i2].Sub(m.Vertices[i0]))
		normals[i0] = normals[i0].Add(n)
		normals[i1] = normals[i1].Add(n)
		normals[i2] = normals[i2].Add(n)
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	m.Normals = normals
}

// TriangleArea returns the area of triangle abc
func TriangleArea(a, b, c r3.Vector) float64 {
	return 0.5 * b.Sub(a).Cross(c.Sub(a)).Norm()
}

// TriangleNormal returns the unit face normal of abc, zero for degenerate triangles
func TriangleNormal(a, b, c r3.Vector) r3.Vector {
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}

// SurfaceArea sums triangle areas over an index list
func SurfaceArea(vertices []r3.Vector, triangles []int) float64 {
	total := 0.0
	for t := 0; t+2 < len(triangles); t += 3 {
		total += TriangleArea(vertices[triangles[t]], vertices[triangles[t+1]], vertices[triangles[t+2]])
	}
	return total
}
