package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// AABB is an axis-aligned bounding box
type AABB struct {
	Min r3.Vector
	Max r3.Vector
}

// NewAABB returns the smallest box enclosing the points
func NewAABB(points ...r3.Vector) AABB {
	if len(points) == 0 {
		return AABB{}
	}
	box := AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		box.Min = r3.Vector{X: math.Min(box.Min.X, p.X), Y: math.Min(box.Min.Y, p.Y), Z: math.Min(box.Min.Z, p.Z)}
		box.Max = r3.Vector{X: math.Max(box.Max.X, p.X), Y: math.Max(box.Max.Y, p.Y), Z: math.Max(box.Max.Z, p.Z)}
	}
	return box
}

// NewAABBFromCenter builds a box from its center and half-extents
func NewAABBFromCenter(center, halfExtents r3.Vector) AABB {
	return AABB{Min: center.Sub(halfExtents), Max: center.Add(halfExtents)}
}

// Center returns the box midpoint
func (a AABB) Center() r3.Vector {
	return a.Min.Add(a.Max).Mul(0.5)
}

// Size returns the full edge lengths
func (a AABB) Size() r3.Vector {
	return a.Max.Sub(a.Min)
}

// HalfDiagonal is the radius of the sphere through the box corners
func (a AABB) HalfDiagonal() float64 {
	return a.Size().Norm() * 0.5
}

// Intersects reports whether the boxes overlap on every axis. Boxes that only
// share a face do not intersect; a flat box lying within the other's extent does.
func (a AABB) Intersects(b AABB) bool {
	return overlapAxis(a.Min.X, a.Max.X, b.Min.X, b.Max.X) &&
		overlapAxis(a.Min.Y, a.Max.Y, b.Min.Y, b.Max.Y) &&
		overlapAxis(a.Min.Z, a.Max.Z, b.Min.Z, b.Max.Z)
}

// Touches is Intersects with closed intervals, so degenerate boxes on a face still count
func (a AABB) Touches(b AABB) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y &&
		a.Min.Z <= b.Max.Z && b.Min.Z <= a.Max.Z
}

// ContainsPoint reports whether p lies inside or on the box
func (a AABB) ContainsPoint(p r3.Vector) bool {
	return p.X >= a.Min.X && p.X <= a.Max.X &&
		p.Y >= a.Min.Y && p.Y <= a.Max.Y &&
		p.Z >= a.Min.Z && p.Z <= a.Max.Z
}

// ContainsBox reports whether b lies fully inside a
func (a AABB) ContainsBox(b AABB) bool {
	return a.ContainsPoint(b.Min) && a.ContainsPoint(b.Max)
}

// Overlap is the summed half-diagonals minus the center distance
func (a AABB) Overlap(b AABB) float64 {
	return a.HalfDiagonal() + b.HalfDiagonal() - a.Center().Distance(b.Center())
}

// DistanceSquaredTo returns the squared distance from p to the box, 0 when inside
func (a AABB) DistanceSquaredTo(p r3.Vector) float64 {
	d := r3.Vector{
		X: axisGap(p.X, a.Min.X, a.Max.X),
		Y: axisGap(p.Y, a.Min.Y, a.Max.Y),
		Z: axisGap(p.Z, a.Min.Z, a.Max.Z),
	}
	return d.Norm2()
}

// OutsideDistanceSquared returns the squared distance b sticks out of a, 0 when contained
func (a AABB) OutsideDistanceSquared(b AABB) float64 {
	d := r3.Vector{
		X: math.Max(0, a.Min.X-b.Min.X) + math.Max(0, b.Max.X-a.Max.X),
		Y: math.Max(0, a.Min.Y-b.Min.Y) + math.Max(0, b.Max.Y-a.Max.Y),
		Z: math.Max(0, a.Min.Z-b.Min.Z) + math.Max(0, b.Max.Z-a.Max.Z),
	}
	return d.Norm2()
}

// ClampPoint moves p to the nearest point inside the box
func (a AABB) ClampPoint(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: math.Max(a.Min.X, math.Min(a.Max.X, p.X)),
		Y: math.Max(a.Min.Y, math.Min(a.Max.Y, p.Y)),
		Z: math.Max(a.Min.Z, math.Min(a.Max.Z, p.Z)),
	}
}

// Corners returns the eight box corners
func (a AABB) Corners() [8]r3.Vector {
	return [8]r3.Vector{
		{X: a.Min.X, Y: a.Min.Y, Z: a.Min.Z},
		{X: a.Max.X, Y: a.Min.Y, Z: a.Min.Z},
		{X: a.Min.X, Y: a.Max.Y, Z: a.Min.Z},
		{X: a.Max.X, Y: a.Max.Y, Z: a.Min.Z},
		{X: a.Min.X, Y: a.Min.Y, Z: a.Max.Z},
		{X: a.Max.X, Y: a.Min.Y, Z: a.Max.Z},
		{X: a.Min.X, Y: a.Max.Y, Z: a.Max.Z},
		{X: a.Max.X, Y: a.Max.Y, Z: a.Max.Z},
	}
}

// Transform returns the world box enclosing the eight transformed corners
func (a AABB) Transform(t Transform) AABB {
	corners := a.Corners()
	for i := range corners {
		corners[i] = t.Point(corners[i])
	}
	return NewAABB(corners[:]...)
}

// RayHit runs the slab test and returns the entry distance along dir.
// invDir holds 1/dir per axis; infinities are fine for axis-parallel rays.
func (a AABB) RayHit(origin, invDir r3.Vector, maxDist float64) (float64, bool) {
	tmin, tmax := 0.0, maxDist
	for axis := 0; axis < 3; axis++ {
		o, inv := component(origin, axis), component(invDir, axis)
		lo, hi := component(a.Min, axis), component(a.Max, axis)
		t1 := (lo - o) * inv
		t2 := (hi - o) * inv
		if math.IsNaN(t1) || math.IsNaN(t2) {
			// ray lies in the slab plane
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

func overlapAxis(a0, a1, b0, b1 float64) bool {
	if a0 < b1 && b0 < a1 {
		return true
	}
	if a0 == a1 || b0 == b1 {
		return a0 <= b1 && b0 <= a1
	}
	return false
}

func axisGap(v, lo, hi float64) float64 {
	if v < lo {
		return lo - v
	}
	if v > hi {
		return v - hi
	}
	return 0
}

func component(v r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
