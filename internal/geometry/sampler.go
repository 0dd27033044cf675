package geometry

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

// Rand is the random source the sampler draws from
type Rand interface {
	Float64() float64
}

// SurfaceSample is a point on a mesh surface with its face normal
type SurfaceSample struct {
	Point  r3.Vector
	Normal r3.Vector
}

// SurfaceSampler draws area-weighted uniform points from a triangle mesh
type SurfaceSampler struct {
	vertices   []r3.Vector
	triangles  []int
	cumulative []float64 // cumulative[i] is the area of triangles 0..i
	total      float64
}

// NewSurfaceSampler builds the cumulative-area table for a world-space mesh
func NewSurfaceSampler(vertices []r3.Vector, triangles []int) *SurfaceSampler {
	n := len(triangles) / 3
	s := &SurfaceSampler{
		vertices:   vertices,
		triangles:  triangles,
		cumulative: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		a, b, c := s.triangle(i)
		s.total += TriangleArea(a, b, c)
		s.cumulative[i] = s.total
	}
	return s
}

// TotalArea returns the summed triangle area
func (s *SurfaceSampler) TotalArea() float64 {
	return s.total
}

// SampleCount returns min(ceil(density * area), maxSamples)
func (s *SurfaceSampler) SampleCount(density float64, maxSamples int) int {
	if s.total <= 0 || density <= 0 || maxSamples <= 0 {
		return 0
	}
	n := int(math.Ceil(density * s.total))
	if n > maxSamples {
		return maxSamples
	}
	return n
}

// Draw returns one uniformly distributed surface point
func (s *SurfaceSampler) Draw(rng Rand) SurfaceSample {
	r := rng.Float64() * s.total
	i := sort.Search(len(s.cumulative), func(k int) bool { return s.cumulative[k] >= r })
	if i >= len(s.cumulative) {
		i = len(s.cumulative) - 1
	}
	a, b, c := s.triangle(i)

	u, v := rng.Float64(), rng.Float64()
	if u+v > 1 {
		u, v = 1-u, 1-v
	}
	p := a.Add(b.Sub(a).Mul(u)).Add(c.Sub(a).Mul(v))
	return SurfaceSample{Point: p, Normal: TriangleNormal(a, b, c)}
}

// Sample draws n fresh points; an empty mesh yields none
func (s *SurfaceSampler) Sample(rng Rand, n int) []SurfaceSample {
	if n <= 0 || s.total <= 0 {
		return nil
	}
	out := make([]SurfaceSample, n)
	for i := range out {
		out[i] = s.Draw(rng)
	}
	return out
}

func (s *SurfaceSampler) triangle(i int) (r3.Vector, r3.Vector, r3.Vector) {
	return s.vertices[s.triangles[3*i]], s.vertices[s.triangles[3*i+1]], s.vertices[s.triangles[3*i+2]]
}
