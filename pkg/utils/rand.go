package utils

import (
	"math"
	"math/rand"
	"time"

	"github.com/golang/geo/r3"
)

// RandSource is a seeded random number generator. It is not safe for
// concurrent use; each optimizer run owns its own source.
type RandSource struct {
	seed int64
	rng  *rand.Rand
}

// NewRandSource creates a new random source with the given seed.
// A zero seed is replaced by the current time.
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Seed returns the effective seed of the source
func (r *RandSource) Seed() int64 {
	return r.seed
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	return r.rng.Float64()
}

// Intn returns a random int in [0, n)
func (r *RandSource) Intn(n int) int {
	return r.rng.Intn(n)
}

// UniformFloat64 returns a uniformly distributed random number in [min, max)
func (r *RandSource) UniformFloat64(min, max float64) float64 {
	return min + r.rng.Float64()*(max-min)
}

// BernoulliBool returns true with probability p, false otherwise
func (r *RandSource) BernoulliBool(p float64) bool {
	return r.rng.Float64() < p
}

// OtherIndex returns an index in [0, n) different from a. n must be >= 2.
func (r *RandSource) OtherIndex(a, n int) int {
	b := r.rng.Intn(n - 1)
	if b >= a {
		b++
	}
	return b
}

// UnitSphere returns a direction uniformly distributed on the unit sphere.
func (r *RandSource) UnitSphere() r3.Vector {
	z := r.UniformFloat64(-1, 1)
	phi := r.UniformFloat64(0, 2*math.Pi)
	s := math.Sqrt(math.Max(0, 1-z*z))
	return r3.Vector{X: s * math.Cos(phi), Y: s * math.Sin(phi), Z: z}
}

// Sample returns k distinct indices drawn from [0, n) in random order.
// If k >= n every index is returned.
func (r *RandSource) Sample(n, k int) []int {
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return r.rng.Perm(n)[:k]
}
