package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Pose places a mesh in the world. Rotation holds Euler angles in degrees,
// applied around Z, then X, then Y.
type Pose struct {
	Position r3.Vector
	Rotation r3.Vector
	Scale    r3.Vector
}

// UnitScale is the identity scale
var UnitScale = r3.Vector{X: 1, Y: 1, Z: 1}

// NewPose returns an unscaled pose with the given yaw in degrees
func NewPose(position r3.Vector, yaw float64) Pose {
	return Pose{Position: position, Rotation: r3.Vector{Y: yaw}, Scale: UnitScale}
}

// Transform precomputes the affine map of the pose
func (p Pose) Transform() Transform {
	rx := axisRotation(0, p.Rotation.X)
	ry := axisRotation(1, p.Rotation.Y)
	rz := axisRotation(2, p.Rotation.Z)

	var yx, r mat.Dense
	yx.Mul(ry, rx)
	r.Mul(&yx, rz)

	t := Transform{translation: p.Position, scale: p.Scale}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t.rot[i][j] = r.At(i, j)
		}
	}
	t.invScale = r3.Vector{X: safeInverse(p.Scale.X), Y: safeInverse(p.Scale.Y), Z: safeInverse(p.Scale.Z)}
	return t
}

// Transform maps local points and normals to world space
type Transform struct {
	rot         [3][3]float64
	translation r3.Vector
	scale       r3.Vector
	invScale    r3.Vector
}

// Point maps a local point: rotate(scale * p) + position
func (t Transform) Point(p r3.Vector) r3.Vector {
	return t.rotate(mulElem(p, t.scale)).Add(t.translation)
}

// Normal maps a local normal through the inverse-transpose and renormalizes
func (t Transform) Normal(n r3.Vector) r3.Vector {
	return t.rotate(mulElem(n, t.invScale)).Normalize()
}

func (t Transform) rotate(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: t.rot[0][0]*v.X + t.rot[0][1]*v.Y + t.rot[0][2]*v.Z,
		Y: t.rot[1][0]*v.X + t.rot[1][1]*v.Y + t.rot[1][2]*v.Z,
		Z: t.rot[2][0]*v.X + t.rot[2][1]*v.Y + t.rot[2][2]*v.Z,
	}
}

func axisRotation(axis int, degrees float64) *mat.Dense {
	s, c := math.Sincos(degrees * math.Pi / 180)
	switch axis {
	case 0:
		return mat.NewDense(3, 3, []float64{
			1, 0, 0,
			0, c, -s,
			0, s, c,
		})
	case 1:
		return mat.NewDense(3, 3, []float64{
			c, 0, s,
			0, 1, 0,
			-s, 0, c,
		})
	default:
		return mat.NewDense(3, 3, []float64{
			c, -s, 0,
			s, c, 0,
			0, 0, 1,
		})
	}
}

func mulElem(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

func safeInverse(v float64) float64 {
	if v == 0 {
		return 0
	}
	return 1 / v
}
