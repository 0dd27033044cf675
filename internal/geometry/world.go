package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// Provider answers the geometric queries the evaluators need
type Provider interface {
	// Instance returns the world-space geometry of one placed object
	Instance(owner uint64) (*Instance, bool)
	// Raycast returns the nearest hit distance within maxDist, skipping the ignored owner
	Raycast(origin, dir r3.Vector, maxDist float64, ignore uint64) (float64, bool)
}

// Instance is one object's mesh transformed into world space
type Instance struct {
	Owner     uint64
	Vertices  []r3.Vector
	Normals   []r3.Vector
	Triangles []int
	Bounds    AABB

	area     float64
	boundary float64
	sampler  *SurfaceSampler
}

// NewInstance transforms a local mesh by pose. The world box encloses the
// eight transformed corners of the local box.
func NewInstance(owner uint64, mesh *Mesh, pose Pose) *Instance {
	t := pose.Transform()
	in := &Instance{
		Owner:     owner,
		Vertices:  make([]r3.Vector, len(mesh.Vertices)),
		Normals:   make([]r3.Vector, len(mesh.Vertices)),
		Triangles: mesh.Triangles,
		Bounds:    mesh.Bounds().Transform(t),
	}
	for i, v := range mesh.Vertices {
		in.Vertices[i] = t.Point(v)
	}
	for i := range in.Normals {
		if i < len(mesh.Normals) {
			in.Normals[i] = t.Normal(mesh.Normals[i])
		}
	}
	in.sampler = NewSurfaceSampler(in.Vertices, in.Triangles)
	in.area = in.sampler.TotalArea()
	in.boundary = BoundaryEdgeLength(in.Vertices, in.Triangles)
	return in
}

// SurfaceArea returns the world-space triangle area
func (in *Instance) SurfaceArea() float64 { return in.area }

// BoundaryLength returns the world-space boundary edge length
func (in *Instance) BoundaryLength() float64 { return in.boundary }

// Sampler returns the area-weighted surface sampler
func (in *Instance) Sampler() *SurfaceSampler { return in.sampler }

// Raycast tests the ray against this instance only
func (in *Instance) Raycast(origin, dir, invDir r3.Vector, maxDist float64) (float64, bool) {
	if _, ok := in.Bounds.RayHit(origin, invDir, maxDist); !ok {
		return 0, false
	}
	best, hit := maxDist, false
	for t := 0; t+2 < len(in.Triangles); t += 3 {
		d, ok := rayTriangle(origin, dir, in.Vertices[in.Triangles[t]], in.Vertices[in.Triangles[t+1]], in.Vertices[in.Triangles[t+2]])
		if ok && d <= best {
			best, hit = d, true
		}
	}
	return best, hit
}

// MeshWorld is a flat list of instances queried by brute force after a box pre-test
type MeshWorld struct {
	instances []*Instance
	byOwner   map[uint64]*Instance
}

// NewMeshWorld builds a world from instances
func NewMeshWorld(instances ...*Instance) *MeshWorld {
	w := &MeshWorld{byOwner: make(map[uint64]*Instance, len(instances))}
	for _, in := range instances {
		w.Add(in)
	}
	return w
}

// Add inserts or replaces an instance by owner
func (w *MeshWorld) Add(in *Instance) {
	if old, ok := w.byOwner[in.Owner]; ok {
		for i, cur := range w.instances {
			if cur == old {
				w.instances[i] = in
				break
			}
		}
	} else {
		w.instances = append(w.instances, in)
	}
	w.byOwner[in.Owner] = in
}

// Instance implements Provider
func (w *MeshWorld) Instance(owner uint64) (*Instance, bool) {
	in, ok := w.byOwner[owner]
	return in, ok
}

// Instances returns all instances in insertion order
func (w *MeshWorld) Instances() []*Instance {
	return w.instances
}

// Raycast implements Provider
func (w *MeshWorld) Raycast(origin, dir r3.Vector, maxDist float64, ignore uint64) (float64, bool) {
	dir = dir.Normalize()
	if dir.Norm2() == 0 || maxDist <= 0 {
		return 0, false
	}
	invDir := r3.Vector{X: 1 / dir.X, Y: 1 / dir.Y, Z: 1 / dir.Z}

	best, hit := maxDist, false
	for _, in := range w.instances {
		if in.Owner == ignore {
			continue
		}
		if d, ok := in.Raycast(origin, dir, invDir, best); ok {
			best, hit = d, true
		}
	}
	return best, hit
}

const rayEpsilon = 1e-9

// rayTriangle is the Moller-Trumbore test, two-sided
func rayTriangle(origin, dir, a, b, c r3.Vector) (float64, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < rayEpsilon {
		return 0, false
	}
	inv := 1 / det
	s := origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t <= rayEpsilon {
		return 0, false
	}
	return t, true
}
