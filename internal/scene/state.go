// Package scene holds the optimizable scene layout, its evaluators and its mutations.
package scene

import (
	"github.com/golang/geo/r3"

	"github.com/GoSim-25-26J-441/scene-synth/internal/geometry"
)

// PlacedObject is one catalog type instantiated at a pose. ID is stable for
// the life of the object; its slice index is only a container detail.
type PlacedObject struct {
	ID       uint64
	Type     string
	Position r3.Vector
	Rotation r3.Vector // Euler degrees
	Scale    r3.Vector
}

// Pose returns the placement transform of the object
func (o PlacedObject) Pose() geometry.Pose {
	scale := o.Scale
	if scale == (r3.Vector{}) {
		scale = geometry.UnitScale
	}
	return geometry.Pose{Position: o.Position, Rotation: o.Rotation, Scale: scale}
}

// PlacedLight is a point light
type PlacedLight struct {
	Position  r3.Vector
	Intensity float64
}

// Scores caches the evaluator outputs of a state
type Scores struct {
	Holes        float64 `json:"holes"`
	Lighting     float64 `json:"lighting"`
	Occlusion    float64 `json:"occlusion"`
	Intersection float64 `json:"intersection"`
	Bounds       float64 `json:"bounds"`
	Count        float64 `json:"count"`
}

// State is one candidate scene layout
type State struct {
	Objects []PlacedObject
	Lights  []PlacedLight

	scores    Scores
	evaluated bool
	nextID    uint64
}

// NewState builds a state from explicit lists, assigning fresh IDs to objects without one
func NewState(objects []PlacedObject, lights []PlacedLight) *State {
	s := &State{
		Objects: make([]PlacedObject, 0, len(objects)),
		Lights:  append([]PlacedLight(nil), lights...),
	}
	for _, o := range objects {
		if o.ID >= s.nextID {
			s.nextID = o.ID
		}
	}
	for _, o := range objects {
		if o.ID == 0 {
			o.ID = s.allocID()
		}
		if o.Scale == (r3.Vector{}) {
			o.Scale = geometry.UnitScale
		}
		s.Objects = append(s.Objects, o)
	}
	return s
}

func (s *State) allocID() uint64 {
	s.nextID++
	return s.nextID
}

// Clone deep-copies the state including cached scores
func (s *State) Clone() *State {
	return &State{
		Objects:   append([]PlacedObject(nil), s.Objects...),
		Lights:    append([]PlacedLight(nil), s.Lights...),
		scores:    s.scores,
		evaluated: s.evaluated,
		nextID:    s.nextID,
	}
}

// Scores returns the cached evaluator outputs and whether they are current
func (s *State) Scores() (Scores, bool) {
	return s.scores, s.evaluated
}

// Evaluated reports whether the cached scores match the current layout
func (s *State) Evaluated() bool {
	return s.evaluated
}

func (s *State) invalidate() {
	s.evaluated = false
}

// IndexOf returns the slice index of an object ID, or -1
func (s *State) IndexOf(id uint64) int {
	for i, o := range s.Objects {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// Equal compares object and light lists in order
func (s *State) Equal(other *State) bool {
	if len(s.Objects) != len(other.Objects) || len(s.Lights) != len(other.Lights) {
		return false
	}
	for i := range s.Objects {
		if s.Objects[i] != other.Objects[i] {
			return false
		}
	}
	for i := range s.Lights {
		if s.Lights[i] != other.Lights[i] {
			return false
		}
	}
	return true
}
