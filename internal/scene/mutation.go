package scene

import (
	"github.com/golang/geo/r3"

	"github.com/GoSim-25-26J-441/scene-synth/pkg/utils"
)

// MutationKind identifies one of the proposal moves
type MutationKind int

const (
	MutationNone MutationKind = iota
	MutationAddObject
	MutationRemoveObject
	MutationMutateObject
	MutationSwapObjects
	MutationMutateLight
)

// String returns the kind name
func (k MutationKind) String() string {
	switch k {
	case MutationAddObject:
		return "add_object"
	case MutationRemoveObject:
		return "remove_object"
	case MutationMutateObject:
		return "mutate_object"
	case MutationSwapObjects:
		return "swap_objects"
	case MutationMutateLight:
		return "mutate_light"
	default:
		return "none"
	}
}

// KindForDraw maps a uniform draw in [0, 1) onto the cumulative probability bands
func KindForDraw(r float64) MutationKind {
	switch {
	case r < 0.20:
		return MutationAddObject
	case r < 0.35:
		return MutationRemoveObject
	case r < 0.65:
		return MutationMutateObject
	case r < 0.85:
		return MutationSwapObjects
	default:
		return MutationMutateLight
	}
}

// Sub-choices of a mutate-object move
const (
	objectNudge  = "nudge"
	objectYaw    = "yaw"
	objectRetype = "retype"
)

// Mutation applies one random move to a state and can undo it exactly.
// It is single-use: Apply after a previous Apply does nothing.
type Mutation struct {
	state *State
	ev    *Evaluator
	rng   *utils.RandSource

	kind    MutationKind
	used    bool
	applied bool
	sub     string

	prevNextID   uint64
	prevScores   Scores
	prevEval     bool
	object       PlacedObject // added, removed, or pre-mutation copy
	removedIndex int
	swapA        uint64
	swapB        uint64
	lightIndex   int
	light        PlacedLight
}

// NewMutation binds a mutation to a state
func NewMutation(s *State, ev *Evaluator, rng *utils.RandSource) *Mutation {
	return &Mutation{state: s, ev: ev, rng: rng, removedIndex: -1, lightIndex: -1}
}

// Kind returns the drawn move
func (m *Mutation) Kind() MutationKind { return m.kind }

// Applied reports whether the move changed the state; skipped moves return false
func (m *Mutation) Applied() bool { return m.applied }

// Detail returns the mutate-object sub-choice, empty for other moves
func (m *Mutation) Detail() string { return m.sub }

// ApplyRandom draws a kind from the probability bands and applies it
func (m *Mutation) ApplyRandom() MutationKind {
	kind := KindForDraw(m.rng.Float64())
	m.Apply(kind)
	return kind
}

// Apply performs a specific move. Moves whose guard fails are recorded as
// skipped so Revert stays a safe no-op.
func (m *Mutation) Apply(kind MutationKind) bool {
	if m.used {
		return false
	}
	m.used = true
	m.kind = kind
	m.prevNextID = m.state.nextID
	m.prevScores, m.prevEval = m.state.scores, m.state.evaluated

	switch kind {
	case MutationAddObject:
		m.applied = m.addObject()
	case MutationRemoveObject:
		m.applied = m.removeObject()
	case MutationMutateObject:
		m.applied = m.mutateObject()
	case MutationSwapObjects:
		m.applied = m.swapObjects()
	case MutationMutateLight:
		m.applied = m.mutateLight()
	}
	if m.applied {
		m.state.invalidate()
	}
	return m.applied
}

// Revert undoes an applied move; calling it again or on a skipped move is a no-op
func (m *Mutation) Revert() {
	if !m.applied {
		return
	}
	s := m.state
	switch m.kind {
	case MutationAddObject:
		if i := s.IndexOf(m.object.ID); i >= 0 {
			s.Objects = append(s.Objects[:i], s.Objects[i+1:]...)
		}
	case MutationRemoveObject:
		s.Objects = append(s.Objects, PlacedObject{})
		copy(s.Objects[m.removedIndex+1:], s.Objects[m.removedIndex:])
		s.Objects[m.removedIndex] = m.object
	case MutationMutateObject:
		if i := s.IndexOf(m.object.ID); i >= 0 {
			s.Objects[i] = m.object
		}
	case MutationSwapObjects:
		a, b := s.IndexOf(m.swapA), s.IndexOf(m.swapB)
		if a >= 0 && b >= 0 {
			s.Objects[a], s.Objects[b] = s.Objects[b], s.Objects[a]
		}
	case MutationMutateLight:
		s.Lights[m.lightIndex] = m.light
	}
	s.nextID = m.prevNextID
	s.scores, s.evaluated = m.prevScores, m.prevEval
	m.applied = false
}

func (m *Mutation) addObject() bool {
	if len(m.state.Objects) >= m.ev.cfg.Objects.Max {
		return false
	}
	m.object = m.ev.randomObject(m.state, m.rng)
	m.state.Objects = append(m.state.Objects, m.object)
	return true
}

func (m *Mutation) removeObject() bool {
	s := m.state
	if len(s.Objects) <= m.ev.cfg.Objects.Min || len(s.Objects) == 0 {
		return false
	}
	i := m.rng.Intn(len(s.Objects))
	m.object = s.Objects[i]
	m.removedIndex = i
	s.Objects = append(s.Objects[:i], s.Objects[i+1:]...)
	return true
}

func (m *Mutation) mutateObject() bool {
	s := m.state
	if len(s.Objects) == 0 {
		return false
	}
	i := m.rng.Intn(len(s.Objects))
	m.object = s.Objects[i]
	o := s.Objects[i]
	room := m.ev.room
	nudge := m.ev.cfg.Mutation.PositionNudge

	r := m.rng.Float64()
	switch {
	case r < 0.4:
		m.sub = objectNudge
		o.Position.X = utils.ClampFloat64(o.Position.X+m.rng.UniformFloat64(-nudge, nudge), room.Min.X, room.Max.X)
		o.Position.Z = utils.ClampFloat64(o.Position.Z+m.rng.UniformFloat64(-nudge, nudge), room.Min.Z, room.Max.Z)
	case r < 0.65:
		m.sub = objectYaw
		o.Rotation = r3.Vector{Y: m.rng.UniformFloat64(0, 360)}
	default:
		m.sub = objectRetype
		o.Type = m.ev.catalog.At(m.rng.Intn(m.ev.catalog.Len())).Name
	}
	s.Objects[i] = o
	return true
}

func (m *Mutation) swapObjects() bool {
	s := m.state
	if len(s.Objects) < 2 {
		return false
	}
	a := m.rng.Intn(len(s.Objects))
	b := m.rng.OtherIndex(a, len(s.Objects))
	m.swapA, m.swapB = s.Objects[a].ID, s.Objects[b].ID
	s.Objects[a], s.Objects[b] = s.Objects[b], s.Objects[a]
	return true
}

func (m *Mutation) mutateLight() bool {
	s := m.state
	if len(s.Lights) == 0 {
		return false
	}
	i := m.rng.Intn(len(s.Lights))
	m.lightIndex = i
	m.light = s.Lights[i]

	room := m.ev.room
	cfg := m.ev.cfg
	margin := cfg.Lights.VerticalMargin
	mut := cfg.Mutation

	l := s.Lights[i]
	l.Position = r3.Vector{
		X: utils.ClampFloat64(l.Position.X+m.rng.UniformFloat64(-mut.LightNudge, mut.LightNudge), room.Min.X, room.Max.X),
		Y: utils.ClampFloat64(l.Position.Y+m.rng.UniformFloat64(-mut.LightVerticalNudge, mut.LightVerticalNudge), room.Min.Y+margin, room.Max.Y-margin),
		Z: utils.ClampFloat64(l.Position.Z+m.rng.UniformFloat64(-mut.LightNudge, mut.LightNudge), room.Min.Z, room.Max.Z),
	}
	l.Intensity = utils.ClampFloat64(l.Intensity+m.rng.UniformFloat64(-mut.IntensityNudge, mut.IntensityNudge),
		cfg.Lights.IntensityFloor, cfg.Lights.IntensityCeiling)
	s.Lights[i] = l
	return true
}
