package scene

import (
	"github.com/golang/geo/r3"

	"github.com/GoSim-25-26J-441/scene-synth/pkg/config"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/logger"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/utils"
)

const placementAttempts = 64

// NewRandom creates a random initial layout and evaluates it. In hard
// constraint mode each object is re-rolled until it collides with nothing
// placed so far, giving up after a bounded number of attempts.
func NewRandom(ev *Evaluator, rng *utils.RandSource) (*State, error) {
	cfg := ev.Config()
	s := &State{}

	for i := 0; i < cfg.Objects.Initial; i++ {
		var o PlacedObject
		for attempt := 0; attempt < placementAttempts; attempt++ {
			o = ev.randomObject(s, rng)
			if cfg.Annealing.ConstraintMode != config.ConstraintHard {
				break
			}
			ok, err := ev.fits(s, o)
			if err != nil {
				return nil, err
			}
			if ok {
				break
			}
			if attempt == placementAttempts-1 {
				logger.Warn("could not place object without collision", "type", o.Type, "attempts", placementAttempts)
			}
		}
		s.Objects = append(s.Objects, o)
	}

	for i := 0; i < cfg.Lights.Count; i++ {
		s.Lights = append(s.Lights, ev.randomLight(rng))
	}

	if err := ev.Evaluate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// randomObject draws a type, a floor position and a yaw, allocating a fresh ID from s
func (ev *Evaluator) randomObject(s *State, rng *utils.RandSource) PlacedObject {
	room := ev.room
	typ := ev.catalog.At(rng.Intn(ev.catalog.Len()))
	return PlacedObject{
		ID:   s.allocID(),
		Type: typ.Name,
		Position: r3.Vector{
			X: rng.UniformFloat64(room.Min.X, room.Max.X),
			Y: room.Min.Y,
			Z: rng.UniformFloat64(room.Min.Z, room.Max.Z),
		},
		Rotation: r3.Vector{Y: rng.UniformFloat64(0, 360)},
		Scale:    r3.Vector{X: 1, Y: 1, Z: 1},
	}
}

func (ev *Evaluator) randomLight(rng *utils.RandSource) PlacedLight {
	room := ev.room
	lights := ev.cfg.Lights
	return PlacedLight{
		Position: r3.Vector{
			X: rng.UniformFloat64(room.Min.X, room.Max.X),
			Y: rng.UniformFloat64(room.Min.Y+lights.VerticalMargin, room.Max.Y-lights.VerticalMargin),
			Z: rng.UniformFloat64(room.Min.Z, room.Max.Z),
		},
		Intensity: rng.UniformFloat64(lights.MinIntensity, lights.MaxIntensity),
	}
}

// fits reports whether o can join s without colliding or leaving the room
func (ev *Evaluator) fits(s *State, o PlacedObject) (bool, error) {
	in, err := ev.instance(o)
	if err != nil {
		return false, err
	}
	if !ev.room.Touches(in.Bounds) {
		return false, nil
	}
	for _, other := range s.Objects {
		oin, err := ev.instance(other)
		if err != nil {
			return false, err
		}
		if in.Bounds.Intersects(oin.Bounds) {
			return false, nil
		}
	}
	return true, nil
}
