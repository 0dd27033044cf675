package scene

import (
	"fmt"

	"github.com/GoSim-25-26J-441/scene-synth/internal/geometry"
)

// Constraint rules
const (
	RuleCount        = "count"
	RuleObjectBounds = "object_bounds"
	RuleIntersection = "intersection"
	RuleLightBounds  = "light_bounds"
)

// Violation describes the first hard constraint a state breaks
type Violation struct {
	Rule   string
	Detail string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
}

// Check runs the hard constraint filter. A nil violation means the state may
// enter the optimizer's current slot. The error is reserved for geometry failures.
func (ev *Evaluator) Check(s *State) (*Violation, error) {
	limits := ev.cfg.Objects
	if n := len(s.Objects); n < limits.Min || n > limits.Max {
		return &Violation{Rule: RuleCount, Detail: fmt.Sprintf("%d objects outside [%d, %d]", n, limits.Min, limits.Max)}, nil
	}

	boxes := make([]geometry.AABB, len(s.Objects))
	for i, o := range s.Objects {
		in, err := ev.instance(o)
		if err != nil {
			return nil, err
		}
		boxes[i] = in.Bounds
		// partial overlap with the room is tolerated
		if !ev.room.Touches(in.Bounds) {
			return &Violation{Rule: RuleObjectBounds, Detail: fmt.Sprintf("object %d (%s) at %v is outside the room", o.ID, o.Type, in.Bounds.Center())}, nil
		}
	}

	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			if boxes[i].Intersects(boxes[j]) {
				return &Violation{Rule: RuleIntersection, Detail: fmt.Sprintf("objects %d (%s) and %d (%s) collide",
					s.Objects[i].ID, s.Objects[i].Type, s.Objects[j].ID, s.Objects[j].Type)}, nil
			}
		}
	}

	for i, l := range s.Lights {
		if !ev.room.ContainsPoint(l.Position) {
			return &Violation{Rule: RuleLightBounds, Detail: fmt.Sprintf("light %d at %v is outside the room", i, l.Position)}, nil
		}
	}
	return nil, nil
}
