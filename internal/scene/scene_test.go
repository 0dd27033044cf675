package scene

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/GoSim-25-26J-441/scene-synth/internal/catalog"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/config"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/utils"
)

func testConfig() *config.RunConfig {
	cfg := config.DefaultRunConfig()
	cfg.Sampling.MaxSamples = 20
	cfg.Sampling.RayCount = 4
	return cfg
}

func newTestEvaluator(t *testing.T, cfg *config.RunConfig, seed int64) (*Evaluator, *utils.RandSource) {
	t.Helper()
	rng := utils.NewRandSource(seed)
	return NewEvaluator(cfg, catalog.Default(), rng), rng
}

func floorAt(ev *Evaluator, x, z float64) r3.Vector {
	return r3.Vector{X: x, Y: ev.Room().Min.Y, Z: z}
}

func TestKindForDraw(t *testing.T) {
	tests := []struct {
		r    float64
		want MutationKind
	}{
		{0, MutationAddObject},
		{0.1999, MutationAddObject},
		{0.2, MutationRemoveObject},
		{0.3499, MutationRemoveObject},
		{0.35, MutationMutateObject},
		{0.6499, MutationMutateObject},
		{0.65, MutationSwapObjects},
		{0.8499, MutationSwapObjects},
		{0.85, MutationMutateLight},
		{0.9999, MutationMutateLight},
	}
	for _, tt := range tests {
		if got := KindForDraw(tt.r); got != tt.want {
			t.Fatalf("KindForDraw(%f) = %s, want %s", tt.r, got, tt.want)
		}
	}
}

func TestMutationReversibility(t *testing.T) {
	kinds := []MutationKind{
		MutationAddObject,
		MutationRemoveObject,
		MutationMutateObject,
		MutationSwapObjects,
		MutationMutateLight,
	}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			for seed := int64(1); seed <= 20; seed++ {
				ev, rng := newTestEvaluator(t, testConfig(), seed)
				s, err := NewRandom(ev, rng)
				if err != nil {
					t.Fatalf("NewRandom failed: %v", err)
				}
				before := s.Clone()
				beforeScores, _ := s.Scores()

				m := NewMutation(s, ev, rng)
				if !m.Apply(kind) {
					t.Fatalf("seed %d: %s should apply on a default scene", seed, kind)
				}
				// a retype may redraw the same type
				if kind != MutationMutateObject && s.Equal(before) {
					t.Fatalf("seed %d: %s did not change the state", seed, kind)
				}
				m.Revert()
				if !s.Equal(before) {
					t.Fatalf("seed %d: %s revert mismatch\nbefore %+v\nafter  %+v", seed, kind, before.Objects, s.Objects)
				}
				if s.nextID != before.nextID {
					t.Fatalf("seed %d: id allocator not restored", seed)
				}
				if scores, ok := s.Scores(); !ok || scores != beforeScores {
					t.Fatalf("seed %d: cached scores not restored", seed)
				}
			}
		})
	}
}

func TestApplyRandomRevertLoop(t *testing.T) {
	ev, rng := newTestEvaluator(t, testConfig(), 7)
	s, err := NewRandom(ev, rng)
	if err != nil {
		t.Fatalf("NewRandom failed: %v", err)
	}
	snapshot := s.Clone()
	for i := 0; i < 500; i++ {
		m := NewMutation(s, ev, rng)
		m.ApplyRandom()
		m.Revert()
		m.Revert()
		if !s.Equal(snapshot) {
			t.Fatalf("iteration %d (%s): state drifted", i, m.Kind())
		}
	}
}

func TestMutationNoOpAtBoundaries(t *testing.T) {
	cfg := testConfig()
	cfg.Objects = config.ObjectLimits{Min: 1, Max: 2, Initial: 2}
	cfg.Lights.Count = 0
	ev, rng := newTestEvaluator(t, cfg, 3)

	full := NewState([]PlacedObject{
		{Type: "Crate", Position: floorAt(ev, -5, 0)},
		{Type: "Crate", Position: floorAt(ev, 5, 0)},
	}, nil)
	single := NewState([]PlacedObject{{Type: "Crate", Position: floorAt(ev, 0, 0)}}, nil)
	empty := NewState(nil, nil)

	tests := []struct {
		name  string
		state *State
		kind  MutationKind
	}{
		{name: "Add at max", state: full, kind: MutationAddObject},
		{name: "Remove at min", state: single, kind: MutationRemoveObject},
		{name: "Swap single", state: single, kind: MutationSwapObjects},
		{name: "Mutate empty", state: empty, kind: MutationMutateObject},
		{name: "Light without lights", state: full, kind: MutationMutateLight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.state.Clone()
			m := NewMutation(tt.state, ev, rng)
			if m.Apply(tt.kind) {
				t.Fatalf("expected %s to be skipped", tt.kind)
			}
			m.Revert()
			m.Revert()
			if !tt.state.Equal(before) {
				t.Fatalf("skipped mutation changed the state")
			}
		})
	}
}

func TestMutationSingleUse(t *testing.T) {
	ev, rng := newTestEvaluator(t, testConfig(), 5)
	s, err := NewRandom(ev, rng)
	if err != nil {
		t.Fatalf("NewRandom failed: %v", err)
	}
	m := NewMutation(s, ev, rng)
	m.Apply(MutationMutateLight)
	if m.Apply(MutationAddObject) {
		t.Fatalf("second Apply must be ignored")
	}
	if m.Kind() != MutationMutateLight {
		t.Fatalf("kind changed to %s", m.Kind())
	}
}

func TestMutateLightStaysInRange(t *testing.T) {
	cfg := testConfig()
	ev, rng := newTestEvaluator(t, cfg, 11)
	s, err := NewRandom(ev, rng)
	if err != nil {
		t.Fatalf("NewRandom failed: %v", err)
	}
	room := ev.Room()
	for i := 0; i < 300; i++ {
		NewMutation(s, ev, rng).Apply(MutationMutateLight)
		for _, l := range s.Lights {
			if l.Position.Y < room.Min.Y+cfg.Lights.VerticalMargin || l.Position.Y > room.Max.Y-cfg.Lights.VerticalMargin {
				t.Fatalf("light y %f escaped the vertical margin", l.Position.Y)
			}
			if !room.ContainsPoint(l.Position) {
				t.Fatalf("light left the room: %v", l.Position)
			}
			if l.Intensity < cfg.Lights.IntensityFloor || l.Intensity > cfg.Lights.IntensityCeiling {
				t.Fatalf("intensity %f out of range", l.Intensity)
			}
		}
	}
}

func TestMutateObjectKeepsID(t *testing.T) {
	ev, rng := newTestEvaluator(t, testConfig(), 13)
	s, err := NewRandom(ev, rng)
	if err != nil {
		t.Fatalf("NewRandom failed: %v", err)
	}
	ids := make(map[uint64]bool)
	for _, o := range s.Objects {
		ids[o.ID] = true
	}
	for i := 0; i < 100; i++ {
		NewMutation(s, ev, rng).Apply(MutationMutateObject)
	}
	for _, o := range s.Objects {
		if !ids[o.ID] {
			t.Fatalf("object id %d appeared from a mutate-object move", o.ID)
		}
		if o.Rotation.X != 0 || o.Rotation.Z != 0 {
			t.Fatalf("mutations must only change yaw, got %v", o.Rotation)
		}
	}
}

func TestCheckConstraints(t *testing.T) {
	cfg := testConfig()
	cfg.Objects = config.ObjectLimits{Min: 2, Max: 4, Initial: 2}
	ev, _ := newTestEvaluator(t, cfg, 1)
	light := []PlacedLight{{Position: r3.Vector{Y: 2}, Intensity: 1}}

	tests := []struct {
		name     string
		objects  []PlacedObject
		lights   []PlacedLight
		wantRule string
	}{
		{
			name: "Disjoint inside",
			objects: []PlacedObject{
				{Type: "Crate", Position: floorAt(ev, -3, 0)},
				{Type: "Crate", Position: floorAt(ev, 3, 0)},
			},
			lights: light,
		},
		{
			name: "Overlap by known margin",
			objects: []PlacedObject{
				{Type: "Crate", Position: floorAt(ev, 0, 0)},
				{Type: "Crate", Position: floorAt(ev, 0.75, 0)},
			},
			lights:   light,
			wantRule: RuleIntersection,
		},
		{
			name:     "Too few objects",
			objects:  []PlacedObject{{Type: "Crate", Position: floorAt(ev, 0, 0)}},
			lights:   light,
			wantRule: RuleCount,
		},
		{
			name: "Object outside room",
			objects: []PlacedObject{
				{Type: "Crate", Position: floorAt(ev, 0, 0)},
				{Type: "Crate", Position: floorAt(ev, 50, 0)},
			},
			lights:   light,
			wantRule: RuleObjectBounds,
		},
		{
			name: "Object partially outside",
			objects: []PlacedObject{
				{Type: "Crate", Position: floorAt(ev, 0, 0)},
				{Type: "Crate", Position: floorAt(ev, ev.Room().Max.X, 0)},
			},
			lights: light,
		},
		{
			name: "Light outside room",
			objects: []PlacedObject{
				{Type: "Crate", Position: floorAt(ev, -3, 0)},
				{Type: "Crate", Position: floorAt(ev, 3, 0)},
			},
			lights:   []PlacedLight{{Position: r3.Vector{Y: 100}, Intensity: 1}},
			wantRule: RuleLightBounds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ev.Check(NewState(tt.objects, tt.lights))
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if tt.wantRule == "" {
				if v != nil {
					t.Fatalf("expected pass, got %v", v)
				}
				return
			}
			if v == nil || v.Rule != tt.wantRule {
				t.Fatalf("expected %s violation, got %v", tt.wantRule, v)
			}
		})
	}
}

func TestNoGeometryIsFatal(t *testing.T) {
	cat, err := catalog.New([]catalog.TypeSpec{
		{Name: "Crate", Shape: catalog.ShapeBox, Size: [3]float64{1, 1, 1}},
		{Name: "Marker", Shape: catalog.ShapeNone},
	})
	if err != nil {
		t.Fatalf("catalog.New failed: %v", err)
	}
	cfg := testConfig()
	cfg.Objects = config.ObjectLimits{Min: 1, Max: 4, Initial: 2}
	rng := utils.NewRandSource(1)
	ev := NewEvaluator(cfg, cat, rng)
	s := NewState([]PlacedObject{
		{Type: "Crate", Position: floorAt(ev, 0, 0)},
		{Type: "marker", Position: floorAt(ev, 4, 0)},
	}, nil)

	if err := ev.Evaluate(s); !errors.Is(err, ErrNoGeometry) {
		t.Fatalf("Evaluate: expected ErrNoGeometry, got %v", err)
	}
	if s.Evaluated() {
		t.Fatalf("failed evaluation must not mark the state evaluated")
	}
	if _, err := ev.Check(s); !errors.Is(err, ErrNoGeometry) {
		t.Fatalf("Check: expected ErrNoGeometry, got %v", err)
	}

	unknown := NewState([]PlacedObject{{Type: "Spaceship"}}, nil)
	if err := ev.Evaluate(unknown); !errors.Is(err, catalog.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestHolesScore(t *testing.T) {
	ev, _ := newTestEvaluator(t, testConfig(), 1)

	closed := NewState([]PlacedObject{{Type: "Crate", Position: floorAt(ev, 0, 0)}}, nil)
	world, err := ev.World(closed)
	if err != nil {
		t.Fatalf("World failed: %v", err)
	}
	if h, _ := closed.HolesScore(world, 1); h != 0 {
		t.Fatalf("closed box should score 0 holes, got %f", h)
	}

	open := NewState([]PlacedObject{{Type: "Barrel", Position: floorAt(ev, 0, 0)}}, nil)
	world, err = ev.World(open)
	if err != nil {
		t.Fatalf("World failed: %v", err)
	}
	want := 1 - math.Exp(-3.2/4.48)
	if h, _ := open.HolesScore(world, 1); math.Abs(h-want) > 1e-9 {
		t.Fatalf("expected holes %f, got %f", want, h)
	}
}

func TestLightingScore(t *testing.T) {
	cfg := testConfig()
	ev, rng := newTestEvaluator(t, cfg, 1)
	dark := NewState([]PlacedObject{{Type: "Crate", Position: floorAt(ev, 0, 0)}}, nil)
	world, err := ev.World(dark)
	if err != nil {
		t.Fatalf("World failed: %v", err)
	}
	got, _ := dark.LightingScore(world, cfg.Sampling, rng)
	want := cfg.Sampling.LightDarkness * cfg.Sampling.LightDarkness
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("unlit scene should score darkness^2 = %f, got %f", want, got)
	}

	// a bright light facing one top corner saturates it
	blinding := NewState(dark.Objects, []PlacedLight{{Position: floorAt(ev, 0, 0).Add(r3.Vector{X: 1, Y: 1.5, Z: 1}), Intensity: 5}})
	world, _ = ev.World(blinding)
	harsh, _ := blinding.LightingScore(world, cfg.Sampling, rng)
	if harsh <= got || harsh > 1 {
		t.Fatalf("expected harsher lighting in (%f, 1], got %f", got, harsh)
	}
}

func TestOcclusionScore(t *testing.T) {
	cfg := testConfig()
	cfg.Sampling.RayCount = 16
	ev, rng := newTestEvaluator(t, cfg, 1)

	alone := NewState([]PlacedObject{{Type: "Crate", Position: floorAt(ev, 0, 0)}}, nil)
	world, _ := ev.World(alone)
	if o, _ := alone.OcclusionScore(world, cfg.Sampling, rng); o != 0 {
		t.Fatalf("a lone object cannot be occluded, got %f", o)
	}

	crowded := NewState([]PlacedObject{
		{Type: "Crate", Position: floorAt(ev, 0, 0)},
		{Type: "Table", Position: floorAt(ev, 0, 1.2)},
		{Type: "Table", Position: floorAt(ev, 0, -1.2)},
		{Type: "Shelf", Position: floorAt(ev, 1.4, 0)},
	}, nil)
	world, _ = ev.World(crowded)
	o, err := crowded.OcclusionScore(world, cfg.Sampling, rng)
	if err != nil {
		t.Fatalf("OcclusionScore failed: %v", err)
	}
	if o <= 0 || o > 1 {
		t.Fatalf("crowded scene should have occlusion in (0, 1], got %f", o)
	}
}

func TestConstraintPenalties(t *testing.T) {
	cfg := testConfig()
	cfg.Objects = config.ObjectLimits{Min: 2, Max: 4, Initial: 2}
	cfg.Targets.Occlusion = 5
	ev, _ := newTestEvaluator(t, cfg, 1)

	s := NewState([]PlacedObject{
		{Type: "Crate", Position: floorAt(ev, 0, 0)},
		{Type: "Crate", Position: floorAt(ev, 0.5, 0)},
	}, []PlacedLight{{Position: r3.Vector{Y: ev.Room().Max.Y + 2}, Intensity: 1}})
	world, err := ev.World(s)
	if err != nil {
		t.Fatalf("World failed: %v", err)
	}
	intersection, bounds, count, err := s.ConstraintPenalties(world, ev.Room(), cfg)
	if err != nil {
		t.Fatalf("ConstraintPenalties failed: %v", err)
	}
	overlap := math.Sqrt(3) - 0.5
	if math.Abs(intersection-overlap*overlap) > 1e-9 {
		t.Fatalf("expected intersection %f, got %f", overlap*overlap, intersection)
	}
	if math.Abs(bounds-4) > 1e-9 {
		t.Fatalf("expected bounds penalty 4, got %f", bounds)
	}
	// ideal = lerp(2, 4, 0.5) = 3
	if math.Abs(count-0.25) > 1e-12 {
		t.Fatalf("expected count penalty 0.25, got %f", count)
	}
}

func TestNewRandomHardMode(t *testing.T) {
	cfg := testConfig()
	for seed := int64(1); seed <= 10; seed++ {
		ev, rng := newTestEvaluator(t, cfg, seed)
		s, err := NewRandom(ev, rng)
		if err != nil {
			t.Fatalf("NewRandom failed: %v", err)
		}
		if len(s.Objects) != cfg.Objects.Initial || len(s.Lights) != cfg.Lights.Count {
			t.Fatalf("unexpected counts %d objects %d lights", len(s.Objects), len(s.Lights))
		}
		if v, err := ev.Check(s); err != nil || v != nil {
			t.Fatalf("seed %d: random layout fails constraints: %v %v", seed, v, err)
		}
		if !s.Evaluated() {
			t.Fatalf("random layout should be evaluated")
		}
		scores, _ := s.Scores()
		for name, v := range map[string]float64{"holes": scores.Holes, "lighting": scores.Lighting, "occlusion": scores.Occlusion} {
			if v < 0 || v > 1 {
				t.Fatalf("%s score %f outside [0, 1]", name, v)
			}
		}
		seen := make(map[uint64]bool)
		for _, o := range s.Objects {
			if seen[o.ID] {
				t.Fatalf("duplicate object id %d", o.ID)
			}
			seen[o.ID] = true
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	ev, rng := newTestEvaluator(t, testConfig(), 21)
	s, err := NewRandom(ev, rng)
	if err != nil {
		t.Fatalf("NewRandom failed: %v", err)
	}
	c := s.Clone()
	NewMutation(c, ev, rng).Apply(MutationMutateLight)
	NewMutation(c, ev, rng).Apply(MutationAddObject)
	if len(s.Objects) == len(c.Objects) {
		t.Fatalf("clone mutation leaked into the original")
	}
	if s.Lights[0] == c.Lights[0] && s.Lights[1] == c.Lights[1] {
		t.Fatalf("light mutation did not apply to the clone")
	}
	if c.Evaluated() || !s.Evaluated() {
		t.Fatalf("only the mutated clone should be stale")
	}
}

func TestNewStateAssignsIDs(t *testing.T) {
	s := NewState([]PlacedObject{{ID: 5, Type: "Crate"}, {Type: "Crate"}, {Type: "Rug"}}, nil)
	if s.Objects[0].ID != 5 || s.Objects[1].ID != 6 || s.Objects[2].ID != 7 {
		t.Fatalf("unexpected ids %d %d %d", s.Objects[0].ID, s.Objects[1].ID, s.Objects[2].ID)
	}
	if s.Objects[1].Scale != (r3.Vector{X: 1, Y: 1, Z: 1}) {
		t.Fatalf("missing scale should default to unit")
	}
	if s.IndexOf(7) != 2 || s.IndexOf(99) != -1 {
		t.Fatalf("IndexOf mismatch")
	}
}
