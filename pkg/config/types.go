package config

import "github.com/golang/geo/r3"

// Proposal modes
const (
	ProposalClone   = "clone"    // mutate a clone, drop it on rejection
	ProposalInPlace = "in_place" // mutate the current state, revert on rejection
)

// Constraint modes
const (
	ConstraintHard = "hard" // invalid proposals are discarded before evaluation
	ConstraintSoft = "soft" // constraint penalties enter the weighted cost
)

// Convergence strategies
const (
	ConvergenceMeanDelta = "mean_delta"
	ConvergenceRange     = "range"
)

// RunConfig holds every run-scoped constant of one optimization run
type RunConfig struct {
	LogLevel    string       `yaml:"log_level"`
	Seed        int64        `yaml:"seed"`
	Room        Room         `yaml:"room"`
	Objects     ObjectLimits `yaml:"objects"`
	Lights      LightLimits  `yaml:"lights"`
	Targets     Targets      `yaml:"targets"`
	Annealing   Annealing    `yaml:"annealing"`
	Convergence Convergence  `yaml:"convergence"`
	Weights     Weights      `yaml:"weights"`
	Sampling    Sampling     `yaml:"sampling"`
	Mutation    Mutation     `yaml:"mutation"`
}

// Vec3 is a YAML-friendly [x, y, z] triple
type Vec3 [3]float64

// Vector converts the triple to an r3.Vector
func (v Vec3) Vector() r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// Room is the axis-aligned box every object and light must stay in
type Room struct {
	Center  Vec3 `yaml:"center"`
	Extents Vec3 `yaml:"extents"` // half-extents
}

// Min returns the lower corner of the room
func (r Room) Min() r3.Vector {
	return r.Center.Vector().Sub(r.Extents.Vector())
}

// Max returns the upper corner of the room
func (r Room) Max() r3.Vector {
	return r.Center.Vector().Add(r.Extents.Vector())
}

// ObjectLimits bounds the number of placed objects
type ObjectLimits struct {
	Min     int `yaml:"min"`
	Max     int `yaml:"max"`
	Initial int `yaml:"initial"`
}

// LightLimits configures light placement
type LightLimits struct {
	Count            int     `yaml:"count"`
	MinIntensity     float64 `yaml:"min_intensity"`
	MaxIntensity     float64 `yaml:"max_intensity"`
	VerticalMargin   float64 `yaml:"vertical_margin"`
	IntensityFloor   float64 `yaml:"intensity_floor"`
	IntensityCeiling float64 `yaml:"intensity_ceiling"`
}

// Targets are the user difficulty levels on a 1..10 scale
type Targets struct {
	Holes     int `yaml:"holes"`
	Lighting  int `yaml:"lighting"`
	Occlusion int `yaml:"occlusion"`
}

// Annealing configures the control loop
type Annealing struct {
	InitialTemperature float64 `yaml:"initial_temperature"`
	CoolingRate        float64 `yaml:"cooling_rate"`
	MaxIterations      int     `yaml:"max_iterations"`
	ProposalMode       string  `yaml:"proposal_mode"`
	ConstraintMode     string  `yaml:"constraint_mode"`
	MaxRejections      int     `yaml:"max_rejections"` // consecutive hard rejects before giving up
}

// Convergence configures termination on a flat cost history
type Convergence struct {
	Strategy         string  `yaml:"strategy"`
	Window           int     `yaml:"window"`
	Threshold        float64 `yaml:"threshold"`
	TemperatureFloor float64 `yaml:"temperature_floor"` // 0 disables the temperature condition
}

// Weights are the cost term multipliers
type Weights struct {
	Holes        float64 `yaml:"holes"`
	Lighting     float64 `yaml:"lighting"`
	Occlusion    float64 `yaml:"occlusion"`
	Count        float64 `yaml:"count"`
	Intersection float64 `yaml:"intersection"`
	Bounds       float64 `yaml:"bounds"`
}

// Sampling configures the geometric evaluators
type Sampling struct {
	Density         float64 `yaml:"density"`     // surface samples per unit area
	MaxSamples      int     `yaml:"max_samples"` // per object
	RayCount        int     `yaml:"ray_count"`   // occlusion rays per sample
	RayRange        float64 `yaml:"ray_range"`
	OcclusionAlpha  float64 `yaml:"occlusion_alpha"`
	LightSaturation float64 `yaml:"light_saturation"`
	LightDarkness   float64 `yaml:"light_darkness"`
	HolesScale      float64 `yaml:"holes_scale"`
	SurfaceOffset   float64 `yaml:"surface_offset"`
}

// Mutation configures proposal step sizes
type Mutation struct {
	PositionNudge      float64 `yaml:"position_nudge"`
	LightNudge         float64 `yaml:"light_nudge"`
	LightVerticalNudge float64 `yaml:"light_vertical_nudge"`
	IntensityNudge     float64 `yaml:"intensity_nudge"`
}

// DefaultRunConfig returns the stock configuration
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		LogLevel: "info",
		Room: Room{
			Center:  Vec3{0, 2, 0},
			Extents: Vec3{10, 4, 10},
		},
		Objects: ObjectLimits{Min: 4, Max: 25, Initial: 6},
		Lights: LightLimits{
			Count:            2,
			MinIntensity:     0.5,
			MaxIntensity:     2,
			VerticalMargin:   0.5,
			IntensityFloor:   0.05,
			IntensityCeiling: 5,
		},
		Targets: Targets{Holes: 5, Lighting: 5, Occlusion: 5},
		Annealing: Annealing{
			InitialTemperature: 1,
			CoolingRate:        0.99,
			MaxIterations:      4000,
			ProposalMode:       ProposalClone,
			ConstraintMode:     ConstraintHard,
			MaxRejections:      1000,
		},
		Convergence: Convergence{
			Strategy:         ConvergenceMeanDelta,
			Window:           100,
			Threshold:        1e-4,
			TemperatureFloor: 1e-2,
		},
		Weights: Weights{
			Holes:        1,
			Lighting:     1,
			Occlusion:    1,
			Count:        0.2,
			Intersection: 1,
			Bounds:       0.5,
		},
		Sampling: Sampling{
			Density:         1,
			MaxSamples:      200,
			RayCount:        12,
			RayRange:        10,
			OcclusionAlpha:  0.5,
			LightSaturation: 1.5,
			LightDarkness:   0.05,
			HolesScale:      1,
			SurfaceOffset:   0.01,
		},
		Mutation: Mutation{
			PositionNudge:      1,
			LightNudge:         1,
			LightVerticalNudge: 0.5,
			IntensityNudge:     0.2,
		},
	}
}

// TargetFractions returns the targets mapped from 1..10 into [0.1, 1]
func (c *RunConfig) TargetFractions() (holes, lighting, occlusion float64) {
	return float64(c.Targets.Holes) / 10, float64(c.Targets.Lighting) / 10, float64(c.Targets.Occlusion) / 10
}

// IdealObjectCount biases higher target occlusion toward denser scenes
func (c *RunConfig) IdealObjectCount() float64 {
	_, _, o := c.TargetFractions()
	if o > 1 {
		o = 1
	}
	return float64(c.Objects.Min) + (float64(c.Objects.Max)-float64(c.Objects.Min))*o
}
