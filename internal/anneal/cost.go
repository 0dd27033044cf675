package anneal

import (
	"math"

	"github.com/GoSim-25-26J-441/scene-synth/internal/scene"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/config"
)

// CostTerms breaks a cost into its weighted contributions
type CostTerms struct {
	Holes        float64 `json:"holes"`
	Lighting     float64 `json:"lighting"`
	Occlusion    float64 `json:"occlusion"`
	Count        float64 `json:"count"`
	Intersection float64 `json:"intersection"`
	Bounds       float64 `json:"bounds"`
	Total        float64 `json:"total"`
}

// Normalized holds the normalized evaluator outputs a cost was computed from
type Normalized struct {
	Holes     float64 `json:"holes"`
	Lighting  float64 `json:"lighting"`
	Occlusion float64 `json:"occlusion"`
}

// CostFunction scores states against the difficulty targets. It owns the three
// running normalizers of a run.
type CostFunction struct {
	weights config.Weights

	targetHoles     float64
	targetLighting  float64
	targetOcclusion float64

	holes     *RunningNormalizer
	lighting  *RunningNormalizer
	occlusion *RunningNormalizer
}

// NewCostFunction creates the cost function of a run
func NewCostFunction(cfg *config.RunConfig) *CostFunction {
	h, l, o := cfg.TargetFractions()
	return &CostFunction{
		weights:         cfg.Weights,
		targetHoles:     h,
		targetLighting:  l,
		targetOcclusion: o,
		holes:           NewRunningNormalizer(true),
		lighting:        NewRunningNormalizer(true),
		occlusion:       NewRunningNormalizer(true),
	}
}

// Cost feeds the raw scores to the normalizers and returns the weighted cost.
// The count term in scores is already relative to the ideal count.
func (c *CostFunction) Cost(scores scene.Scores) (CostTerms, Normalized) {
	c.holes.Update(scores.Holes)
	c.lighting.Update(scores.Lighting)
	c.occlusion.Update(scores.Occlusion)

	n := Normalized{
		Holes:     c.holes.Normalize(scores.Holes),
		Lighting:  c.lighting.Normalize(scores.Lighting),
		Occlusion: c.occlusion.Normalize(scores.Occlusion),
	}

	terms := CostTerms{
		Holes:        c.weights.Holes * square(n.Holes-c.targetHoles),
		Lighting:     c.weights.Lighting * square(n.Lighting-c.targetLighting),
		Occlusion:    c.weights.Occlusion * square(n.Occlusion-c.targetOcclusion),
		Count:        c.weights.Count * scores.Count,
		Intersection: c.weights.Intersection * scores.Intersection,
		Bounds:       c.weights.Bounds * scores.Bounds,
	}
	terms.Total = terms.Holes + terms.Lighting + terms.Occlusion + terms.Count + terms.Intersection + terms.Bounds
	return terms, n
}

// Normalizers exposes the holes, lighting and occlusion normalizers
func (c *CostFunction) Normalizers() (holes, lighting, occlusion *RunningNormalizer) {
	return c.holes, c.lighting, c.occlusion
}

func square(v float64) float64 {
	return v * v
}

const temperatureEpsilon = 1e-6

// AcceptProbability is the Metropolis criterion min(1, exp(-delta / T))
func AcceptProbability(delta, temperature float64) float64 {
	if delta <= 0 {
		return 1
	}
	return math.Exp(-delta / math.Max(temperature, temperatureEpsilon))
}
