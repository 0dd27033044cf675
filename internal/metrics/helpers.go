package metrics

import (
	"time"

	"github.com/GoSim-25-26J-441/scene-synth/internal/anneal"
)

// Series names recorded for every committed iteration
const (
	MetricCost         = "cost"
	MetricProposalCost = "proposal_cost"
	MetricTemperature  = "temperature"
	MetricAcceptProb   = "accept_prob"
	MetricAccepted     = "accepted"
	MetricObjects      = "objects"
	MetricHoles        = "holes_normalized"
	MetricLighting     = "lighting_normalized"
	MetricOcclusion    = "occlusion_normalized"
	MetricRejections   = "hard_rejections"
)

// Observe records one optimizer step
func (c *Collector) Observe(res anneal.StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it := res.Iteration
	c.iterations++
	c.hardRejections += res.Rejections
	accepted := 0.0
	if res.Accepted {
		c.accepted++
		accepted = 1
	}
	c.recordUnsafe(MetricCost, it, res.CurrentCost)
	c.recordUnsafe(MetricProposalCost, it, res.ProposalCost)
	c.recordUnsafe(MetricTemperature, it, res.Temperature)
	c.recordUnsafe(MetricAcceptProb, it, res.AcceptProb)
	c.recordUnsafe(MetricAccepted, it, accepted)
	c.recordUnsafe(MetricObjects, it, float64(res.Objects))
	c.recordUnsafe(MetricHoles, it, res.Normalized.Holes)
	c.recordUnsafe(MetricLighting, it, res.Normalized.Lighting)
	c.recordUnsafe(MetricOcclusion, it, res.Normalized.Occlusion)
	c.recordUnsafe(MetricRejections, it, float64(res.Rejections))
	if res.Status != anneal.StatusRunning.String() {
		c.endTime = time.Now()
	}
}

// Finish stops collection and takes the rejection count from the final
// result. Rejections that end a run in a storm never reach a step hook.
func (c *Collector) Finish(res *anneal.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
	if res != nil && res.HardRejections > c.hardRejections {
		c.hardRejections = res.HardRejections
	}
}

// Hook adapts the collector to an optimizer step hook
func (c *Collector) Hook() anneal.StepHook {
	return c.Observe
}
