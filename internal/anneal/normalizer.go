package anneal

import (
	"math"

	"github.com/GoSim-25-26J-441/scene-synth/pkg/utils"
)

const normalizerEpsilon = 1e-6

// RunningNormalizer maps raw scores into [0, 1] using the widest range seen so far.
// The range never shrinks.
type RunningNormalizer struct {
	min      float64
	max      float64
	primed   bool
	clampRaw bool // clamp the raw fallback to [0, 1] before priming
}

// NewRunningNormalizer creates an unprimed normalizer
func NewRunningNormalizer(clampRaw bool) *RunningNormalizer {
	return &RunningNormalizer{clampRaw: clampRaw}
}

// Update widens the range to include v. NaN and infinities are ignored.
func (n *RunningNormalizer) Update(v float64) {
	if !utils.IsFinite(v) {
		return
	}
	if !n.primed {
		n.min, n.max, n.primed = v, v, true
		return
	}
	n.min = math.Min(n.min, v)
	n.max = math.Max(n.max, v)
}

// Normalize maps v into [0, 1]; before priming the raw value is returned
func (n *RunningNormalizer) Normalize(v float64) float64 {
	if !n.primed {
		if n.clampRaw {
			return utils.Clamp01(v)
		}
		return v
	}
	return utils.Clamp01((v - n.min) / math.Max(n.max-n.min, normalizerEpsilon))
}

// Range returns the observed bounds and whether any finite sample arrived
func (n *RunningNormalizer) Range() (min, max float64, primed bool) {
	return n.min, n.max, n.primed
}
