package anneal

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/scene-synth/pkg/config"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/utils"
)

// ConvergenceStrategy defines how to detect a flat cost history
type ConvergenceStrategy interface {
	// CheckConvergence inspects the cost history and the current temperature
	CheckConvergence(history []float64, temperature float64) (bool, string)
	// Name returns the name of the convergence strategy
	Name() string
}

// NewConvergenceStrategy builds the strategy named in the configuration
func NewConvergenceStrategy(cfg config.Convergence) (ConvergenceStrategy, error) {
	switch cfg.Strategy {
	case config.ConvergenceMeanDelta:
		return NewMeanDeltaStrategy(cfg), nil
	case config.ConvergenceRange:
		return NewRangeStrategy(cfg), nil
	default:
		return nil, fmt.Errorf("unknown convergence strategy: %s", cfg.Strategy)
	}
}

// MeanDeltaStrategy converges when the mean absolute step-to-step change over
// the trailing window falls below the threshold while the temperature is below
// its floor. A zero floor disables the temperature condition.
type MeanDeltaStrategy struct {
	window           int
	threshold        float64
	temperatureFloor float64
}

// NewMeanDeltaStrategy creates a mean-delta convergence strategy
func NewMeanDeltaStrategy(cfg config.Convergence) *MeanDeltaStrategy {
	return &MeanDeltaStrategy{window: cfg.Window, threshold: cfg.Threshold, temperatureFloor: cfg.TemperatureFloor}
}

func (s *MeanDeltaStrategy) Name() string {
	return config.ConvergenceMeanDelta
}

func (s *MeanDeltaStrategy) CheckConvergence(history []float64, temperature float64) (converged bool, reason string) {
	if s.window < 2 || len(history) < s.window {
		return false, ""
	}
	meanDelta := utils.MeanAbsDelta(history[len(history)-s.window:])
	if meanDelta >= s.threshold {
		return false, ""
	}
	if s.temperatureFloor > 0 && temperature >= s.temperatureFloor {
		return false, ""
	}
	return true, fmt.Sprintf("mean delta %.6g over %d iterations below %.6g (temperature %.6g)", meanDelta, s.window, s.threshold, temperature)
}

// RangeStrategy converges when (max-min)/|mean| over the trailing window falls below the threshold
type RangeStrategy struct {
	window    int
	threshold float64
}

// NewRangeStrategy creates a relative-range convergence strategy
func NewRangeStrategy(cfg config.Convergence) *RangeStrategy {
	return &RangeStrategy{window: cfg.Window, threshold: cfg.Threshold}
}

func (s *RangeStrategy) Name() string {
	return config.ConvergenceRange
}

func (s *RangeStrategy) CheckConvergence(history []float64, temperature float64) (converged bool, reason string) {
	if s.window < 2 || len(history) < s.window {
		return false, ""
	}
	recent := history[len(history)-s.window:]
	min, max := utils.MinMax(recent)
	relRange := (max - min) / (math.Abs(utils.Mean(recent)) + 1e-8)
	if relRange < s.threshold {
		return true, fmt.Sprintf("relative cost range %.6g over %d iterations below %.6g", relRange, s.window, s.threshold)
	}
	return false, ""
}
