package config

import (
	"fmt"
	"os"
)

// LoadRunConfig loads and parses a run configuration file
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config file %s: %w", path, err)
	}
	cfg, err := ParseRunConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate re-runs validation, for configs assembled in code
func (c *RunConfig) Validate() error {
	return validateRunConfig(c)
}

// validateRunConfig performs validation on the run configuration
func validateRunConfig(cfg *RunConfig) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	for i, e := range cfg.Room.Extents {
		if e <= 0 {
			return fmt.Errorf("room extents[%d] must be positive, got %f", i, e)
		}
	}

	if err := validateObjectLimits(cfg.Objects); err != nil {
		return fmt.Errorf("objects validation failed: %w", err)
	}
	if err := validateLights(cfg.Lights, cfg.Room); err != nil {
		return fmt.Errorf("lights validation failed: %w", err)
	}
	if err := validateTargets(cfg.Targets); err != nil {
		return fmt.Errorf("targets validation failed: %w", err)
	}
	if err := validateAnnealing(cfg.Annealing); err != nil {
		return fmt.Errorf("annealing validation failed: %w", err)
	}
	if err := validateConvergence(cfg.Convergence); err != nil {
		return fmt.Errorf("convergence validation failed: %w", err)
	}
	if err := validateWeights(cfg.Weights); err != nil {
		return fmt.Errorf("weights validation failed: %w", err)
	}
	if err := validateSampling(cfg.Sampling); err != nil {
		return fmt.Errorf("sampling validation failed: %w", err)
	}
	if err := validateMutation(cfg.Mutation); err != nil {
		return fmt.Errorf("mutation validation failed: %w", err)
	}
	return nil
}

func validateObjectLimits(o ObjectLimits) error {
	if o.Min < 1 {
		return fmt.Errorf("min must be at least 1, got %d", o.Min)
	}
	if o.Max < o.Min {
		return fmt.Errorf("max (%d) must not be below min (%d)", o.Max, o.Min)
	}
	if o.Initial < o.Min || o.Initial > o.Max {
		return fmt.Errorf("initial (%d) must be within [%d, %d]", o.Initial, o.Min, o.Max)
	}
	return nil
}

func validateLights(l LightLimits, room Room) error {
	if l.Count < 0 {
		return fmt.Errorf("count cannot be negative, got %d", l.Count)
	}
	if l.IntensityFloor <= 0 {
		return fmt.Errorf("intensity_floor must be positive, got %f", l.IntensityFloor)
	}
	if l.IntensityCeiling < l.IntensityFloor {
		return fmt.Errorf("intensity_ceiling (%f) must not be below intensity_floor (%f)", l.IntensityCeiling, l.IntensityFloor)
	}
	if l.MinIntensity < l.IntensityFloor || l.MaxIntensity > l.IntensityCeiling || l.MinIntensity > l.MaxIntensity {
		return fmt.Errorf("initial intensity range [%f, %f] must lie within [%f, %f]", l.MinIntensity, l.MaxIntensity, l.IntensityFloor, l.IntensityCeiling)
	}
	if l.VerticalMargin < 0 || 2*l.VerticalMargin >= 2*room.Extents[1] {
		return fmt.Errorf("vertical_margin %f does not fit the room height", l.VerticalMargin)
	}
	return nil
}

func validateTargets(t Targets) error {
	for name, v := range map[string]int{"holes": t.Holes, "lighting": t.Lighting, "occlusion": t.Occlusion} {
		if v < 1 || v > 10 {
			return fmt.Errorf("%s must be between 1 and 10, got %d", name, v)
		}
	}
	return nil
}

func validateAnnealing(a Annealing) error {
	if a.InitialTemperature <= 0 {
		return fmt.Errorf("initial_temperature must be positive, got %f", a.InitialTemperature)
	}
	if a.CoolingRate <= 0 || a.CoolingRate >= 1 {
		return fmt.Errorf("cooling_rate must be in (0, 1), got %f", a.CoolingRate)
	}
	if a.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", a.MaxIterations)
	}
	if a.ProposalMode != ProposalClone && a.ProposalMode != ProposalInPlace {
		return fmt.Errorf("invalid proposal_mode: %s (must be clone or in_place)", a.ProposalMode)
	}
	if a.ConstraintMode != ConstraintHard && a.ConstraintMode != ConstraintSoft {
		return fmt.Errorf("invalid constraint_mode: %s (must be hard or soft)", a.ConstraintMode)
	}
	if a.MaxRejections <= 0 {
		return fmt.Errorf("max_rejections must be positive, got %d", a.MaxRejections)
	}
	return nil
}

func validateConvergence(c Convergence) error {
	if c.Strategy != ConvergenceMeanDelta && c.Strategy != ConvergenceRange {
		return fmt.Errorf("invalid strategy: %s (must be mean_delta or range)", c.Strategy)
	}
	if c.Window < 2 {
		return fmt.Errorf("window must be at least 2, got %d", c.Window)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %f", c.Threshold)
	}
	if c.TemperatureFloor < 0 {
		return fmt.Errorf("temperature_floor cannot be negative, got %f", c.TemperatureFloor)
	}
	return nil
}

func validateWeights(w Weights) error {
	weights := map[string]float64{
		"holes":        w.Holes,
		"lighting":     w.Lighting,
		"occlusion":    w.Occlusion,
		"count":        w.Count,
		"intersection": w.Intersection,
		"bounds":       w.Bounds,
	}
	for name, v := range weights {
		if v < 0 {
			return fmt.Errorf("%s weight cannot be negative, got %f", name, v)
		}
	}
	return nil
}

func validateSampling(s Sampling) error {
	if s.Density <= 0 {
		return fmt.Errorf("density must be positive, got %f", s.Density)
	}
	if s.MaxSamples <= 0 {
		return fmt.Errorf("max_samples must be positive, got %d", s.MaxSamples)
	}
	if s.RayCount <= 0 {
		return fmt.Errorf("ray_count must be positive, got %d", s.RayCount)
	}
	if s.RayRange <= 0 {
		return fmt.Errorf("ray_range must be positive, got %f", s.RayRange)
	}
	if s.OcclusionAlpha <= 0 {
		return fmt.Errorf("occlusion_alpha must be positive, got %f", s.OcclusionAlpha)
	}
	if s.LightDarkness < 0 || s.LightSaturation <= s.LightDarkness {
		return fmt.Errorf("light thresholds must satisfy 0 <= darkness (%f) < saturation (%f)", s.LightDarkness, s.LightSaturation)
	}
	if s.HolesScale <= 0 {
		return fmt.Errorf("holes_scale must be positive, got %f", s.HolesScale)
	}
	if s.SurfaceOffset < 0 {
		return fmt.Errorf("surface_offset cannot be negative, got %f", s.SurfaceOffset)
	}
	return nil
}

func validateMutation(m Mutation) error {
	if m.PositionNudge <= 0 || m.LightNudge <= 0 || m.LightVerticalNudge < 0 || m.IntensityNudge < 0 {
		return fmt.Errorf("nudge sizes must be positive (position %f, light %f, vertical %f, intensity %f)",
			m.PositionNudge, m.LightNudge, m.LightVerticalNudge, m.IntensityNudge)
	}
	return nil
}
