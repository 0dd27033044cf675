package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseRunConfigYAML parses a RunConfig from YAML bytes and validates it.
// Fields absent from the document keep their DefaultRunConfig values.
func ParseRunConfigYAML(data []byte) (*RunConfig, error) {
	cfg := DefaultRunConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse run config yaml: %w", err)
	}

	if err := validateRunConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}

	return cfg, nil
}

// ParseRunConfigYAMLString parses a RunConfig from a YAML string and validates it.
func ParseRunConfigYAMLString(yamlText string) (*RunConfig, error) {
	return ParseRunConfigYAML([]byte(yamlText))
}

// MarshalYAMLBytes renders the configuration back to YAML
func (c *RunConfig) MarshalYAMLBytes() ([]byte, error) {
	return yaml.Marshal(c)
}
