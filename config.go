package orchestra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the per-execution options consumed by the engine.
type Config struct {
	// MaxIterations bounds the number of planning steps.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// TimeoutSeconds bounds the wall-clock lifetime of the execution,
	// measured from creation. The deadline is checked cooperatively at the
	// top of each iteration; in-flight calls are allowed to finish.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`

	// ToolConcurrency bounds concurrent tool calls within one batch.
	// 0 means unlimited within the batch.
	ToolConcurrency int `yaml:"tool_concurrency" json:"tool_concurrency"`
}

// DefaultConfig returns the default execution bounds.
func DefaultConfig() Config {
	return Config{
		MaxIterations:   10,
		TimeoutSeconds:  300,
		ToolConcurrency: 0,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.MaxIterations == 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = def.TimeoutSeconds
	}
	return c
}

// Validate rejects bounds that would make an execution unrunnable.
func (c Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	if c.ToolConcurrency < 0 {
		return fmt.Errorf("tool_concurrency must be >= 0, got %d", c.ToolConcurrency)
	}
	return nil
}

// LoadConfig reads a YAML config file. A missing file returns defaults
// without error; a malformed file is an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
