// Package config provides unified configuration loading for soak.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config contains all soak configuration settings.
type Config struct {
	// Logging contains console and file logging settings.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Train configures the example training run (soak train).
	Train RunConfig `json:"train" yaml:"train"`

	// Check configures the leak-check run (soak check).
	Check CheckConfig `json:"check" yaml:"check"`
}

// LoggingConfig configures soak's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "debug", "info" (default), "warn", or "error".
	Level string `json:"level" yaml:"level"`

	// File, when set, duplicates logs to a rotating JSON file.
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// MaxSizeMB is the size a log file may reach before rotation.
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the number of days to retain rotated files.
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days"`
}

// RunConfig shapes one training run.
type RunConfig struct {
	// HiddenLayers is the number of dense layers before the output layer.
	HiddenLayers int `json:"hidden_layers" yaml:"hidden_layers"`

	// HiddenDim is the width of each hidden layer.
	HiddenDim int `json:"hidden_dim" yaml:"hidden_dim"`

	// MinibatchSize is the number of samples per optimizer step.
	MinibatchSize int `json:"minibatch_size" yaml:"minibatch_size"`

	// NumSamples is the total sample budget; the minibatch count is
	// NumSamples / MinibatchSize.
	NumSamples int `json:"num_samples" yaml:"num_samples"`

	// LearningRate is applied per minibatch.
	LearningRate float32 `json:"learning_rate" yaml:"learning_rate"`

	// ProgressEvery collects loss/error every N minibatches.
	ProgressEvery int `json:"progress_every" yaml:"progress_every"`

	// Seed feeds the RNG for weights and data.
	Seed int64 `json:"seed" yaml:"seed"`
}

// CheckConfig shapes the leak-check run and its heuristic.
type CheckConfig struct {
	RunConfig `yaml:",inline"`

	// FractionTolerance is the allowed fraction of iterations on which
	// memory may increase. Range: 0.0 to 1.0.
	FractionTolerance float64 `json:"fraction_tolerance" yaml:"fraction_tolerance"`

	// GrowthToleranceKB is the allowed mean growth between the middle and
	// final sample windows, in kilobytes.
	GrowthToleranceKB int `json:"growth_tolerance_kb" yaml:"growth_tolerance_kb"`

	// Window is the width in iterations of the mean-comparison windows.
	Window int `json:"window" yaml:"window"`
}

// Default returns a Config with the standard run shapes and thresholds.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Train: RunConfig{
			HiddenLayers:  1,
			HiddenDim:     50,
			MinibatchSize: 10,
			NumSamples:    1000,
			LearningRate:  0.5,
			ProgressEvery: 20,
			Seed:          0,
		},
		Check: CheckConfig{
			RunConfig: RunConfig{
				HiddenLayers:  1,
				HiddenDim:     2,
				MinibatchSize: 1,
				NumSamples:    100000,
				LearningRate:  0.5,
				Seed:          0,
			},
			FractionTolerance: 0.1,
			GrowthToleranceKB: 150,
			Window:            1000,
		},
	}
}

// Load builds the configuration. Order: defaults -> optional YAML file ->
// environment variables -> validation. An empty path skips the file step.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file, layered over
// the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error, or empty for default)", c.Logging.Level)
	}

	if err := c.Train.validate("train"); err != nil {
		return err
	}
	if err := c.Check.RunConfig.validate("check"); err != nil {
		return err
	}

	if c.Check.FractionTolerance < 0 || c.Check.FractionTolerance > 1 {
		return fmt.Errorf("check.fraction_tolerance must be between 0 and 1, got %f", c.Check.FractionTolerance)
	}
	if c.Check.GrowthToleranceKB < 0 {
		return fmt.Errorf("check.growth_tolerance_kb must be non-negative, got %d", c.Check.GrowthToleranceKB)
	}
	if c.Check.Window <= 0 {
		return fmt.Errorf("check.window must be positive, got %d", c.Check.Window)
	}
	return nil
}

func (r RunConfig) validate(section string) error {
	if r.HiddenLayers <= 0 {
		return fmt.Errorf("%s.hidden_layers must be positive, got %d", section, r.HiddenLayers)
	}
	if r.HiddenDim <= 0 {
		return fmt.Errorf("%s.hidden_dim must be positive, got %d", section, r.HiddenDim)
	}
	if r.MinibatchSize <= 0 {
		return fmt.Errorf("%s.minibatch_size must be positive, got %d", section, r.MinibatchSize)
	}
	if r.NumSamples < r.MinibatchSize {
		return fmt.Errorf("%s.num_samples must be at least the minibatch size, got %d", section, r.NumSamples)
	}
	if r.LearningRate <= 0 {
		return fmt.Errorf("%s.learning_rate must be positive, got %f", section, r.LearningRate)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SOAK_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("SOAK_LOG_FILE"); v != "" {
		config.Logging.File = v
	}
	if v := os.Getenv("SOAK_CHECK_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Check.NumSamples = n
		}
	}
	if v := os.Getenv("SOAK_CHECK_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Check.Window = n
		}
	}
	if v := os.Getenv("SOAK_CHECK_FRACTION_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			config.Check.FractionTolerance = f
		}
	}
	if v := os.Getenv("SOAK_CHECK_GROWTH_KB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			config.Check.GrowthToleranceKB = n
		}
	}
	if v := os.Getenv("SOAK_TRAIN_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Train.NumSamples = n
		}
	}
}
