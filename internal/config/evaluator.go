package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/prediction.report/internal/perception"
)

// DefaultConfigPath is the path to the canonical evaluator defaults
// file. This is the single source of truth for all default evaluation
// parameters.
const DefaultConfigPath = "config/evaluator.defaults.json"

// EvaluatorConfig represents the root configuration for the deviation
// evaluator. The schema matches the /api/config endpoint so the same
// JSON can be used for both startup configuration and inspection.
type EvaluatorConfig struct {
	// Engine params
	PredictionTimeHorizons []float64 `json:"prediction_time_horizons,omitempty"` // seconds
	SmoothingWindowSize    *int      `json:"smoothing_window_size,omitempty"`
	SelectedMetrics        []string  `json:"selected_metrics,omitempty"`
	IncrementalSmoothing   *bool     `json:"incremental_smoothing,omitempty"`

	// Runner params
	CycleLogInterval *string `json:"cycle_log_interval,omitempty"` // duration string like "10s"

	// Per-class deviation checks
	CheckUnknown    *bool `json:"check_unknown,omitempty"`
	CheckCar        *bool `json:"check_car,omitempty"`
	CheckTruck      *bool `json:"check_truck,omitempty"`
	CheckBus        *bool `json:"check_bus,omitempty"`
	CheckTrailer    *bool `json:"check_trailer,omitempty"`
	CheckMotorcycle *bool `json:"check_motorcycle,omitempty"`
	CheckBicycle    *bool `json:"check_bicycle,omitempty"`
	CheckPedestrian *bool `json:"check_pedestrian,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyEvaluatorConfig returns an EvaluatorConfig with all fields set
// to nil. Use LoadEvaluatorConfig to load actual values from the
// defaults file.
func EmptyEvaluatorConfig() *EvaluatorConfig {
	return &EvaluatorConfig{}
}

// LoadEvaluatorConfig loads an EvaluatorConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadEvaluatorConfig(path string) (*EvaluatorConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyEvaluatorConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical evaluator defaults from
// DefaultConfigPath. It searches for the file in the current directory
// and common parent directories. Panics if the file cannot be loaded,
// intended for test setup.
func MustLoadDefaultConfig() *EvaluatorConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/perception/monitor/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadEvaluatorConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *EvaluatorConfig) Validate() error {
	// Validate horizons if set
	for _, h := range c.PredictionTimeHorizons {
		if h <= 0 {
			return fmt.Errorf("prediction_time_horizons entries must be positive, got %f", h)
		}
	}

	// Validate SmoothingWindowSize if set
	if c.SmoothingWindowSize != nil && *c.SmoothingWindowSize < 1 {
		return fmt.Errorf("smoothing_window_size must be at least 1, got %d", *c.SmoothingWindowSize)
	}

	// Validate metric names if set
	for _, name := range c.SelectedMetrics {
		if _, err := perception.ParseMetric(name); err != nil {
			return fmt.Errorf("invalid selected_metrics entry: %w", err)
		}
	}

	// Validate CycleLogInterval can be parsed if set
	if c.CycleLogInterval != nil && *c.CycleLogInterval != "" {
		if _, err := time.ParseDuration(*c.CycleLogInterval); err != nil {
			return fmt.Errorf("invalid cycle_log_interval '%s': %w", *c.CycleLogInterval, err)
		}
	}

	return nil
}

// GetPredictionHorizons returns the configured horizons as durations,
// or the defaults of 1, 2, 3 and 5 seconds.
func (c *EvaluatorConfig) GetPredictionHorizons() []time.Duration {
	if len(c.PredictionTimeHorizons) == 0 {
		return []time.Duration{
			1 * time.Second, 2 * time.Second, 3 * time.Second, 5 * time.Second,
		}
	}
	out := make([]time.Duration, len(c.PredictionTimeHorizons))
	for i, h := range c.PredictionTimeHorizons {
		out[i] = time.Duration(h * float64(time.Second))
	}
	return out
}

// GetSmoothingWindowSize returns the smoothing_window_size value or the default.
func (c *EvaluatorConfig) GetSmoothingWindowSize() int {
	if c.SmoothingWindowSize == nil {
		return 11 // default
	}
	return *c.SmoothingWindowSize
}

// GetSelectedMetrics returns the parsed metric selection or every
// metric family. Entries that fail to parse are skipped; Validate
// rejects them at load time.
func (c *EvaluatorConfig) GetSelectedMetrics() []perception.Metric {
	if len(c.SelectedMetrics) == 0 {
		return perception.AllMetrics()
	}
	out := make([]perception.Metric, 0, len(c.SelectedMetrics))
	for _, name := range c.SelectedMetrics {
		m, err := perception.ParseMetric(name)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// GetIncrementalSmoothing returns the incremental_smoothing value or the default.
func (c *EvaluatorConfig) GetIncrementalSmoothing() bool {
	if c.IncrementalSmoothing == nil {
		return false // default: full rebuild every cycle
	}
	return *c.IncrementalSmoothing
}

// GetCycleLogInterval parses and returns the CycleLogInterval as a time.Duration.
func (c *EvaluatorConfig) GetCycleLogInterval() time.Duration {
	if c.CycleLogInterval == nil || *c.CycleLogInterval == "" {
		return 10 * time.Second // default
	}
	d, err := time.ParseDuration(*c.CycleLogInterval)
	if err != nil {
		return 10 * time.Second // default on parse error
	}
	return d
}

// GetCheckDeviation returns the per-class deviation check map. Classes
// not mentioned in the config keep their defaults: every class is
// checked except unknown.
func (c *EvaluatorConfig) GetCheckDeviation() map[perception.ObjectClass]bool {
	out := map[perception.ObjectClass]bool{
		perception.ClassUnknown:    false,
		perception.ClassCar:        true,
		perception.ClassTruck:      true,
		perception.ClassBus:        true,
		perception.ClassTrailer:    true,
		perception.ClassMotorcycle: true,
		perception.ClassBicycle:    true,
		perception.ClassPedestrian: true,
	}
	overrides := map[perception.ObjectClass]*bool{
		perception.ClassUnknown:    c.CheckUnknown,
		perception.ClassCar:        c.CheckCar,
		perception.ClassTruck:      c.CheckTruck,
		perception.ClassBus:        c.CheckBus,
		perception.ClassTrailer:    c.CheckTrailer,
		perception.ClassMotorcycle: c.CheckMotorcycle,
		perception.ClassBicycle:    c.CheckBicycle,
		perception.ClassPedestrian: c.CheckPedestrian,
	}
	for class, v := range overrides {
		if v != nil {
			out[class] = *v
		}
	}
	return out
}

// Params assembles the engine parameters from the configuration.
func (c *EvaluatorConfig) Params() perception.Params {
	return perception.Params{
		PredictionHorizons:   c.GetPredictionHorizons(),
		SmoothingWindowSize:  c.GetSmoothingWindowSize(),
		Metrics:              c.GetSelectedMetrics(),
		CheckDeviation:       c.GetCheckDeviation(),
		IncrementalSmoothing: c.GetIncrementalSmoothing(),
	}
}
