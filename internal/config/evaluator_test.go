package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/prediction.report/internal/perception"
)

func TestLoadEvaluatorConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "prediction_time_horizons": [0.5, 2.0],
  "smoothing_window_size": 7,
  "selected_metrics": ["lateral_deviation", "yaw_deviation"],
  "incremental_smoothing": true,
  "cycle_log_interval": "30s",
  "check_unknown": true,
  "check_pedestrian": false
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadEvaluatorConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.PredictionTimeHorizons) != 2 || cfg.PredictionTimeHorizons[0] != 0.5 {
		t.Errorf("PredictionTimeHorizons = %v, want [0.5 2]", cfg.PredictionTimeHorizons)
	}
	if cfg.SmoothingWindowSize == nil || *cfg.SmoothingWindowSize != 7 {
		t.Errorf("SmoothingWindowSize = %v, want 7", cfg.SmoothingWindowSize)
	}
	if len(cfg.SelectedMetrics) != 2 {
		t.Errorf("SelectedMetrics = %v, want 2 entries", cfg.SelectedMetrics)
	}
	if cfg.IncrementalSmoothing == nil || *cfg.IncrementalSmoothing != true {
		t.Errorf("IncrementalSmoothing = %v, want true", cfg.IncrementalSmoothing)
	}
	if cfg.CycleLogInterval == nil || *cfg.CycleLogInterval != "30s" {
		t.Errorf("CycleLogInterval = %v, want '30s'", cfg.CycleLogInterval)
	}
	if cfg.CheckUnknown == nil || *cfg.CheckUnknown != true {
		t.Errorf("CheckUnknown = %v, want true", cfg.CheckUnknown)
	}
	if cfg.CheckPedestrian == nil || *cfg.CheckPedestrian != false {
		t.Errorf("CheckPedestrian = %v, want false", cfg.CheckPedestrian)
	}
}

func TestLoadEvaluatorConfigMissing(t *testing.T) {
	_, err := LoadEvaluatorConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadEvaluatorConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "smoothing_window_size": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadEvaluatorConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *EvaluatorConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     &EvaluatorConfig{},
			wantErr: false,
		},
		{
			name: "valid config",
			cfg: &EvaluatorConfig{
				PredictionTimeHorizons: []float64{1, 5},
				SmoothingWindowSize:    ptrInt(9),
				SelectedMetrics:        []string{"lateral_deviation"},
				CycleLogInterval:       ptrString("15s"),
			},
			wantErr: false,
		},
		{
			name: "non-positive horizon",
			cfg: &EvaluatorConfig{
				PredictionTimeHorizons: []float64{1, 0},
			},
			wantErr: true,
		},
		{
			name: "zero window size",
			cfg: &EvaluatorConfig{
				SmoothingWindowSize: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "unknown metric name",
			cfg: &EvaluatorConfig{
				SelectedMetrics: []string{"sideways_drift"},
			},
			wantErr: true,
		},
		{
			name: "invalid cycle log interval",
			cfg: &EvaluatorConfig{
				CycleLogInterval: ptrString("invalid"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetPredictionHorizons(t *testing.T) {
	cfg := &EvaluatorConfig{}
	got := cfg.GetPredictionHorizons()
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 5 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("default horizons = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("default horizon %d = %v, want %v", i, got[i], want[i])
		}
	}

	cfg = &EvaluatorConfig{PredictionTimeHorizons: []float64{0.5, 2}}
	got = cfg.GetPredictionHorizons()
	if len(got) != 2 || got[0] != 500*time.Millisecond || got[1] != 2*time.Second {
		t.Errorf("configured horizons = %v, want [500ms 2s]", got)
	}
}

func TestGetCycleLogInterval(t *testing.T) {
	tests := []struct {
		name string
		cfg  *EvaluatorConfig
		want time.Duration
	}{
		{
			name: "30 seconds",
			cfg: &EvaluatorConfig{
				CycleLogInterval: ptrString("30s"),
			},
			want: 30 * time.Second,
		},
		{
			name: "nil pointer returns default",
			cfg:  &EvaluatorConfig{},
			want: 10 * time.Second,
		},
		{
			name: "empty string returns default",
			cfg: &EvaluatorConfig{
				CycleLogInterval: ptrString(""),
			},
			want: 10 * time.Second,
		},
		{
			name: "invalid duration returns default",
			cfg: &EvaluatorConfig{
				CycleLogInterval: ptrString("invalid"),
			},
			want: 10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetCycleLogInterval()
			if got != tt.want {
				t.Errorf("GetCycleLogInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSelectedMetrics(t *testing.T) {
	cfg := &EvaluatorConfig{}
	if got := cfg.GetSelectedMetrics(); len(got) != len(perception.AllMetrics()) {
		t.Errorf("default metrics = %v, want all families", got)
	}

	cfg = &EvaluatorConfig{SelectedMetrics: []string{"yaw_deviation"}}
	got := cfg.GetSelectedMetrics()
	if len(got) != 1 || got[0] != perception.MetricYawDeviation {
		t.Errorf("selected metrics = %v, want [yaw_deviation]", got)
	}
}

func TestGetCheckDeviation(t *testing.T) {
	cfg := &EvaluatorConfig{}
	checks := cfg.GetCheckDeviation()
	if checks[perception.ClassUnknown] {
		t.Error("unknown class should default to unchecked")
	}
	if !checks[perception.ClassCar] || !checks[perception.ClassPedestrian] {
		t.Error("known classes should default to checked")
	}

	cfg = &EvaluatorConfig{
		CheckUnknown: ptrBool(true),
		CheckCar:     ptrBool(false),
	}
	checks = cfg.GetCheckDeviation()
	if !checks[perception.ClassUnknown] {
		t.Error("check_unknown override not applied")
	}
	if checks[perception.ClassCar] {
		t.Error("check_car override not applied")
	}
	if !checks[perception.ClassTruck] {
		t.Error("unmentioned class lost its default")
	}
}

func TestParams(t *testing.T) {
	cfg := &EvaluatorConfig{
		PredictionTimeHorizons: []float64{2, 4},
		SmoothingWindowSize:    ptrInt(9),
		SelectedMetrics:        []string{"lateral_deviation"},
		IncrementalSmoothing:   ptrBool(true),
		CheckPedestrian:        ptrBool(false),
	}
	params := cfg.Params()

	if len(params.PredictionHorizons) != 2 || params.PredictionHorizons[1] != 4*time.Second {
		t.Errorf("horizons = %v, want [2s 4s]", params.PredictionHorizons)
	}
	if params.SmoothingWindowSize != 9 {
		t.Errorf("window = %d, want 9", params.SmoothingWindowSize)
	}
	if len(params.Metrics) != 1 || params.Metrics[0] != perception.MetricLateralDeviation {
		t.Errorf("metrics = %v, want [lateral_deviation]", params.Metrics)
	}
	if !params.IncrementalSmoothing {
		t.Error("incremental smoothing not carried over")
	}
	if params.CheckDeviation[perception.ClassPedestrian] {
		t.Error("pedestrian check override not carried over")
	}

	delay, err := params.EvaluationDelay()
	if err != nil {
		t.Fatalf("EvaluationDelay: %v", err)
	}
	if delay != 4*time.Second {
		t.Errorf("delay = %v, want 4s", delay)
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadEvaluatorConfig("../../config/evaluator.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetSmoothingWindowSize() != 11 {
		t.Errorf("Expected 11, got %d", cfg.GetSmoothingWindowSize())
	}
	if got := cfg.GetPredictionHorizons(); len(got) != 4 {
		t.Errorf("Expected 4 horizons, got %v", got)
	}
	if cfg.GetCycleLogInterval() != 10*time.Second {
		t.Errorf("Expected 10s, got %v", cfg.GetCycleLogInterval())
	}
	if cfg.GetCheckDeviation()[perception.ClassUnknown] {
		t.Error("Expected unknown class unchecked")
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadEvaluatorConfig("../../config/evaluator.example.json")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetSmoothingWindowSize() != 9 {
		t.Errorf("Expected 9, got %d", cfg.GetSmoothingWindowSize())
	}
	if got := cfg.GetSelectedMetrics(); len(got) != 1 {
		t.Errorf("Expected 1 metric, got %v", got)
	}
	if !cfg.GetIncrementalSmoothing() {
		t.Error("Expected incremental smoothing enabled")
	}
	if cfg.GetCheckDeviation()[perception.ClassPedestrian] {
		t.Error("Expected pedestrian class unchecked")
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	// The search walks parent directories, so this works from the
	// package directory as well as from the repository root.
	cfg := MustLoadDefaultConfig()
	if cfg.GetSmoothingWindowSize() != 11 {
		t.Errorf("window = %d, want 11", cfg.GetSmoothingWindowSize())
	}
	if got := cfg.GetPredictionHorizons(); len(got) != 4 {
		t.Errorf("horizons = %v, want 4 entries", got)
	}
}

func TestLoadEvaluatorConfigPartial(t *testing.T) {
	// Partial config: only override the window; everything else should
	// keep defaults.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "smoothing_window_size": 5
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadEvaluatorConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	if cfg.GetSmoothingWindowSize() != 5 {
		t.Errorf("Expected overridden window 5, got %d", cfg.GetSmoothingWindowSize())
	}
	if got := cfg.GetPredictionHorizons(); len(got) != 4 {
		t.Errorf("Expected default horizons, got %v", got)
	}
	if cfg.GetCycleLogInterval() != 10*time.Second {
		t.Errorf("Expected default interval 10s, got %v", cfg.GetCycleLogInterval())
	}
	if cfg.GetIncrementalSmoothing() {
		t.Error("Expected default incremental smoothing off")
	}
}

func TestLoadEvaluatorConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadEvaluatorConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadEvaluatorConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	// Create a file larger than 1MB
	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadEvaluatorConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}
