package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/prediction.report/internal/perception"
	"github.com/banshee-data/prediction.report/internal/testutil"
)

func testScenario() perception.Scenario {
	return perception.Scenario{
		Key:      "car",
		Class:    perception.ClassCar,
		Velocity: 2.0,
		TimeStep: 500 * time.Millisecond,
		Horizon:  10 * time.Second,
		Pattern:  perception.PatternStraight,
		SpikeAt:  -1,
		Start:    time.Unix(1700000000, 0),
	}
}

// newTestRunner replays a straight ten-second scenario to completion so
// the runner has a full history and latest results to serve.
func newTestRunner(t *testing.T) (*perception.Runner, *perception.CycleStats) {
	t.Helper()

	params := perception.Params{
		PredictionHorizons:  []time.Duration{5 * time.Second},
		SmoothingWindowSize: 11,
	}
	calc, err := perception.NewCalculator(params, perception.NewHistoryStore())
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}

	stats := perception.NewCycleStats()
	runner, err := perception.NewRunner(calc, perception.RunnerConfig{
		Source: testutil.NewBatchSource(testScenario().Batches(10 * time.Second)),
		Stats:  stats,
	})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	return runner, stats
}

func newTestWebServer(t *testing.T) *WebServer {
	t.Helper()

	runner, stats := newTestRunner(t)
	return NewWebServer(WebServerConfig{
		Address: ":0",
		Runner:  runner,
		Stats:   stats,
		Source:  "scenario straight",
	})
}

func TestNewWebServer(t *testing.T) {
	runner, stats := newTestRunner(t)

	config := WebServerConfig{
		Address: ":0",
		Runner:  runner,
		Stats:   stats,
		Source:  "replay test.jsonl",
	}

	server := NewWebServer(config)

	if server == nil {
		t.Fatal("NewWebServer returned nil")
	}

	if server.runner != runner {
		t.Error("WebServer runner not set correctly")
	}

	if server.stats != stats {
		t.Error("WebServer stats not set correctly")
	}

	if server.source != "replay test.jsonl" {
		t.Error("WebServer source not set correctly")
	}

	if server.store != nil {
		t.Error("WebServer store should be nil when not configured")
	}
}

func TestWebServer_StatusHandler(t *testing.T) {
	server := newTestWebServer(t)

	req, err := http.NewRequest("GET", "/", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	mux := server.setupRoutes()
	mux.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("Status handler returned wrong status code: got %v want %v",
			status, http.StatusOK)
	}

	body := rr.Body.String()

	if !strings.Contains(body, "Prediction Report Monitor") {
		t.Error("Response should contain 'Prediction Report Monitor'")
	}

	if !strings.Contains(body, "scenario straight") {
		t.Error("Response should contain the batch source description")
	}

	// The replayed scenario produced results, so the latest metrics
	// table must name the lateral deviation family.
	if !strings.Contains(body, "lateral_deviation") {
		t.Error("Response should contain 'lateral_deviation'")
	}
}

func TestWebServer_StatusHandlerUnknownPath(t *testing.T) {
	server := newTestWebServer(t)

	req, err := http.NewRequest("GET", "/nonexistent", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	mux := server.setupRoutes()
	mux.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %v", status)
	}
}

func TestWebServer_HealthHandler(t *testing.T) {
	server := newTestWebServer(t)

	req, err := http.NewRequest("GET", "/health", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	mux := server.setupRoutes()
	mux.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("Health handler returned wrong status code: got %v want %v",
			status, http.StatusOK)
	}

	expected := "application/json"
	if ctype := rr.Header().Get("Content-Type"); ctype != expected {
		t.Errorf("Health handler returned wrong content type: got %v want %v",
			ctype, expected)
	}

	body := rr.Body.String()

	if !strings.Contains(body, `"status": "ok"`) {
		t.Error("Response should contain status: ok (with spaces)")
	}

	if !strings.Contains(body, `"service": "prediction-report"`) {
		t.Error("Response should contain service: prediction-report (with spaces)")
	}

	if !strings.Contains(body, `"version"`) {
		t.Error("Response should report the build version")
	}
}

func TestWebServer_ObjectChartHandler(t *testing.T) {
	server := newTestWebServer(t)
	mux := server.setupRoutes()

	// Missing key parameter
	rr := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/debug/charts/object", nil)
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without key, got %v", rr.Code)
	}

	// Unknown object
	rr = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/debug/charts/object?key=ghost", nil)
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown object, got %v", rr.Code)
	}

	// Tracked object renders an echarts page
	rr = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/debug/charts/object?key=car", nil)
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for tracked object, got %v: %s", rr.Code, rr.Body.String())
	}
	if ctype := rr.Header().Get("Content-Type"); !strings.Contains(ctype, "text/html") {
		t.Errorf("expected HTML content type, got %v", ctype)
	}
	if !strings.Contains(rr.Body.String(), "echarts") {
		t.Error("chart page should reference echarts")
	}
}

func TestWebServer_MetricChartRequiresStore(t *testing.T) {
	server := newTestWebServer(t)
	mux := server.setupRoutes()

	rr := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/debug/charts/metric?metric=lateral_deviation", nil)
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a metrics database, got %v", rr.Code)
	}
}

func TestWebServer_ObjectPlotHandler(t *testing.T) {
	server := newTestWebServer(t)
	mux := server.setupRoutes()

	rr := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/debug/plot/object.png?key=car", nil)
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %v: %s", rr.Code, rr.Body.String())
	}
	if ctype := rr.Header().Get("Content-Type"); ctype != "image/png" {
		t.Errorf("expected image/png content type, got %v", ctype)
	}
	if body := rr.Body.Bytes(); len(body) < 8 || string(body[1:4]) != "PNG" {
		t.Error("response body is not a PNG image")
	}

	// Missing key parameter
	rr = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/debug/plot/object.png", nil)
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without key, got %v", rr.Code)
	}
}

func TestSaveTrajectoryPlots(t *testing.T) {
	runner, _ := newTestRunner(t)
	outputDir := filepath.Join(t.TempDir(), "plots")

	count, err := SaveTrajectoryPlots(runner.Calculator(), outputDir)
	if err != nil {
		t.Fatalf("SaveTrajectoryPlots failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 plot, got %d", count)
	}

	if _, err := os.Stat(filepath.Join(outputDir, "object_car.png")); err != nil {
		t.Errorf("expected plot file to exist: %v", err)
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 30, 14, 35, 22, 0, time.UTC)
	result := FormatTimestamp(ts)

	expected := "20260130_143522"
	if result != expected {
		t.Errorf("expected '%s', got '%s'", expected, result)
	}
}

func TestMakePlotOutputDir_WithLogFile(t *testing.T) {
	baseDir := "/tmp/plots"
	logFile := "/data/replays/session-001.jsonl"

	result := MakePlotOutputDir(baseDir, logFile)

	if filepath.Dir(filepath.Dir(result)) != baseDir {
		t.Errorf("expected base dir '%s' in path, got '%s'", baseDir, result)
	}

	// Parent dir should be the log basename without extension
	parent := filepath.Base(filepath.Dir(result))
	if parent != "session-001" {
		t.Errorf("expected parent 'session-001', got '%s'", parent)
	}
}

func TestMakePlotOutputDir_WithoutLogFile(t *testing.T) {
	baseDir := "/tmp/plots"

	result := MakePlotOutputDir(baseDir, "")

	base := filepath.Base(result)
	if len(base) < 5 || base[:5] != "live_" {
		t.Errorf("expected path to contain 'live_', got '%s'", result)
	}
}

func TestWebServer_StartStop(t *testing.T) {
	server := newTestWebServer(t)

	// Start server with context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		err := server.Start(ctx)
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Give the server time to start
	time.Sleep(50 * time.Millisecond)

	// Cancel the context to stop the server
	cancel()

	// Wait a bit for the server to stop
	time.Sleep(50 * time.Millisecond)

	// Check if there were any startup errors
	select {
	case err := <-errChan:
		t.Fatalf("Server start failed: %v", err)
	default:
		// No error, which is what we expect
	}
}
