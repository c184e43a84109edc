package monitor

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/prediction.report/internal/perception"
	"github.com/banshee-data/prediction.report/internal/perception/storage/sqlite"
	"github.com/banshee-data/prediction.report/internal/version"
)

//go:embed status.html
var StatusHTML embed.FS

// WebServer serves the evaluator's HTTP interface: a status page, JSON
// endpoints for live and persisted metric results, and debug chart
// renderings of tracked object histories.
type WebServer struct {
	address string
	runner  *perception.Runner
	stats   *perception.CycleStats
	store   *sqlite.MetricsStore
	source  string
	server  *http.Server
}

// WebServerConfig contains configuration options for the web server.
// Runner and Stats are required; Store is optional and gates the
// persisted-history endpoints.
type WebServerConfig struct {
	Address string
	Runner  *perception.Runner
	Stats   *perception.CycleStats
	Store   *sqlite.MetricsStore
	Source  string // batch source description shown on the status page
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		runner:  config.Runner,
		stats:   config.Stats,
		store:   config.Store,
		source:  config.Source,
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

// Start starts the web server and blocks until the context is cancelled
func (ws *WebServer) Start(ctx context.Context) error {
	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	// Create a shutdown context with a shorter timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// Close immediately closes the underlying HTTP server
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)

	// JSON API
	mux.HandleFunc("/api/metrics", ws.handleMetricNames)
	mux.HandleFunc("/api/metrics/latest", ws.handleLatestMetrics)
	mux.HandleFunc("/api/metrics/history", ws.handleMetricHistory)
	mux.HandleFunc("/api/metrics/summary", ws.handleMetricSummary)
	mux.HandleFunc("/api/objects", ws.handleObjects)
	mux.HandleFunc("/api/objects/path", ws.handleObjectPath)

	// Debug visualizations
	mux.HandleFunc("/debug/charts/object", ws.handleObjectChart)
	mux.HandleFunc("/debug/charts/metric", ws.handleMetricChart)
	mux.HandleFunc("/debug/plot/object.png", ws.handleObjectPlot)

	return mux
}

// writeJSONError writes a JSON error response with the given status code
func (ws *WebServer) writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// handleHealth handles the health check endpoint
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "prediction-report", "version": "%s", "timestamp": "%s"}`,
		version.Version, time.Now().UTC().Format(time.RFC3339))
}

// handleStatus renders the main status page
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	tmpl, err := template.ParseFS(StatusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	snap := ws.stats.Snapshot()
	uptime := time.Duration(snap.UptimeSeconds * float64(time.Second)).Round(time.Second)

	var latest map[string]perception.StatSummary
	var latestStamp string
	if stampNanos, results, ok := ws.runner.Latest(); ok {
		latest = results.Summaries()
		latestStamp = time.Unix(0, stampNanos).UTC().Format(time.RFC3339Nano)
	}

	data := struct {
		Address     string
		Source      string
		Uptime      string
		Stats       perception.CycleStatsSnapshot
		Tracked     int
		Latest      map[string]perception.StatSummary
		LatestStamp string
		HasStore    bool
	}{
		Address:     ws.address,
		Source:      ws.source,
		Uptime:      uptime.String(),
		Stats:       snap,
		Tracked:     ws.runner.Calculator().Store().KeyCount(),
		Latest:      latest,
		LatestStamp: latestStamp,
		HasStore:    ws.store != nil,
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// handleLatestMetrics returns the most recent cycle's metric results as JSON
func (ws *WebServer) handleLatestMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stampNanos, results, ok := ws.runner.Latest()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "No metric results yet; history is still filling")
		return
	}

	response := struct {
		StampNanos int64                             `json:"stamp_nanos"`
		Stamp      string                            `json:"stamp"`
		Metrics    map[string]perception.StatSummary `json:"metrics"`
	}{
		StampNanos: stampNanos,
		Stamp:      time.Unix(0, stampNanos).UTC().Format(time.RFC3339Nano),
		Metrics:    results.Summaries(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleMetricNames lists the metric families with persisted cycles
func (ws *WebServer) handleMetricNames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "No metrics database configured")
		return
	}

	names, err := ws.store.Metrics()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list metrics: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(names)
}

// handleMetricHistory returns persisted cycles for one metric family,
// newest first.
// Query params:
//   - metric (required)
//   - limit (optional, default 100, max 1000)
func (ws *WebServer) handleMetricHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "No metrics database configured")
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "Missing 'metric' parameter")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 1000 {
			ws.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter (expected 1-1000)")
			return
		}
		limit = parsed
	}

	cycles, err := ws.store.ListByMetric(metric, limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list metric cycles: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cycles)
}

// handleMetricSummary returns percentile statistics over the persisted
// per-cycle means of one metric family.
// Query params:
//   - metric (required)
func (ws *WebServer) handleMetricSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "No metrics database configured")
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "Missing 'metric' parameter")
		return
	}

	summary, err := ws.store.SummarizeMeans(metric)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			ws.writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to summarize metric: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// objectSummary is one row of the /api/objects listing.
type objectSummary struct {
	Key         perception.ObjectKey `json:"key"`
	TrackLen    int                  `json:"track_len"`
	SmoothedLen int                  `json:"smoothed_len"`
	OldestStamp string               `json:"oldest_stamp,omitempty"`
}

// handleObjects lists every tracked object history
func (ws *WebServer) handleObjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	store := ws.runner.Calculator().Store()
	keys := store.Keys()
	summaries := make([]objectSummary, 0, len(keys))
	for _, key := range keys {
		s := objectSummary{
			Key:         key,
			TrackLen:    store.TrackLen(key),
			SmoothedLen: len(store.SmoothedPath(key)),
		}
		if oldest, ok := store.OldestTimestamp(key); ok {
			s.OldestStamp = time.Unix(0, oldest).UTC().Format(time.RFC3339Nano)
		}
		summaries = append(summaries, s)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// handleObjectPath returns the raw and smoothed history for one object,
// plus the evaluated pose pairs when the last cycle produced them.
// Query params:
//   - key (required)
func (ws *WebServer) handleObjectPath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "Missing 'key' parameter")
		return
	}

	calc := ws.runner.Calculator()
	path, ok := calc.Store().PathCopy(perception.ObjectKey(key))
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No history for object '%s'", key))
		return
	}

	response := struct {
		Key   perception.ObjectKey    `json:"key"`
		Path  perception.HistoryPath  `json:"path"`
		Debug *perception.DebugObject `json:"debug,omitempty"`
	}{
		Key:  perception.ObjectKey(key),
		Path: path,
	}
	if dbg, ok := calc.DebugObject(perception.ObjectKey(key)); ok {
		response.Debug = &dbg
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
