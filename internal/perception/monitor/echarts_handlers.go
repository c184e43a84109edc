package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/prediction.report/internal/perception"
)

// echartsAssetsPrefix serves the echarts JS bundle from the go-echarts
// assets mirror so chart pages work without bundling anything.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleObjectChart renders a scatter plot (HTML) of one object's raw
// history, smoothed path and evaluated pose pairs using go-echarts.
// This is a debugging-only endpoint to visually compare the paths without a UI build.
// Query params:
//   - key (required)
func (ws *WebServer) handleObjectChart(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "Missing 'key' parameter")
		return
	}

	calc := ws.runner.Calculator()
	path, ok := calc.Store().PathCopy(perception.ObjectKey(key))
	if !ok || len(path.Raw) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No history for object '%s'", key))
		return
	}

	maxAbs := 0.0
	grow := func(p perception.Pose) {
		if math.Abs(p.X) > maxAbs {
			maxAbs = math.Abs(p.X)
		}
		if math.Abs(p.Y) > maxAbs {
			maxAbs = math.Abs(p.Y)
		}
	}

	rawPts := make([]opts.ScatterData, 0, len(path.Raw))
	for _, p := range path.Raw {
		grow(p)
		rawPts = append(rawPts, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}
	smoothPts := make([]opts.ScatterData, 0, len(path.Smoothed))
	for _, p := range path.Smoothed {
		grow(p)
		smoothPts = append(smoothPts, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}

	var predPts, actualPts []opts.ScatterData
	winner := -1
	if dbg, ok := calc.DebugObject(perception.ObjectKey(key)); ok {
		winner = dbg.WinnerIndex
		for _, pair := range dbg.Pairs {
			grow(pair.Predicted)
			grow(pair.Actual)
			predPts = append(predPts, opts.ScatterData{Value: []interface{}{pair.Predicted.X, pair.Predicted.Y}})
			actualPts = append(actualPts, opts.ScatterData{Value: []interface{}{pair.Actual.X, pair.Actual.Y}})
		}
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	subtitle := fmt.Sprintf("key=%s raw=%d smoothed=%d pairs=%d winner=%d",
		key, len(rawPts), len(smoothPts), len(predPts), winner)

	// Force a square plot by using equal width/height and symmetric axis ranges
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Object History", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Object History", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("raw", rawPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	scatter.AddSeries("smoothed", smoothPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#40c4ff"}))
	if len(predPts) > 0 {
		scatter.AddSeries("predicted", predPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ffab40"}))
		scatter.AddSeries("actual", actualPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleMetricChart renders a line chart (HTML) of the persisted
// per-cycle mean, min and max for one metric family.
// Query params:
//   - metric (required)
//   - limit (optional; default 200, max 2000)
func (ws *WebServer) handleMetricChart(w http.ResponseWriter, r *http.Request) {
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "No metrics database configured")
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "Missing 'metric' parameter")
		return
	}

	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 2000 {
			limit = parsed
		}
	}

	cycles, err := ws.store.ListByMetric(metric, limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list metric cycles: %v", err))
		return
	}
	if len(cycles) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No cycles recorded for metric '%s'", metric))
		return
	}

	// ListByMetric returns newest first; plot oldest to newest.
	x := make([]string, 0, len(cycles))
	meanData := make([]opts.LineData, 0, len(cycles))
	minData := make([]opts.LineData, 0, len(cycles))
	maxData := make([]opts.LineData, 0, len(cycles))
	for i := len(cycles) - 1; i >= 0; i-- {
		c := cycles[i]
		x = append(x, time.Unix(0, c.CycleStampNanos).UTC().Format("15:04:05.000"))
		meanData = append(meanData, opts.LineData{Value: c.Mean})
		minData = append(minData, opts.LineData{Value: c.Min})
		maxData = append(maxData, opts.LineData{Value: c.Max})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Metric History", Subtitle: fmt.Sprintf("metric=%s cycles=%d", metric, len(cycles))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "deviation"}),
	)
	line.SetXAxis(x).
		AddSeries("mean", meanData).
		AddSeries("min", minData).
		AddSeries("max", maxData)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
