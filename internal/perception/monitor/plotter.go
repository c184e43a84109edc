package monitor

import (
	"fmt"
	"image/color"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/prediction.report/internal/perception"
)

// TrajectoryPlot builds a gonum plot of one object's raw history,
// smoothed path and evaluated predicted/actual pose pairs. The replay
// tool saves these to disk; the web server renders them as PNG.
func TrajectoryPlot(calc *perception.Calculator, key perception.ObjectKey) (*plot.Plot, error) {
	path, ok := calc.Store().PathCopy(key)
	if !ok || len(path.Raw) == 0 {
		return nil, fmt.Errorf("no history for object '%s'", key)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Object %s", key)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	colors := generateColors(4)

	rawPts := make(plotter.XYs, 0, len(path.Raw))
	for _, pose := range path.Raw {
		rawPts = append(rawPts, plotter.XY{X: pose.X, Y: pose.Y})
	}
	rawLine, err := plotter.NewLine(rawPts)
	if err != nil {
		return nil, err
	}
	rawLine.Color = colors[0]
	rawLine.Width = vg.Points(1)
	p.Add(rawLine)
	p.Legend.Add("raw", rawLine)

	if len(path.Smoothed) > 0 {
		smoothPts := make(plotter.XYs, 0, len(path.Smoothed))
		for _, pose := range path.Smoothed {
			smoothPts = append(smoothPts, plotter.XY{X: pose.X, Y: pose.Y})
		}
		smoothLine, err := plotter.NewLine(smoothPts)
		if err != nil {
			return nil, err
		}
		smoothLine.Color = colors[1]
		smoothLine.Width = vg.Points(2)
		p.Add(smoothLine)
		p.Legend.Add("smoothed", smoothLine)
	}

	if dbg, ok := calc.DebugObject(key); ok && len(dbg.Pairs) > 0 {
		predPts := make(plotter.XYs, 0, len(dbg.Pairs))
		actualPts := make(plotter.XYs, 0, len(dbg.Pairs))
		for _, pair := range dbg.Pairs {
			predPts = append(predPts, plotter.XY{X: pair.Predicted.X, Y: pair.Predicted.Y})
			actualPts = append(actualPts, plotter.XY{X: pair.Actual.X, Y: pair.Actual.Y})
		}

		predLine, err := plotter.NewLine(predPts)
		if err != nil {
			return nil, err
		}
		predLine.Color = colors[2]
		predLine.Width = vg.Points(1)
		predLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(predLine)
		p.Legend.Add("predicted", predLine)

		actualLine, err := plotter.NewLine(actualPts)
		if err != nil {
			return nil, err
		}
		actualLine.Color = colors[3]
		actualLine.Width = vg.Points(1)
		p.Add(actualLine)
		p.Legend.Add("actual", actualLine)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}

// SaveTrajectoryPlots writes one PNG per tracked object into outputDir,
// creating it if needed. Returns the number of plots written.
func SaveTrajectoryPlots(calc *perception.Calculator, outputDir string) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, fmt.Errorf("create plot output dir: %w", err)
	}

	count := 0
	for _, key := range calc.Store().Keys() {
		p, err := TrajectoryPlot(calc, key)
		if err != nil {
			continue
		}
		file := filepath.Join(outputDir, fmt.Sprintf("object_%s.png", key))
		if err := p.Save(10*vg.Inch, 10*vg.Inch, file); err != nil {
			return count, fmt.Errorf("save trajectory plot: %w", err)
		}
		count++
	}
	return count, nil
}

// handleObjectPlot serves the trajectory plot for one object as PNG.
// Query params:
//   - key (required)
func (ws *WebServer) handleObjectPlot(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "Missing 'key' parameter")
		return
	}

	p, err := TrajectoryPlot(ws.runner.Calculator(), perception.ObjectKey(key))
	if err != nil {
		ws.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}

	wt, err := p.WriterTo(10*vg.Inch, 10*vg.Inch, "png")
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = wt.WriteTo(w)
}

// generateColors creates a palette of distinct colors for plot lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// FormatTimestamp generates a timestamp string suitable for directory names.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir creates a timestamped output directory for plots.
// For replay logs: plots/<log_basename>/<timestamp>
// For live data: plots/live_<timestamp>
func MakePlotOutputDir(baseDir, logFile string) string {
	ts := FormatTimestamp(time.Now())
	if logFile != "" {
		// Use log basename without extension
		base := filepath.Base(logFile)
		ext := filepath.Ext(base)
		name := base[:len(base)-len(ext)]
		return filepath.Join(baseDir, name, ts)
	}
	return filepath.Join(baseDir, "live_"+ts)
}
