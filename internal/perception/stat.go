package perception

// Stat accumulates a scalar sample stream and reports count, mean, min
// and max. The zero value is an empty accumulator ready for use.
type Stat struct {
	count int
	sum   float64
	min   float64
	max   float64
}

// Add folds one sample into the accumulator.
func (s *Stat) Add(v float64) {
	if s.count == 0 || v < s.min {
		s.min = v
	}
	if s.count == 0 || v > s.max {
		s.max = v
	}
	s.sum += v
	s.count++
}

// Count returns the number of samples accumulated.
func (s Stat) Count() int { return s.count }

// Mean returns the sample mean, or 0 for an empty accumulator.
func (s Stat) Mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// Min returns the smallest sample, or 0 for an empty accumulator.
func (s Stat) Min() float64 { return s.min }

// Max returns the largest sample, or 0 for an empty accumulator.
func (s Stat) Max() float64 { return s.max }

// StatSummary is the JSON-safe projection of a Stat, used by the
// monitor endpoints and the metrics archive.
type StatSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Summary returns the accumulator's current summary values.
func (s Stat) Summary() StatSummary {
	return StatSummary{Count: s.count, Mean: s.Mean(), Min: s.min, Max: s.max}
}

// MetricStatMap keys deviation statistics by metric name. Predicted
// path entries carry the horizon in seconds with two decimals, e.g.
// "predicted_path_deviation_5.00".
type MetricStatMap map[string]Stat

// Merge copies every entry of other into m, overwriting existing keys.
func (m MetricStatMap) Merge(other MetricStatMap) {
	for name, stat := range other {
		m[name] = stat
	}
}

// Summaries converts the map into its JSON-safe form.
func (m MetricStatMap) Summaries() map[string]StatSummary {
	out := make(map[string]StatSummary, len(m))
	for name, stat := range m {
		out[name] = stat.Summary()
	}
	return out
}
