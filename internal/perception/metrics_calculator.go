package perception

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoHorizons reports an empty prediction-horizon configuration.
// Without a horizon there is no evaluation delay, so no metric can ever
// be computed; this is fatal and never retried.
var ErrNoHorizons = errors.New("no prediction horizons configured")

// Metric identifies one deviation metric family.
type Metric int

const (
	// MetricLateralDeviation measures the lateral offset between an
	// object's pose and its own smoothed history path.
	MetricLateralDeviation Metric = iota
	// MetricYawDeviation measures the heading offset between an
	// object's pose and the local bearing of its smoothed history path.
	MetricYawDeviation
	// MetricPredictedPathDeviation measures, per configured horizon,
	// the pointwise distance between a predicted path and the
	// trajectory the object actually followed.
	MetricPredictedPathDeviation
)

// String returns the metric's wire name.
func (m Metric) String() string {
	switch m {
	case MetricLateralDeviation:
		return "lateral_deviation"
	case MetricYawDeviation:
		return "yaw_deviation"
	case MetricPredictedPathDeviation:
		return "predicted_path_deviation"
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

// ParseMetric maps a configured metric name to its Metric.
func ParseMetric(name string) (Metric, error) {
	for _, m := range AllMetrics() {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", name)
}

// AllMetrics returns every metric family in evaluation order.
func AllMetrics() []Metric {
	return []Metric{MetricLateralDeviation, MetricYawDeviation, MetricPredictedPathDeviation}
}

// HorizonMetricName returns the output key for the predicted-path
// metric at one horizon, e.g. "predicted_path_deviation_5.00".
func HorizonMetricName(h time.Duration) string {
	return fmt.Sprintf("%s_%.2f", MetricPredictedPathDeviation, h.Seconds())
}

// Params configures the deviation metrics engine.
type Params struct {
	// PredictionHorizons are the evaluation horizons for the predicted
	// path metric. The maximum horizon doubles as the evaluation delay
	// and, times two, as the history retention window.
	PredictionHorizons []time.Duration

	// SmoothingWindowSize is the box-filter window, in poses, used when
	// rebuilding history paths.
	SmoothingWindowSize int

	// Metrics selects the metric families CalculateAll evaluates.
	Metrics []Metric

	// CheckDeviation gates history tracking per object class. Classes
	// mapping to false are dropped at ingest. A nil map tracks every
	// class.
	CheckDeviation map[ObjectClass]bool

	// IncrementalSmoothing switches path rebuilds to the append-only
	// fast path, falling back to full rebuilds for mutated tracks.
	IncrementalSmoothing bool
}

// DefaultParams returns the engine defaults: horizons 1/2/3/5 s, an
// 11-pose smoothing window, all metric families, and deviation checks
// for every class except unknown.
func DefaultParams() Params {
	return Params{
		PredictionHorizons: []time.Duration{
			1 * time.Second, 2 * time.Second, 3 * time.Second, 5 * time.Second,
		},
		SmoothingWindowSize: 11,
		Metrics:             AllMetrics(),
		CheckDeviation: map[ObjectClass]bool{
			ClassUnknown:    false,
			ClassCar:        true,
			ClassTruck:      true,
			ClassBus:        true,
			ClassTrailer:    true,
			ClassMotorcycle: true,
			ClassBicycle:    true,
			ClassPedestrian: true,
		},
	}
}

// EvaluationDelay returns the maximum configured horizon, or
// ErrNoHorizons when the horizon list is empty.
func (p Params) EvaluationDelay() (time.Duration, error) {
	if len(p.PredictionHorizons) == 0 {
		return 0, ErrNoHorizons
	}
	max := p.PredictionHorizons[0]
	for _, h := range p.PredictionHorizons[1:] {
		if h > max {
			max = h
		}
	}
	return max, nil
}

func (p Params) trackable(class ObjectClass) bool {
	if p.CheckDeviation == nil {
		return true
	}
	return p.CheckDeviation[class]
}

// IngestResult summarizes one ingest cycle for logging and diagnostics.
type IngestResult struct {
	Ingested       int
	SkippedByClass int
	Evicted        int
	Purged         []ObjectKey
}

// Calculator runs delayed-evaluation deviation metrics over a history
// store. Ingest and Calculate are driven from a single runner goroutine
// per cycle; the debug accessors may be called concurrently.
type Calculator struct {
	params Params
	store  *HistoryStore

	stampNanos int64

	mu    sync.Mutex
	debug map[ObjectKey]DebugObject
}

// NewCalculator wires a calculator to its history store. The horizon
// list and window size are validated here so a broken configuration
// fails at startup instead of mid-session.
func NewCalculator(params Params, store *HistoryStore) (*Calculator, error) {
	if _, err := params.EvaluationDelay(); err != nil {
		return nil, err
	}
	if params.SmoothingWindowSize < 1 {
		return nil, fmt.Errorf("smoothing window size %d: must be at least 1", params.SmoothingWindowSize)
	}
	if len(params.Metrics) == 0 {
		params.Metrics = AllMetrics()
	}
	return &Calculator{
		params: params,
		store:  store,
		debug:  make(map[ObjectKey]DebugObject),
	}, nil
}

// Store returns the underlying history store for read-only use by
// monitor handlers.
func (c *Calculator) Store() *HistoryStore { return c.store }

// Ingest stores one detection batch, evicts history older than twice
// the evaluation delay, and rebuilds every object's smoothed path.
// Objects whose class is not deviation-checked are dropped before they
// touch the store.
func (c *Calculator) Ingest(batch DetectionBatch) (IngestResult, error) {
	delay, err := c.params.EvaluationDelay()
	if err != nil {
		return IngestResult{}, err
	}
	c.stampNanos = batch.StampNanos

	var res IngestResult
	for _, obj := range batch.Objects {
		if !c.params.trackable(obj.Class) {
			res.SkippedByClass++
			continue
		}
		c.store.Ingest(batch.StampNanos, obj)
		res.Ingested++
	}

	res.Evicted, res.Purged = c.store.Evict(batch.StampNanos, 2*delay)
	if len(res.Purged) > 0 {
		c.mu.Lock()
		for _, key := range res.Purged {
			delete(c.debug, key)
		}
		c.mu.Unlock()
	}

	if c.params.IncrementalSmoothing {
		c.store.RebuildPathsIncremental(c.params.SmoothingWindowSize)
	} else {
		c.store.RebuildPaths(c.params.SmoothingWindowSize)
	}
	return res, nil
}

// Calculate evaluates one metric family against the batch that was
// current one evaluation delay before the latest ingest. It returns
// (nil, nil) while the store has not yet accumulated enough history;
// metrics with no contributing samples are omitted from the result.
func (c *Calculator) Calculate(metric Metric) (MetricStatMap, error) {
	if c.store.KeyCount() == 0 {
		return nil, nil
	}
	delay, err := c.params.EvaluationDelay()
	if err != nil {
		return nil, err
	}
	target := c.stampNanos - int64(delay)
	if !c.store.Reached(target) {
		return nil, nil
	}
	batch := c.store.BatchAt(target)

	switch metric {
	case MetricLateralDeviation:
		return c.lateralDeviation(batch, target), nil
	case MetricYawDeviation:
		return c.yawDeviation(batch, target), nil
	case MetricPredictedPathDeviation:
		return c.predictedPathDeviation(batch, target), nil
	}
	return nil, fmt.Errorf("unknown metric %v", metric)
}

// CalculateAll evaluates every configured metric family and merges the
// results. A nil map with a nil error means the cycle produced nothing,
// either because history is still too shallow or because no object
// contributed.
func (c *Calculator) CalculateAll() (MetricStatMap, error) {
	var out MetricStatMap
	for _, m := range c.params.Metrics {
		res, err := c.Calculate(m)
		if err != nil {
			return nil, err
		}
		if len(res) == 0 {
			continue
		}
		if out == nil {
			out = MetricStatMap{}
		}
		out.Merge(res)
	}
	return out, nil
}

func (c *Calculator) lateralDeviation(batch []ObjectSnapshot, targetNanos int64) MetricStatMap {
	var stat Stat
	for _, obj := range batch {
		if !c.store.HasReached(obj.Key, targetNanos) {
			continue
		}
		path := c.store.SmoothedPath(obj.Key)
		if len(path) == 0 {
			continue
		}
		stat.Add(CalcLateralDeviation(path, obj.Pose))
	}
	out := MetricStatMap{}
	if stat.Count() > 0 {
		out[MetricLateralDeviation.String()] = stat
	}
	return out
}

func (c *Calculator) yawDeviation(batch []ObjectSnapshot, targetNanos int64) MetricStatMap {
	var stat Stat
	for _, obj := range batch {
		if !c.store.HasReached(obj.Key, targetNanos) {
			continue
		}
		path := c.store.SmoothedPath(obj.Key)
		if len(path) == 0 {
			continue
		}
		stat.Add(CalcYawDeviation(path, obj.Pose))
	}
	out := MetricStatMap{}
	if stat.Count() > 0 {
		out[MetricYawDeviation.String()] = stat
	}
	return out
}

func (c *Calculator) predictedPathDeviation(batch []ObjectSnapshot, targetNanos int64) MetricStatMap {
	out := MetricStatMap{}
	for _, h := range c.params.PredictionHorizons {
		if stat := c.horizonDeviation(batch, targetNanos, h); stat.Count() > 0 {
			out[HorizonMetricName(h)] = stat
		}
	}
	return out
}

// horizonDeviation scores every object's best hypothesis within one
// horizon and folds the winning distances into a single statistic. The
// sum (not the mean) ranks hypotheses, so one with fewer valid
// comparison points is not normalized into an advantage.
func (c *Calculator) horizonDeviation(batch []ObjectSnapshot, targetNanos int64, horizon time.Duration) Stat {
	var stat Stat
	for _, obj := range batch {
		distances, pairs, winner := c.bestHypothesis(obj, targetNanos, horizon)
		if winner < 0 {
			continue
		}
		for _, d := range distances {
			stat.Add(d)
		}
		c.mu.Lock()
		c.debug[obj.Key] = DebugObject{Snapshot: obj, WinnerIndex: winner, Pairs: pairs}
		c.mu.Unlock()
	}
	return stat
}

// bestHypothesis walks each predicted-path hypothesis of obj against
// recorded history and selects the one with the minimum summed
// distance; ties keep the lowest hypothesis index. Hypotheses with no
// valid comparison point are skipped. winner is -1 when nothing could
// be compared.
func (c *Calculator) bestHypothesis(obj ObjectSnapshot, stampNanos int64, horizon time.Duration) (distances []float64, pairs []PosePair, winner int) {
	winner = -1
	var bestSum float64

	for idx, hyp := range obj.Paths {
		if len(hyp.Poses) == 0 || hyp.TimeStep <= 0 {
			continue
		}
		var (
			ds []float64
			ps []PosePair
		)
		for j := range hyp.Poses {
			elapsed := time.Duration(j) * hyp.TimeStep
			if elapsed > horizon {
				break
			}
			at := stampNanos + int64(elapsed)
			if !c.store.HasReached(obj.Key, at) {
				continue
			}
			hist, ok := c.store.SnapshotNear(obj.Key, at)
			if !ok {
				continue
			}
			ds = append(ds, Distance2D(hyp.Poses[j], hist.Pose))
			ps = append(ps, PosePair{Predicted: hyp.Poses[j], Actual: hist.Pose})
		}
		if len(ds) == 0 {
			continue
		}
		sum := 0.0
		for _, d := range ds {
			sum += d
		}
		if winner < 0 || sum < bestSum {
			bestSum = sum
			distances = ds
			pairs = ps
			winner = idx
		}
	}
	return distances, pairs, winner
}

// DebugObjects returns a deep copy of the per-object debug structures
// from the most recent predicted-path evaluation.
func (c *Calculator) DebugObjects() map[ObjectKey]DebugObject {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[ObjectKey]DebugObject, len(c.debug))
	for key, d := range c.debug {
		out[key] = d.clone()
	}
	return out
}

// DebugObject returns the debug structure for one object key.
func (c *Calculator) DebugObject(key ObjectKey) (DebugObject, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.debug[key]
	if !ok {
		return DebugObject{}, false
	}
	return d.clone(), true
}
