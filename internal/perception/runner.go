package perception

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/prediction.report/internal/timeutil"
)

// BatchSource yields detection batches in arrival order. Next blocks
// until a batch is available; it returns io.EOF when the source is
// exhausted and ctx errors when the source was canceled.
type BatchSource interface {
	Next() (DetectionBatch, error)
}

// Archive persists per-cycle metric results. The sqlite metrics store
// implements it; a nil archive disables persistence.
type Archive interface {
	InsertCycle(stampNanos int64, stats MetricStatMap) error
}

// RunnerConfig wires the collaborators around a Runner.
type RunnerConfig struct {
	Source   BatchSource
	Archive  Archive        // optional
	Stats    *CycleStats    // optional
	Clock    timeutil.Clock // defaults to RealClock
	LogEvery time.Duration  // progress log cadence; 0 disables
}

// Runner drives one calculator from a batch source: per batch it runs
// ingest, evict, rebuild, evaluate, then persists and publishes the
// results. One Runner owns one Calculator.
type Runner struct {
	calc *Calculator
	cfg  RunnerConfig

	mu          sync.Mutex
	latest      MetricStatMap
	latestStamp int64
}

// NewRunner pairs a calculator with its batch source.
func NewRunner(calc *Calculator, cfg RunnerConfig) (*Runner, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("runner requires a batch source")
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Runner{calc: calc, cfg: cfg}, nil
}

// Calculator returns the driven calculator, for debug endpoints.
func (r *Runner) Calculator() *Calculator { return r.calc }

// Run consumes the source until it is exhausted or ctx is canceled.
// io.EOF from the source ends the run cleanly; configuration errors
// from the calculator are fatal and returned as-is. Archive write
// failures are logged and skipped so a slow or broken disk cannot stall
// evaluation.
func (r *Runner) Run(ctx context.Context) error {
	lastLog := r.cfg.Clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := r.cfg.Source.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("batch source: %w", err)
		}

		res, err := r.calc.Ingest(batch)
		if err != nil {
			return err
		}
		if r.cfg.Stats != nil {
			r.cfg.Stats.RecordIngest(res, batch.StampNanos)
		}

		results, err := r.calc.CalculateAll()
		if err != nil {
			return err
		}
		if len(results) > 0 {
			r.setLatest(batch.StampNanos, results)
			if r.cfg.Stats != nil {
				r.cfg.Stats.RecordResults(len(results))
			}
			if r.cfg.Archive != nil {
				if err := r.cfg.Archive.InsertCycle(batch.StampNanos, results); err != nil {
					Logf("[runner] archive write failed: %v", err)
				}
			}
		}

		if r.cfg.LogEvery > 0 && r.cfg.Clock.Since(lastLog) >= r.cfg.LogEvery {
			lastLog = r.cfg.Clock.Now()
			r.logProgress()
		}
	}
}

func (r *Runner) setLatest(stampNanos int64, results MetricStatMap) {
	copied := make(MetricStatMap, len(results))
	copied.Merge(results)
	r.mu.Lock()
	r.latest = copied
	r.latestStamp = stampNanos
	r.mu.Unlock()
}

// Latest returns the stamp and metric map of the most recent cycle that
// produced results. The map is a copy; ok is false before any results.
func (r *Runner) Latest() (int64, MetricStatMap, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return 0, nil, false
	}
	out := make(MetricStatMap, len(r.latest))
	out.Merge(r.latest)
	return r.latestStamp, out, true
}

func (r *Runner) logProgress() {
	stamp, latest, ok := r.Latest()
	if !ok {
		Logf("[runner] no metric results yet (history still filling)")
		return
	}
	for name, stat := range latest {
		Logf("[runner] t=%s %s count=%d mean=%.4f min=%.4f max=%.4f",
			time.Unix(0, stamp).Format(time.RFC3339Nano), name,
			stat.Count(), stat.Mean(), stat.Min(), stat.Max())
	}
}
