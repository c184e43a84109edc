package sqlite

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/prediction.report/internal/perception"
)

// MetricCycle is one persisted metric family summary for a single
// evaluation cycle.
type MetricCycle struct {
	ID              string  `json:"id"`
	CycleStampNanos int64   `json:"cycle_stamp_nanos"`
	Metric          string  `json:"metric"`
	SampleCount     int     `json:"sample_count"`
	Mean            float64 `json:"mean"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	CreatedAt       int64   `json:"created_at"`
}

// MetricSummary aggregates the per-cycle means of one metric family
// across everything recorded for it.
type MetricSummary struct {
	Metric string  `json:"metric"`
	Cycles int     `json:"cycles"`
	Mean   float64 `json:"mean"`
	P50    float64 `json:"p50"`
	P85    float64 `json:"p85"`
	P95    float64 `json:"p95"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// MetricsStore provides persistence for per-cycle metric results.
type MetricsStore struct {
	db *sql.DB
}

// NewMetricsStore creates a new MetricsStore.
func NewMetricsStore(db *sql.DB) *MetricsStore {
	return &MetricsStore{db: db}
}

// InsertCycle persists one row per metric family for a single evaluation
// cycle. All rows for the cycle commit atomically.
func (s *MetricsStore) InsertCycle(stampNanos int64, stats perception.MetricStatMap) error {
	if len(stats) == 0 {
		return nil
	}
	createdAt := time.Now().UnixNano()

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin metric cycle tx: %w", err)
		}

		for _, name := range names {
			st := stats[name]
			if _, err := tx.Exec(`
				INSERT INTO metric_cycles (
					id, cycle_stamp_nanos, metric, sample_count,
					mean_value, min_value, max_value, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.New().String(), stampNanos, name, st.Count(),
				st.Mean(), st.Min(), st.Max(), createdAt,
			); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert metric cycle %s: %w", name, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit metric cycle tx: %w", err)
		}
		return nil
	})
}

// ListByMetric returns the most recent cycles for one metric family,
// newest first.
func (s *MetricsStore) ListByMetric(metric string, limit int) ([]MetricCycle, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, cycle_stamp_nanos, metric, sample_count,
		       mean_value, min_value, max_value, created_at
		FROM metric_cycles
		WHERE metric = ?
		ORDER BY cycle_stamp_nanos DESC
		LIMIT ?`, metric, limit)
	if err != nil {
		return nil, fmt.Errorf("query metric cycles: %w", err)
	}
	defer rows.Close()

	var cycles []MetricCycle
	for rows.Next() {
		c, err := scanMetricCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// Metrics returns the distinct metric names recorded so far, sorted.
func (s *MetricsStore) Metrics() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT metric FROM metric_cycles ORDER BY metric`)
	if err != nil {
		return nil, fmt.Errorf("query metric names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan metric name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// LatestCycle returns all metric rows recorded for the most recent
// evaluation cycle, ordered by metric name.
func (s *MetricsStore) LatestCycle() ([]MetricCycle, error) {
	var stamp sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(cycle_stamp_nanos) FROM metric_cycles`).Scan(&stamp)
	if err != nil {
		return nil, fmt.Errorf("query latest cycle stamp: %w", err)
	}
	if !stamp.Valid {
		return nil, fmt.Errorf("no metric cycles recorded")
	}

	rows, err := s.db.Query(`
		SELECT id, cycle_stamp_nanos, metric, sample_count,
		       mean_value, min_value, max_value, created_at
		FROM metric_cycles
		WHERE cycle_stamp_nanos = ?
		ORDER BY metric`, stamp.Int64)
	if err != nil {
		return nil, fmt.Errorf("query latest cycle: %w", err)
	}
	defer rows.Close()

	var cycles []MetricCycle
	for rows.Next() {
		c, err := scanMetricCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// SummarizeMeans computes distribution statistics over the per-cycle
// means of one metric family. Percentiles are linearly interpolated
// between neighbouring cycles.
func (s *MetricsStore) SummarizeMeans(metric string) (*MetricSummary, error) {
	rows, err := s.db.Query(`
		SELECT mean_value FROM metric_cycles
		WHERE metric = ?
		ORDER BY mean_value ASC`, metric)
	if err != nil {
		return nil, fmt.Errorf("query metric means: %w", err)
	}
	defer rows.Close()

	var means []float64
	for rows.Next() {
		var m float64
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan metric mean: %w", err)
		}
		means = append(means, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(means) == 0 {
		return nil, fmt.Errorf("metric %s not found", metric)
	}

	return &MetricSummary{
		Metric: metric,
		Cycles: len(means),
		Mean:   stat.Mean(means, nil),
		P50:    stat.Quantile(0.50, stat.LinInterp, means, nil),
		P85:    stat.Quantile(0.85, stat.LinInterp, means, nil),
		P95:    stat.Quantile(0.95, stat.LinInterp, means, nil),
		Min:    means[0],
		Max:    means[len(means)-1],
	}, nil
}

// scanMetricCycle scans a metric cycle row from a sql.Rows cursor.
func scanMetricCycle(rows *sql.Rows) (MetricCycle, error) {
	var c MetricCycle
	err := rows.Scan(
		&c.ID, &c.CycleStampNanos, &c.Metric, &c.SampleCount,
		&c.Mean, &c.Min, &c.Max, &c.CreatedAt,
	)
	if err != nil {
		return MetricCycle{}, fmt.Errorf("scan metric cycle row: %w", err)
	}
	return c, nil
}
