package perception

import (
	"sync"
	"time"
)

// CycleStats tracks cumulative evaluation counters across a run. All
// methods are safe for concurrent use; the runner writes while monitor
// handlers read snapshots.
type CycleStats struct {
	mu             sync.Mutex
	cycles         int64
	objects        int64
	skippedByClass int64
	evicted        int64
	purged         int64
	resultCycles   int64
	lastStampNanos int64
	started        time.Time
}

// NewCycleStats returns a zeroed counter set with the uptime clock
// started.
func NewCycleStats() *CycleStats {
	return &CycleStats{started: time.Now()}
}

// RecordIngest folds one ingest cycle's result into the counters.
func (s *CycleStats) RecordIngest(res IngestResult, stampNanos int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	s.objects += int64(res.Ingested)
	s.skippedByClass += int64(res.SkippedByClass)
	s.evicted += int64(res.Evicted)
	s.purged += int64(len(res.Purged))
	s.lastStampNanos = stampNanos
}

// RecordResults notes that the current cycle produced n metric entries.
func (s *CycleStats) RecordResults(n int) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resultCycles++
}

// CycleStatsSnapshot is a point-in-time copy of the counters for JSON
// endpoints and periodic logging.
type CycleStatsSnapshot struct {
	Cycles         int64   `json:"cycles"`
	Objects        int64   `json:"objects"`
	SkippedByClass int64   `json:"skipped_by_class"`
	Evicted        int64   `json:"evicted"`
	Purged         int64   `json:"purged"`
	ResultCycles   int64   `json:"result_cycles"`
	LastStampNanos int64   `json:"last_stamp_nanos"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// Snapshot returns the current counter values.
func (s *CycleStats) Snapshot() CycleStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CycleStatsSnapshot{
		Cycles:         s.cycles,
		Objects:        s.objects,
		SkippedByClass: s.skippedByClass,
		Evicted:        s.evicted,
		Purged:         s.purged,
		ResultCycles:   s.resultCycles,
		LastStampNanos: s.lastStampNanos,
		UptimeSeconds:  time.Since(s.started).Seconds(),
	}
}
