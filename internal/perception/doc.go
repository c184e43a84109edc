// Package perception owns the perception-quality data model: per-object
// detection history, smoothed actual-path reconstruction, and the
// deviation metrics that score predicted trajectories against the
// trajectory each object really followed.
//
// Responsibilities: time-ordered history storage with windowed
// eviction, nearest-timestamp lookup, path smoothing, delayed metric
// evaluation (lateral, yaw, multi-horizon predicted path), and the
// batch-driven runner that ties them together.
// Key types: HistoryStore, Calculator, DetectionBatch, Runner.
//
// Dependency rule: no SQL or HTTP code is allowed in this package.
// The storage and monitor layers depend on it, never the reverse.
package perception
