package perception

import (
	"math"
	"sort"
	"sync"
	"time"
)

// trackEntry is one stored observation of an object.
type trackEntry struct {
	stampNanos int64
	snap       ObjectSnapshot
}

// HistoryPath carries the raw and smoothed pose sequences derived from
// one object's track. Both slices hold exactly one pose per track entry
// as of the last rebuild. The raw path is kept for diagnostics only;
// metrics read the smoothed path.
type HistoryPath struct {
	Raw      []Pose `json:"raw"`
	Smoothed []Pose `json:"smoothed"`
}

// HistoryStore holds per-object observation tracks ordered by
// timestamp, plus the history paths rebuilt from them. The runner
// writes from a single goroutine per cycle; monitor handlers read
// concurrently through the RWMutex.
type HistoryStore struct {
	mu     sync.RWMutex
	tracks map[ObjectKey][]trackEntry
	paths  map[ObjectKey]HistoryPath

	// clean counts, per key, how many leading track entries still
	// match the raw path stored at the last rebuild. It gates the
	// incremental smoothing fast path.
	clean map[ObjectKey]int
}

// NewHistoryStore returns an empty store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		tracks: make(map[ObjectKey][]trackEntry),
		paths:  make(map[ObjectKey]HistoryPath),
		clean:  make(map[ObjectKey]int),
	}
}

// Ingest records one observation. An observation at a timestamp already
// present in the key's track replaces the stored snapshot; out-of-order
// arrivals are inserted at their sorted position, so track timestamps
// stay strictly increasing regardless of caller ordering.
func (s *HistoryStore) Ingest(stampNanos int64, snap ObjectSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	track := s.tracks[snap.Key]
	i := sort.Search(len(track), func(i int) bool { return track[i].stampNanos >= stampNanos })
	entry := trackEntry{stampNanos: stampNanos, snap: snap.Clone()}

	switch {
	case i < len(track) && track[i].stampNanos == stampNanos:
		track[i] = entry
		s.markDirty(snap.Key, i)
	case i == len(track):
		track = append(track, entry)
	default:
		track = append(track, trackEntry{})
		copy(track[i+1:], track[i:])
		track[i] = entry
		s.markDirty(snap.Key, i)
	}
	s.tracks[snap.Key] = track
}

// markDirty caps the clean prefix after a mutation at index i.
func (s *HistoryStore) markDirty(key ObjectKey, i int) {
	if n, ok := s.clean[key]; ok && n > i {
		s.clean[key] = i
	}
}

// Evict drops, from every track, the oldest contiguous run of entries
// strictly older than nowNanos-retention, stopping at the first entry
// inside the window. The newest entry of a track is never dropped even
// when it is stale, so a late or paused object keeps its most recent
// observation. Any key whose track ends up empty is purged entirely,
// paths included. Returns the number of entries removed and the purged
// keys.
func (s *HistoryStore) Evict(nowNanos int64, retention time.Duration) (int, []ObjectKey) {
	cutoff := nowNanos - int64(retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	var purged []ObjectKey
	for key, track := range s.tracks {
		i := 0
		for i < len(track)-1 && track[i].stampNanos < cutoff {
			i++
		}
		if i > 0 {
			track = append(track[:0:0], track[i:]...)
			s.tracks[key] = track
			s.clean[key] = 0
			removed += i
		}
		if len(track) == 0 {
			delete(s.tracks, key)
			delete(s.paths, key)
			delete(s.clean, key)
			purged = append(purged, key)
		}
	}
	return removed, purged
}

// RebuildPaths regenerates every key's history path from scratch: the
// track's poses in timestamp order form the raw path, and the smoothing
// filter with the given window produces the smoothed path.
func (s *HistoryStore) RebuildPaths(window int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, track := range s.tracks {
		raw := rawPoses(track)
		s.paths[key] = HistoryPath{Raw: raw, Smoothed: AverageFilterPath(raw, window)}
		s.clean[key] = len(raw)
	}
}

// RebuildPathsIncremental behaves exactly like RebuildPaths but reuses
// the previous smoothed path when a track has only grown by appended
// entries since the last rebuild, recomputing only the trailing
// window-affected poses. Tracks mutated in any other way (overwrite,
// out-of-order insert, eviction) fall back to the full rebuild.
func (s *HistoryStore) RebuildPathsIncremental(window int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, track := range s.tracks {
		raw := rawPoses(track)
		prev, ok := s.paths[key]
		if ok && s.clean[key] == len(prev.Raw) && len(prev.Raw) <= len(raw) {
			smoothed := prev.Smoothed
			for m := len(prev.Raw); m < len(raw); m++ {
				smoothed = AppendSmoothed(raw[:m+1], smoothed, window)
			}
			s.paths[key] = HistoryPath{Raw: raw, Smoothed: smoothed}
		} else {
			s.paths[key] = HistoryPath{Raw: raw, Smoothed: AverageFilterPath(raw, window)}
		}
		s.clean[key] = len(raw)
	}
}

func rawPoses(track []trackEntry) []Pose {
	raw := make([]Pose, len(track))
	for i := range track {
		raw[i] = track[i].snap.Pose
	}
	return raw
}

// ClosestTimestamp finds, across all tracks, the stored timestamp with
// the smallest absolute distance to the query. Each track contributes
// only its lower-bound entry and that entry's predecessor. Ties keep
// the first candidate found; keys are scanned in sorted order so the
// result is deterministic. Returns ok=false when the store is empty.
func (s *HistoryStore) ClosestTimestamp(queryNanos int64) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closestTimestampLocked(queryNanos)
}

func (s *HistoryStore) closestTimestampLocked(queryNanos int64) (int64, bool) {
	var (
		closest int64
		found   bool
		minDist = int64(math.MaxInt64)
	)
	consider := func(stamp int64) {
		d := stamp - queryNanos
		if d < 0 {
			d = -d
		}
		if d < minDist {
			minDist = d
			closest = stamp
			found = true
		}
	}
	for _, key := range s.sortedKeysLocked() {
		track := s.tracks[key]
		i := sort.Search(len(track), func(i int) bool { return track[i].stampNanos >= queryNanos })
		if i < len(track) {
			consider(track[i].stampNanos)
		}
		if i > 0 {
			consider(track[i-1].stampNanos)
		}
	}
	return closest, found
}

// SnapshotAt returns the snapshot stored for key at exactly stampNanos.
func (s *HistoryStore) SnapshotAt(key ObjectKey, stampNanos int64) (ObjectSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotAtLocked(key, stampNanos)
}

func (s *HistoryStore) snapshotAtLocked(key ObjectKey, stampNanos int64) (ObjectSnapshot, bool) {
	track := s.tracks[key]
	i := sort.Search(len(track), func(i int) bool { return track[i].stampNanos >= stampNanos })
	if i < len(track) && track[i].stampNanos == stampNanos {
		return track[i].snap.Clone(), true
	}
	return ObjectSnapshot{}, false
}

// SnapshotNear resolves the store-wide closest timestamp to the query,
// then returns key's snapshot at exactly that resolved timestamp. The
// resolution is deliberately independent of the key: a timestamp that
// exists only in some other object's track yields a miss here.
func (s *HistoryStore) SnapshotNear(key ObjectKey, queryNanos int64) (ObjectSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stamp, ok := s.closestTimestampLocked(queryNanos)
	if !ok {
		return ObjectSnapshot{}, false
	}
	return s.snapshotAtLocked(key, stamp)
}

// BatchAt resolves the store-wide closest timestamp to the query once,
// then returns the snapshots of every object whose track has an entry
// at exactly that timestamp, in sorted key order. Objects without an
// exact entry at the resolved timestamp are excluded.
func (s *HistoryStore) BatchAt(queryNanos int64) []ObjectSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stamp, ok := s.closestTimestampLocked(queryNanos)
	if !ok {
		return nil
	}
	var batch []ObjectSnapshot
	for _, key := range s.sortedKeysLocked() {
		if snap, ok := s.snapshotAtLocked(key, stamp); ok {
			batch = append(batch, snap)
		}
	}
	return batch
}

// HasReached reports whether key has a track whose oldest timestamp is
// at or before stampNanos, i.e. whether history depth suffices to
// evaluate that moment for this object.
func (s *HistoryStore) HasReached(key ObjectKey, stampNanos int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	track := s.tracks[key]
	return len(track) > 0 && track[0].stampNanos <= stampNanos
}

// Reached reports whether any track's oldest timestamp is at or before
// stampNanos. An empty store trivially reports true; callers that need
// data must guard on KeyCount separately.
func (s *HistoryStore) Reached(stampNanos int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	oldest := int64(math.MaxInt64)
	found := false
	for _, track := range s.tracks {
		if len(track) > 0 && track[0].stampNanos < oldest {
			oldest = track[0].stampNanos
			found = true
		}
	}
	if !found {
		return true
	}
	return oldest <= stampNanos
}

// SmoothedPath returns the smoothed history path for key, or nil when
// the key is unknown or paths have not been rebuilt yet. The returned
// slice is shared; callers must not mutate it.
func (s *HistoryStore) SmoothedPath(key ObjectKey) []Pose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paths[key].Smoothed
}

// PathCopy returns a deep copy of key's history path for handlers that
// outlive the current cycle.
func (s *HistoryStore) PathCopy(key ObjectKey) (HistoryPath, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.paths[key]
	if !ok {
		return HistoryPath{}, false
	}
	return HistoryPath{
		Raw:      append([]Pose(nil), p.Raw...),
		Smoothed: append([]Pose(nil), p.Smoothed...),
	}, true
}

// OldestTimestamp returns the oldest stored timestamp for key.
func (s *HistoryStore) OldestTimestamp(key ObjectKey) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	track := s.tracks[key]
	if len(track) == 0 {
		return 0, false
	}
	return track[0].stampNanos, true
}

// Keys returns all tracked object keys in sorted order.
func (s *HistoryStore) Keys() []ObjectKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedKeysLocked()
}

func (s *HistoryStore) sortedKeysLocked() []ObjectKey {
	keys := make([]ObjectKey, 0, len(s.tracks))
	for key := range s.tracks {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// KeyCount returns the number of tracked objects.
func (s *HistoryStore) KeyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// EntryCount returns the total number of stored observations across all
// tracks.
func (s *HistoryStore) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, track := range s.tracks {
		n += len(track)
	}
	return n
}

// TrackLen returns the number of stored observations for key.
func (s *HistoryStore) TrackLen(key ObjectKey) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks[key])
}
