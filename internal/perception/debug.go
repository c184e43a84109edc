package perception

// PosePair matches one predicted pose against the pose the object was
// actually recorded at for the same absolute timestamp.
type PosePair struct {
	Predicted Pose `json:"predicted"`
	Actual    Pose `json:"actual"`
}

// DebugObject captures, for one object, the snapshot that was evaluated
// and the matched pose pairs of its winning predicted-path hypothesis.
// It exists for visualization only and plays no part in the metric
// values themselves.
type DebugObject struct {
	Snapshot    ObjectSnapshot `json:"snapshot"`
	WinnerIndex int            `json:"winner_index"`
	Pairs       []PosePair     `json:"pairs"`
}

// clone returns a deep copy safe to hand to another goroutine.
func (d DebugObject) clone() DebugObject {
	d.Snapshot = d.Snapshot.Clone()
	d.Pairs = append([]PosePair(nil), d.Pairs...)
	return d
}
