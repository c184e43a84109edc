package perception

// minHeadingTravel is the minimum planar travel between consecutive
// smoothed poses for a segment bearing to be trusted as a heading.
// Below it the previous pose's heading is carried forward.
const minHeadingTravel = 0.1

// AverageFilterPath returns a smoothed copy of path. It is a pure
// function of its inputs.
//
// Positions are box-filtered over [i-windowSize/2, i+windowSize/2]
// clamped to the sequence bounds, so boundary windows are simply
// shorter. Headings are then rebuilt from the smoothed positions: each
// pose takes the bearing toward its successor, a pose that barely moved
// carries its predecessor's heading, and the final pose copies the
// second-to-last. A single-element path is returned unchanged.
func AverageFilterPath(path []Pose, windowSize int) []Pose {
	if len(path) == 0 {
		return nil
	}
	half := windowSize / 2
	if half < 0 {
		half = 0
	}
	out := make([]Pose, len(path))
	for i := range path {
		out[i] = smoothedAt(path, i, half)
	}
	rebuildHeadings(out, 0)
	return out
}

// smoothedAt box-filters the position at index i over a window of
// radius half clamped to the path bounds. The heading is left as-is;
// callers rebuild it afterwards.
func smoothedAt(path []Pose, i, half int) Pose {
	lo := i - half
	if lo < 0 {
		lo = 0
	}
	hi := i + half
	if hi > len(path)-1 {
		hi = len(path) - 1
	}
	var sx, sy, sz float64
	for j := lo; j <= hi; j++ {
		sx += path[j].X
		sy += path[j].Y
		sz += path[j].Z
	}
	n := float64(hi - lo + 1)
	p := path[i]
	p.X = sx / n
	p.Y = sy / n
	p.Z = sz / n
	return p
}

// rebuildHeadings recomputes yaw from index from onward. Poses before
// from must already carry final headings, since the stationary rule
// copies the predecessor's heading forward.
func rebuildHeadings(out []Pose, from int) {
	if len(out) < 2 {
		return
	}
	if from < 0 {
		from = 0
	}
	for i := from; i < len(out); i++ {
		switch {
		case i == len(out)-1:
			out[i].Yaw = out[i-1].Yaw
		case i > 0 && Distance2D(out[i], out[i+1]) < minHeadingTravel:
			out[i].Yaw = out[i-1].Yaw
		default:
			out[i].Yaw = AzimuthAngle(out[i], out[i+1])
		}
	}
}

// AppendSmoothed extends a previously smoothed path by one raw pose
// without re-filtering the stable prefix. raw is the full raw sequence
// including the new final pose; prev is the smoothed result for
// raw[:len(raw)-1]. Only the trailing poses whose filter windows cover
// the new entry are recomputed, which reproduces
// AverageFilterPath(raw, windowSize) exactly. Inputs too short for a
// stable prefix fall back to the full filter.
func AppendSmoothed(raw []Pose, prev []Pose, windowSize int) []Pose {
	n := len(raw)
	half := windowSize / 2
	if half < 0 {
		half = 0
	}
	if len(prev) != n-1 || n <= 2*half+2 {
		return AverageFilterPath(raw, windowSize)
	}
	out := make([]Pose, n)
	copy(out, prev)
	start := n - 1 - half
	for i := start; i < n; i++ {
		out[i] = smoothedAt(raw, i, half)
	}
	rebuildHeadings(out, start-1)
	return out
}
