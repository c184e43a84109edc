package perception

import "math"

// Distance2D returns the planar distance between two poses, ignoring
// elevation.
func Distance2D(a, b Pose) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// AzimuthAngle returns the bearing of the segment from -> to, in
// radians measured counterclockwise from the +X axis.
func AzimuthAngle(from, to Pose) float64 {
	return math.Atan2(to.Y-from.Y, to.X-from.X)
}

// NormalizeRadian wraps an angle into the half-open interval [-pi, pi).
func NormalizeRadian(rad float64) float64 {
	v := math.Mod(rad, 2*math.Pi)
	if v >= -math.Pi && v < math.Pi {
		return v
	}
	return v - math.Copysign(2*math.Pi, v)
}

// LateralOffset returns the signed lateral displacement of target from
// the heading line through base: positive to the left of travel.
func LateralOffset(base Pose, target Pose) float64 {
	dx := target.X - base.X
	dy := target.Y - base.Y
	return math.Cos(base.Yaw)*dy - math.Sin(base.Yaw)*dx
}

// NearestPoseIndex returns the index of the path pose closest to p in
// the plane. Ties keep the lowest index. Returns -1 for an empty path.
func NearestPoseIndex(path []Pose, p Pose) int {
	best := -1
	bestDist := math.MaxFloat64
	for i := range path {
		dx := path[i].X - p.X
		dy := path[i].Y - p.Y
		if d := dx*dx + dy*dy; d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}
