package perception

import "math"

// CalcLateralDeviation returns the absolute lateral offset of the
// target pose from the path pose nearest to it, measured in that path
// pose's local frame. Returns 0 for an empty path.
func CalcLateralDeviation(path []Pose, target Pose) float64 {
	i := NearestPoseIndex(path, target)
	if i < 0 {
		return 0
	}
	return math.Abs(LateralOffset(path[i], target))
}

// CalcYawDeviation returns the absolute heading difference, wrapped to
// [-pi, pi), between the target pose and the path pose nearest to it.
// Returns 0 for an empty path.
func CalcYawDeviation(path []Pose, target Pose) float64 {
	i := NearestPoseIndex(path, target)
	if i < 0 {
		return 0
	}
	return math.Abs(NormalizeRadian(target.Yaw - path[i].Yaw))
}
