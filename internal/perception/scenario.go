package perception

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Pattern selects how a scenario injects lateral deviation into the
// generated trajectory.
type Pattern string

const (
	// PatternStraight emits a perfectly straight trajectory.
	PatternStraight Pattern = "straight"
	// PatternOffset emits a straight trajectory displaced laterally by
	// the configured deviation at every step.
	PatternOffset Pattern = "offset"
	// PatternSpike emits the deviation at exactly one step (SpikeAt)
	// and zero everywhere else.
	PatternSpike Pattern = "spike"
	// PatternOscillation alternates +deviation/-deviation every step.
	// The step at SpikeAt emits zero without consuming a sign flip, so
	// the alternation resumes where it left off.
	PatternOscillation Pattern = "oscillation"
)

// ParsePattern maps a pattern name from flags or configuration.
func ParsePattern(name string) (Pattern, error) {
	switch Pattern(name) {
	case PatternStraight, PatternOffset, PatternSpike, PatternOscillation:
		return Pattern(name), nil
	}
	return "", fmt.Errorf("unknown pattern %q", name)
}

// Scenario generates synthetic detection batches for one object moving
// along +X at constant velocity, with a lateral deviation injected per
// the pattern. Each batch carries a single predicted-path hypothesis
// sampled at TimeStep out to Horizon, which simply extrapolates the
// current motion.
type Scenario struct {
	Key       ObjectKey
	Class     ObjectClass
	Velocity  float64       // meters per second along +X
	TimeStep  time.Duration // spacing of batches and of path poses
	Horizon   time.Duration // predicted path length
	Deviation float64       // lateral offset magnitude
	Pattern   Pattern
	SpikeAt   time.Duration // elapsed time of the spike / oscillation gap; negative disables
	Start     time.Time     // stamp of the first batch
}

// DefaultScenario returns a car driving 2 m/s with batches every 0.5 s
// and 10 s predicted paths, starting now.
func DefaultScenario() Scenario {
	return Scenario{
		Key:      ObjectKey(uuid.NewString()),
		Class:    ClassCar,
		Velocity: 2.0,
		TimeStep: 500 * time.Millisecond,
		Horizon:  10 * time.Second,
		Pattern:  PatternStraight,
		Start:    time.Now(),
	}
}

// Validate checks the scenario knobs.
func (s Scenario) Validate() error {
	if s.Key == "" {
		return fmt.Errorf("scenario key must not be empty")
	}
	if s.TimeStep <= 0 {
		return fmt.Errorf("time step %v: must be positive", s.TimeStep)
	}
	if s.Horizon < 0 {
		return fmt.Errorf("horizon %v: must not be negative", s.Horizon)
	}
	if _, err := ParsePattern(string(s.Pattern)); err != nil {
		return err
	}
	return nil
}

// DeviationAt returns the lateral deviation injected at the given
// elapsed time.
func (s Scenario) DeviationAt(elapsed time.Duration) float64 {
	switch s.Pattern {
	case PatternOffset:
		return s.Deviation
	case PatternSpike:
		if elapsed == s.SpikeAt {
			return s.Deviation
		}
		return 0
	case PatternOscillation:
		if s.SpikeAt >= 0 && elapsed == s.SpikeAt {
			return 0
		}
		step := elapsed / s.TimeStep
		if s.SpikeAt >= 0 && s.SpikeAt < elapsed && s.SpikeAt%s.TimeStep == 0 {
			step--
		}
		if step%2 == 0 {
			return s.Deviation
		}
		return -s.Deviation
	}
	return 0
}

// BatchAt builds the detection batch for the given elapsed time since
// Start. The object's pose and every predicted pose share the same
// lateral deviation, mirroring a producer whose whole estimate is
// shifted for that cycle.
func (s Scenario) BatchAt(elapsed time.Duration) DetectionBatch {
	return s.BatchWithDeviation(elapsed, s.DeviationAt(elapsed))
}

// BatchWithDeviation builds the batch for elapsed time with an explicit
// deviation, bypassing the pattern.
func (s Scenario) BatchWithDeviation(elapsed time.Duration, deviation float64) DetectionBatch {
	n := int(s.Horizon/s.TimeStep) + 1
	poses := make([]Pose, 0, n)
	for j := 0; j < n; j++ {
		t := elapsed + time.Duration(j)*s.TimeStep
		poses = append(poses, Pose{X: s.Velocity * t.Seconds(), Y: deviation})
	}
	obj := ObjectSnapshot{
		Key:   s.Key,
		Class: s.Class,
		Pose:  Pose{X: s.Velocity * elapsed.Seconds(), Y: deviation},
		Paths: []PredictedPath{{Poses: poses, TimeStep: s.TimeStep, Confidence: 1.0}},
	}
	return DetectionBatch{
		StampNanos: s.Start.Add(elapsed).UnixNano(),
		Objects:    []ObjectSnapshot{obj},
	}
}

// Batches generates every batch from elapsed 0 through total inclusive,
// one per TimeStep.
func (s Scenario) Batches(total time.Duration) []DetectionBatch {
	var out []DetectionBatch
	for step := 0; ; step++ {
		elapsed := time.Duration(step) * s.TimeStep
		if elapsed > total {
			break
		}
		out = append(out, s.BatchAt(elapsed))
	}
	return out
}
