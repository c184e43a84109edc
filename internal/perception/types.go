package perception

import "time"

// ObjectKey identifies one tracked real-world object across detection
// cycles. Producers typically use a UUID string.
type ObjectKey string

// ObjectClass labels the detected object category. Classes gate history
// tracking: categories disabled in Params.CheckDeviation are dropped at
// ingest and never enter the history store.
type ObjectClass string

const (
	ClassUnknown    ObjectClass = "unknown"
	ClassCar        ObjectClass = "car"
	ClassTruck      ObjectClass = "truck"
	ClassBus        ObjectClass = "bus"
	ClassTrailer    ObjectClass = "trailer"
	ClassMotorcycle ObjectClass = "motorcycle"
	ClassBicycle    ObjectClass = "bicycle"
	ClassPedestrian ObjectClass = "pedestrian"
)

// AllClasses returns every known object class in a stable order.
func AllClasses() []ObjectClass {
	return []ObjectClass{
		ClassUnknown, ClassCar, ClassTruck, ClassBus,
		ClassTrailer, ClassMotorcycle, ClassBicycle, ClassPedestrian,
	}
}

// Pose is a planar pose with elevation: position in meters, heading in
// radians normalized to [-pi, pi).
type Pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z,omitempty"`
	Yaw float64 `json:"yaw,omitempty"`
}

// PredictedPath is one motion hypothesis attached to a detection: poses
// sampled every TimeStep with the first pose at the detection stamp
// itself, weighted by the producer's confidence.
type PredictedPath struct {
	Poses      []Pose        `json:"poses"`
	TimeStep   time.Duration `json:"time_step_nanos"`
	Confidence float64       `json:"confidence"`
}

// ObjectSnapshot is one object as reported in one detection cycle.
type ObjectSnapshot struct {
	Key   ObjectKey       `json:"key"`
	Class ObjectClass     `json:"class"`
	Pose  Pose            `json:"pose"`
	Paths []PredictedPath `json:"predicted_paths,omitempty"`
}

// Clone returns a deep copy whose predicted-path slices share no
// backing storage with the receiver.
func (o ObjectSnapshot) Clone() ObjectSnapshot {
	c := o
	if len(o.Paths) > 0 {
		c.Paths = make([]PredictedPath, len(o.Paths))
		for i, p := range o.Paths {
			c.Paths[i] = p
			c.Paths[i].Poses = append([]Pose(nil), p.Poses...)
		}
	}
	return c
}

// DetectionBatch is the full perception output for one cycle. Stamps
// are unix nanoseconds so that timestamp arithmetic and comparisons
// stay exact over long sessions.
type DetectionBatch struct {
	StampNanos int64            `json:"stamp_nanos"`
	Objects    []ObjectSnapshot `json:"objects"`
}

// Stamp returns the batch timestamp as wall-clock time.
func (b DetectionBatch) Stamp() time.Time {
	return time.Unix(0, b.StampNanos)
}
