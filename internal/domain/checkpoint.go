package domain

// Checkpoint is a fixed control point along a route. A checkpoint may have a
// permanently assigned checker, used when a check-in names none explicitly.
type Checkpoint struct {
	CheckpointID      string
	Name              string
	Sequence          int
	AssignedCheckerID *string
	Lat               float64
	Lon               float64
}
