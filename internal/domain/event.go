package domain

import "time"

// CheckpointEvent is the immutable record of a vehicle passing a checkpoint.
// ElapsedMinutes is derived from the immediately preceding event for the same
// vehicle at write time and never recomputed. After creation only
// PaymentState may change, PENDING -> PAID, once.
type CheckpointEvent struct {
	EventID        string
	VehicleID      string
	CheckpointID   string
	OperatorID     *string
	CheckerID      *string
	Timestamp      time.Time
	ElapsedMinutes *int
	Fee            int64
	PaymentState   PaymentState
	Lat            *float64
	Lon            *float64
}
