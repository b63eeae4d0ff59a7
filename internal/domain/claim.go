package domain

import "time"

// Claim is the live, exclusive binding of one operator to one vehicle.
type Claim struct {
	OperatorID string
	VehicleID  string
	Direction  Direction
	Since      time.Time
}
