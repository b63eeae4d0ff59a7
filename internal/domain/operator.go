package domain

import "time"

// Role of a caller as asserted by the external identity layer.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleChecker  Role = "checker"
)

// Operator is the person driving a vehicle. An operator holds at most one
// live claim at a time; the active fields mirror the claimed vehicle's side.
type Operator struct {
	OperatorID      string
	Name            string
	Role            Role
	ActiveVehicleID *string
	ActiveSince     *time.Time
	Direction       Direction
}

func (o *Operator) HasActiveClaim() bool {
	return o.ActiveVehicleID != nil
}
