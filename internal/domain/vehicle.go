package domain

import "time"

// Vehicle is a single transit unit. At most one operator holds its claim at
// any instant; LockedUntil, when set, blocks new claims until the window
// rolls past or the vehicle is explicitly reopened.
type Vehicle struct {
	VehicleID      string
	Plate          string
	ClaimHolderID  *string
	ClaimDirection Direction
	ClaimSince     *time.Time
	LockedUntil    *time.Time
}

func (v *Vehicle) Claimed() bool {
	return v.ClaimHolderID != nil
}

func (v *Vehicle) ClaimedBy(operatorID string) bool {
	return v.ClaimHolderID != nil && *v.ClaimHolderID == operatorID
}

// LockedAt reports whether the vehicle's lock window blocks claiming at now.
func (v *Vehicle) LockedAt(now time.Time) bool {
	return LockActive(v.LockedUntil, now)
}

// Claim returns the live claim, or nil when the vehicle is free.
func (v *Vehicle) Claim() *Claim {
	if v.ClaimHolderID == nil {
		return nil
	}
	c := &Claim{
		OperatorID: *v.ClaimHolderID,
		VehicleID:  v.VehicleID,
		Direction:  v.ClaimDirection,
	}
	if v.ClaimSince != nil {
		c.Since = *v.ClaimSince
	}
	return c
}
