package ports

import (
	"context"
	"fleet-control-service/internal/domain"
	"time"
)

// Port: transactional access to operators, vehicles, and eligibility.
// Implementations must make the claim/release transitions single atomic
// conditional updates; correctness cannot rely on in-process locking because
// multiple server processes share the store.
type FleetRepository interface {
	GetOperator(ctx context.Context, operatorID string) (*domain.Operator, error)
	GetVehicle(ctx context.Context, vehicleID string) (*domain.Vehicle, error)
	// GetVehicleByPlate matches the plate case-insensitively (plates are
	// stored uppercased).
	GetVehicleByPlate(ctx context.Context, plate string) (*domain.Vehicle, error)
	IsEligible(ctx context.Context, operatorID, vehicleID string) (bool, error)

	// Claim atomically binds the operator and the vehicle, guarding against a
	// foreign claim holder, an active lock window, and an existing claim by
	// the operator elsewhere. Returns domain.ErrConflict, domain.ErrLocked,
	// or domain.ErrNotFound accordingly.
	Claim(ctx context.Context, operatorID, vehicleID string, direction domain.Direction, since time.Time) error

	// Release clears the operator's claim and the vehicle's holder, setting
	// the vehicle's lock window to lockUntil when non-nil. Returns the
	// released vehicle ID, or domain.ErrInvalidState when the operator holds
	// no claim.
	Release(ctx context.Context, operatorID string, lockUntil *time.Time) (string, error)

	// Reopen clears an unexpired lock window. domain.ErrInvalidState when no
	// window is set or it has already expired relative to now.
	Reopen(ctx context.Context, vehicleID string, now time.Time) error

	// SetDirection updates the direction of the operator's current claim.
	SetDirection(ctx context.Context, operatorID string, direction domain.Direction) error
}
