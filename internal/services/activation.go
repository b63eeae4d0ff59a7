package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleet-control-service/internal/domain"
	"fleet-control-service/internal/ports"
)

// ActivationService owns the live binding between operators and vehicles:
// claiming, releasing (optionally locking the vehicle away for the day),
// reopening a locked vehicle, and direction changes.
type ActivationService struct {
	Fleet ports.FleetRepository
	Audit ports.AuditSink

	// Now is swappable in tests; zero value means time.Now.
	Now func() time.Time
}

func (s *ActivationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type ClaimRequest struct {
	OperatorID    string
	VehicleID     string
	Direction     domain.Direction
	AdminOverride bool
}

// Claim gives the operator exclusive control of the vehicle. Re-claiming a
// vehicle the operator already holds is a no-op success. The final
// free-vehicle check and the write are one atomic conditional update in the
// repository, so two racing claims can never both win.
func (s *ActivationService) Claim(ctx context.Context, req ClaimRequest) (*domain.Claim, error) {
	if strings.TrimSpace(req.OperatorID) == "" {
		return nil, domain.Validationf("operator_id is required")
	}
	if strings.TrimSpace(req.VehicleID) == "" {
		return nil, domain.Validationf("vehicle_id is required")
	}
	if !req.Direction.Valid() {
		return nil, domain.Validationf("direction %q must be FORWARD or RETURN", string(req.Direction))
	}

	op, err := s.Fleet.GetOperator(ctx, req.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}

	veh, err := s.Fleet.GetVehicle(ctx, req.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}

	if veh.ClaimedBy(req.OperatorID) {
		// Idempotent re-claim: the existing claim stands, since included.
		return veh.Claim(), nil
	}

	if op.HasActiveClaim() && *op.ActiveVehicleID != req.VehicleID {
		return nil, domain.Conflictf("operator %q already holds vehicle %q", req.OperatorID, *op.ActiveVehicleID)
	}

	if !req.AdminOverride {
		eligible, err := s.Fleet.IsEligible(ctx, req.OperatorID, req.VehicleID)
		if err != nil {
			return nil, fmt.Errorf("claim: check eligibility: %w", err)
		}
		if !eligible {
			return nil, domain.Forbiddenf("operator %q not eligible for vehicle %q", req.OperatorID, req.VehicleID)
		}
	}

	since := s.now()
	if err := s.Fleet.Claim(ctx, req.OperatorID, req.VehicleID, req.Direction, since); err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}

	s.audit(ctx, "vehicle.claim", req.OperatorID, req.VehicleID, map[string]any{
		"direction":      string(req.Direction),
		"admin_override": req.AdminOverride,
	})

	return &domain.Claim{
		OperatorID: req.OperatorID,
		VehicleID:  req.VehicleID,
		Direction:  req.Direction,
		Since:      since,
	}, nil
}

// Release ends the operator's claim. With lockForRestOfDay the vehicle's
// lock window is set to the end of the current calendar day; otherwise the
// vehicle is immediately claimable again.
func (s *ActivationService) Release(ctx context.Context, operatorID string, lockForRestOfDay bool) (vehicleID string, lockedUntil *time.Time, err error) {
	if strings.TrimSpace(operatorID) == "" {
		return "", nil, domain.Validationf("operator_id is required")
	}

	if lockForRestOfDay {
		until := domain.EndOfDay(s.now())
		lockedUntil = &until
	}

	vehicleID, err = s.Fleet.Release(ctx, operatorID, lockedUntil)
	if err != nil {
		return "", nil, fmt.Errorf("release: %w", err)
	}

	details := map[string]any{"lock_for_rest_of_day": lockForRestOfDay}
	if lockedUntil != nil {
		details["locked_until"] = lockedUntil.Format(time.RFC3339)
	}
	s.audit(ctx, "vehicle.release", operatorID, vehicleID, details)

	return vehicleID, lockedUntil, nil
}

// Reopen clears an unexpired lock window. Admins may reopen any vehicle;
// non-admin callers must be eligible operators of the vehicle.
func (s *ActivationService) Reopen(ctx context.Context, vehicleID, callerID string, admin bool) error {
	if strings.TrimSpace(vehicleID) == "" {
		return domain.Validationf("vehicle_id is required")
	}

	if !admin {
		eligible, err := s.Fleet.IsEligible(ctx, callerID, vehicleID)
		if err != nil {
			return fmt.Errorf("reopen: check eligibility: %w", err)
		}
		if !eligible {
			return domain.Forbiddenf("operator %q not eligible for vehicle %q", callerID, vehicleID)
		}
	}

	if err := s.Fleet.Reopen(ctx, vehicleID, s.now()); err != nil {
		return fmt.Errorf("reopen: %w", err)
	}

	s.audit(ctx, "vehicle.reopen", callerID, vehicleID, nil)
	return nil
}

// SetDirection flips the direction of the operator's current claim.
func (s *ActivationService) SetDirection(ctx context.Context, operatorID string, direction domain.Direction) error {
	if strings.TrimSpace(operatorID) == "" {
		return domain.Validationf("operator_id is required")
	}
	if !direction.Valid() {
		return domain.Validationf("direction %q must be FORWARD or RETURN", string(direction))
	}

	if err := s.Fleet.SetDirection(ctx, operatorID, direction); err != nil {
		return fmt.Errorf("set direction: %w", err)
	}

	s.audit(ctx, "vehicle.direction", operatorID, "", map[string]any{"direction": string(direction)})
	return nil
}

// VehicleStatus returns the vehicle with its current claim and lock window.
func (s *ActivationService) VehicleStatus(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	if strings.TrimSpace(vehicleID) == "" {
		return nil, domain.Validationf("vehicle_id is required")
	}
	return s.Fleet.GetVehicle(ctx, vehicleID)
}

func (s *ActivationService) audit(ctx context.Context, action, actorID, resource string, details map[string]any) {
	if s.Audit == nil {
		return
	}
	s.Audit.Record(ctx, ports.AuditEvent{
		ID:       uuid.NewString(),
		Action:   action,
		ActorID:  actorID,
		Resource: resource,
		At:       s.now(),
		Details:  details,
	})
}
