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

// Fee schedule configuration. The fallback applies only when the settings
// entry is absent.
const (
	FeeSettingKey = "checkin.fee"
	DefaultFee    = 10
)

// CheckInService records checkpoint-passage events and the accounting
// derived from them.
type CheckInService struct {
	Fleet    ports.FleetRepository
	Ledger   ports.LedgerRepository
	Settings ports.SettingsStore
	Audit    ports.AuditSink

	// Now is swappable in tests; zero value means time.Now.
	Now func() time.Time
}

func (s *CheckInService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type CheckInRequest struct {
	VehicleID    string
	CheckpointID string
	// OperatorID overrides the vehicle's current claim holder when set.
	OperatorID *string
	// CheckerID overrides the checkpoint's assigned checker when set.
	CheckerID     *string
	Lat           *float64
	Lon           *float64
	Paid          bool
	AdminOverride bool
}

type CheckInResult struct {
	Event          *domain.CheckpointEvent
	ElapsedMinutes *int
	Fee            int64
}

// CheckIn records a vehicle passing a checkpoint. The checker resolves from
// the explicit argument, then the checkpoint's assignment; without either
// the check-in is forbidden unless the caller holds administrative override.
// The operator resolves from the explicit argument, then the vehicle's
// current claim holder, and may end up empty (unattended check-in).
func (s *CheckInService) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResult, error) {
	if strings.TrimSpace(req.VehicleID) == "" {
		return nil, domain.Validationf("vehicle_id is required")
	}
	if strings.TrimSpace(req.CheckpointID) == "" {
		return nil, domain.Validationf("checkpoint_id is required")
	}

	veh, err := s.Fleet.GetVehicle(ctx, req.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("check-in: %w", err)
	}

	cp, err := s.Ledger.GetCheckpoint(ctx, req.CheckpointID)
	if err != nil {
		return nil, fmt.Errorf("check-in: %w", err)
	}

	checkerID, err := s.resolveChecker(ctx, req, cp)
	if err != nil {
		return nil, err
	}

	operatorID, err := s.resolveOperator(ctx, req, veh)
	if err != nil {
		return nil, err
	}

	fee, err := s.fee(ctx)
	if err != nil {
		return nil, fmt.Errorf("check-in: %w", err)
	}

	state := domain.PaymentPending
	if req.Paid {
		state = domain.PaymentPaid
	}

	ev := &domain.CheckpointEvent{
		EventID:      uuid.NewString(),
		VehicleID:    veh.VehicleID,
		CheckpointID: cp.CheckpointID,
		OperatorID:   operatorID,
		CheckerID:    checkerID,
		Timestamp:    s.now().UTC(),
		Fee:          fee,
		PaymentState: state,
		Lat:          req.Lat,
		Lon:          req.Lon,
	}

	created, err := s.Ledger.AppendEvent(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("check-in: %w", err)
	}

	s.audit(ctx, "checkin.create", deref(operatorID), created.EventID, map[string]any{
		"vehicle_id":    created.VehicleID,
		"checkpoint_id": created.CheckpointID,
		"payment_state": string(created.PaymentState),
		"fee":           created.Fee,
	})

	return &CheckInResult{
		Event:          created,
		ElapsedMinutes: created.ElapsedMinutes,
		Fee:            created.Fee,
	}, nil
}

// CheckInByPayload accepts the "<PLATE>|<OPERATOR_ID>" shorthand, resolves
// the vehicle by plate, and treats the operator portion as the explicit
// operator override.
func (s *CheckInService) CheckInByPayload(ctx context.Context, payload string, req CheckInRequest) (*CheckInResult, error) {
	plate, operatorID, ok := strings.Cut(payload, "|")
	plate = strings.ToUpper(strings.TrimSpace(plate))
	operatorID = strings.TrimSpace(operatorID)
	if !ok || plate == "" || operatorID == "" {
		return nil, domain.Validationf("payload %q must have the form PLATE|OPERATOR_ID", payload)
	}

	veh, err := s.Fleet.GetVehicleByPlate(ctx, plate)
	if err != nil {
		return nil, fmt.Errorf("check-in by payload: %w", err)
	}

	req.VehicleID = veh.VehicleID
	req.OperatorID = &operatorID
	return s.CheckIn(ctx, req)
}

// MarkPaid transitions an event PENDING -> PAID. Calling it on an event that
// is already PAID is a no-op success: the checker's income is credited at
// most once per event.
func (s *CheckInService) MarkPaid(ctx context.Context, eventID string) (*domain.CheckpointEvent, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, domain.Validationf("check-in id is required")
	}

	ev, transitioned, err := s.Ledger.MarkEventPaid(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}

	if transitioned {
		s.audit(ctx, "checkin.paid", deref(ev.OperatorID), ev.EventID, map[string]any{
			"fee": ev.Fee,
		})
	}

	return ev, nil
}

// RecentEvents lists the latest events for a vehicle, newest first.
func (s *CheckInService) RecentEvents(ctx context.Context, vehicleID string, limit int) ([]*domain.CheckpointEvent, error) {
	if strings.TrimSpace(vehicleID) == "" {
		return nil, domain.Validationf("vehicle_id is required")
	}
	return s.Ledger.RecentEvents(ctx, vehicleID, limit)
}

func (s *CheckInService) resolveChecker(ctx context.Context, req CheckInRequest, cp *domain.Checkpoint) (*string, error) {
	if req.CheckerID != nil && strings.TrimSpace(*req.CheckerID) != "" {
		ck, err := s.Ledger.GetChecker(ctx, *req.CheckerID)
		if err != nil {
			return nil, fmt.Errorf("check-in: %w", err)
		}
		return &ck.CheckerID, nil
	}

	if cp.AssignedCheckerID != nil {
		return cp.AssignedCheckerID, nil
	}

	if !req.AdminOverride {
		return nil, domain.Forbiddenf("no checker available for checkpoint %q", cp.CheckpointID)
	}

	// Administrative check-ins may proceed without a checker.
	return nil, nil
}

func (s *CheckInService) resolveOperator(ctx context.Context, req CheckInRequest, veh *domain.Vehicle) (*string, error) {
	if req.OperatorID != nil && strings.TrimSpace(*req.OperatorID) != "" {
		op, err := s.Fleet.GetOperator(ctx, *req.OperatorID)
		if err != nil {
			return nil, fmt.Errorf("check-in: %w", err)
		}
		return &op.OperatorID, nil
	}

	// Unattended check-ins are fine: the operator stays empty when the
	// vehicle has no claim holder either.
	return veh.ClaimHolderID, nil
}

func (s *CheckInService) fee(ctx context.Context) (int64, error) {
	if s.Settings == nil {
		return DefaultFee, nil
	}

	fee, ok, err := s.Settings.GetInt(ctx, FeeSettingKey)
	if err != nil {
		return 0, fmt.Errorf("fee lookup: %w", err)
	}
	if !ok {
		return DefaultFee, nil
	}
	return fee, nil
}

func (s *CheckInService) audit(ctx context.Context, action, actorID, resource string, details map[string]any) {
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

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
