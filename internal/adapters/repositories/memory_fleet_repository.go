package repositories

import (
	"context"
	"strings"
	"sync"
	"time"

	"fleet-control-service/internal/domain"
)

// MemoryFleetRepository is an in-memory FleetRepository used by tests and by
// local runs without a database. A single mutex stands in for the store's
// transactional guarantees, so the claim/release semantics match the SQL
// adapter exactly.
type MemoryFleetRepository struct {
	mu        sync.Mutex
	operators map[string]*domain.Operator
	vehicles  map[string]*domain.Vehicle
	eligible  map[string]map[string]bool // vehicle -> operator set
}

func NewMemoryFleetRepository() *MemoryFleetRepository {
	return &MemoryFleetRepository{
		operators: make(map[string]*domain.Operator),
		vehicles:  make(map[string]*domain.Vehicle),
		eligible:  make(map[string]map[string]bool),
	}
}

func (m *MemoryFleetRepository) AddOperator(op domain.Operator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operators[op.OperatorID] = &op
}

func (m *MemoryFleetRepository) AddVehicle(v domain.Vehicle) {
	v.Plate = strings.ToUpper(strings.TrimSpace(v.Plate))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.VehicleID] = &v
}

func (m *MemoryFleetRepository) AllowOperator(vehicleID, operatorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.eligible[vehicleID]
	if !ok {
		set = make(map[string]bool)
		m.eligible[vehicleID] = set
	}
	set[operatorID] = true
}

func (m *MemoryFleetRepository) GetOperator(ctx context.Context, operatorID string) (*domain.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.operators[operatorID]
	if !ok {
		return nil, domain.NotFoundf("operator %q", operatorID)
	}
	cp := *op
	return &cp, nil
}

func (m *MemoryFleetRepository) GetVehicle(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return nil, domain.NotFoundf("vehicle %q", vehicleID)
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryFleetRepository) GetVehicleByPlate(ctx context.Context, plate string) (*domain.Vehicle, error) {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vehicles {
		if v.Plate == plate {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domain.NotFoundf("vehicle with plate %q", plate)
}

func (m *MemoryFleetRepository) IsEligible(ctx context.Context, operatorID, vehicleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eligible[vehicleID][operatorID], nil
}

func (m *MemoryFleetRepository) Claim(ctx context.Context, operatorID, vehicleID string, direction domain.Direction, since time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vehicles[vehicleID]
	if !ok {
		return domain.NotFoundf("vehicle %q", vehicleID)
	}
	op, ok := m.operators[operatorID]
	if !ok {
		return domain.NotFoundf("operator %q", operatorID)
	}

	if v.ClaimedBy(operatorID) {
		return nil
	}
	if v.Claimed() {
		return domain.Conflictf("vehicle %q already claimed by operator %q", vehicleID, *v.ClaimHolderID)
	}
	if v.LockedAt(since) {
		return domain.Lockedf("vehicle %q locked until %s", vehicleID, v.LockedUntil.Format(time.RFC3339))
	}
	if op.ActiveVehicleID != nil && *op.ActiveVehicleID != vehicleID {
		return domain.Conflictf("operator %q already holds vehicle %q", operatorID, *op.ActiveVehicleID)
	}

	holder := operatorID
	sinceCp := since
	v.ClaimHolderID = &holder
	v.ClaimDirection = direction
	v.ClaimSince = &sinceCp

	veh := vehicleID
	op.ActiveVehicleID = &veh
	op.ActiveSince = &sinceCp
	op.Direction = direction

	return nil
}

func (m *MemoryFleetRepository) Release(ctx context.Context, operatorID string, lockUntil *time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.operators[operatorID]
	if !ok {
		return "", domain.NotFoundf("operator %q", operatorID)
	}
	if op.ActiveVehicleID == nil {
		return "", domain.InvalidStatef("operator %q has no active claim", operatorID)
	}
	vehicleID := *op.ActiveVehicleID

	v, ok := m.vehicles[vehicleID]
	if !ok || !v.ClaimedBy(operatorID) {
		return "", domain.InvalidStatef("vehicle %q no longer held by operator %q", vehicleID, operatorID)
	}

	op.ActiveVehicleID = nil
	op.ActiveSince = nil
	op.Direction = ""

	v.ClaimHolderID = nil
	v.ClaimDirection = ""
	v.ClaimSince = nil
	if lockUntil != nil {
		until := *lockUntil
		v.LockedUntil = &until
	}

	return vehicleID, nil
}

func (m *MemoryFleetRepository) Reopen(ctx context.Context, vehicleID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vehicles[vehicleID]
	if !ok {
		return domain.NotFoundf("vehicle %q", vehicleID)
	}
	if !v.LockedAt(now) {
		return domain.InvalidStatef("vehicle %q has no active lock window", vehicleID)
	}

	v.LockedUntil = nil
	return nil
}

func (m *MemoryFleetRepository) SetDirection(ctx context.Context, operatorID string, direction domain.Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.operators[operatorID]
	if !ok {
		return domain.NotFoundf("operator %q", operatorID)
	}
	if op.ActiveVehicleID == nil {
		return domain.InvalidStatef("operator %q has no active claim", operatorID)
	}

	op.Direction = direction
	if v, ok := m.vehicles[*op.ActiveVehicleID]; ok && v.ClaimedBy(operatorID) {
		v.ClaimDirection = direction
	}

	return nil
}
