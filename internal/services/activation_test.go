package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleet-control-service/internal/adapters/repositories"
	"fleet-control-service/internal/domain"
	"fleet-control-service/internal/ports"
)

func newActivationFixture(t *testing.T) (*ActivationService, *repositories.MemoryFleetRepository) {
	t.Helper()

	fleet := repositories.NewMemoryFleetRepository()
	fleet.AddOperator(domain.Operator{OperatorID: "op-1", Name: "Ramiro", Role: domain.RoleOperator})
	fleet.AddOperator(domain.Operator{OperatorID: "op-2", Name: "Lucia", Role: domain.RoleOperator})
	fleet.AddVehicle(domain.Vehicle{VehicleID: "veh-1", Plate: "TXA-4821"})
	fleet.AddVehicle(domain.Vehicle{VehicleID: "veh-2", Plate: "TXA-5137"})
	fleet.AllowOperator("veh-1", "op-1")
	fleet.AllowOperator("veh-1", "op-2")
	fleet.AllowOperator("veh-2", "op-1")

	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	svc := &ActivationService{
		Fleet: fleet,
		Now:   func() time.Time { return now },
	}
	return svc, fleet
}

func TestClaimReleaseLockReopenCycle(t *testing.T) {
	svc, _ := newActivationFixture(t)
	ctx := context.Background()

	claim, err := svc.Claim(ctx, ClaimRequest{OperatorID: "op-1", VehicleID: "veh-1", Direction: domain.DirectionForward})
	require.NoError(t, err)
	require.Equal(t, "op-1", claim.OperatorID)

	// A second operator cannot take the claimed vehicle.
	_, err = svc.Claim(ctx, ClaimRequest{OperatorID: "op-2", VehicleID: "veh-1", Direction: domain.DirectionForward})
	require.ErrorIs(t, err, domain.ErrConflict)

	// Release locking the vehicle away for the rest of the day.
	vehicleID, lockedUntil, err := svc.Release(ctx, "op-1", true)
	require.NoError(t, err)
	require.Equal(t, "veh-1", vehicleID)
	require.NotNil(t, lockedUntil)
	require.Equal(t, 23, lockedUntil.Hour())

	// Locked vehicles reject claims the same day.
	_, err = svc.Claim(ctx, ClaimRequest{OperatorID: "op-1", VehicleID: "veh-1", Direction: domain.DirectionForward})
	require.ErrorIs(t, err, domain.ErrLocked)

	// Reopen clears the window and claiming works again.
	require.NoError(t, svc.Reopen(ctx, "veh-1", "op-1", false))
	_, err = svc.Claim(ctx, ClaimRequest{OperatorID: "op-1", VehicleID: "veh-1", Direction: domain.DirectionForward})
	require.NoError(t, err)
}

func TestClaimIsIdempotentForSameOperator(t *testing.T) {
	svc, fleet := newActivationFixture(t)
	ctx := context.Background()

	first, err := svc.Claim(ctx, ClaimRequest{OperatorID: "op-1", VehicleID: "veh-1", Direction: domain.DirectionForward})
	require.NoError(t, err)

	second, err := svc.Claim(ctx, ClaimRequest{OperatorID: "op-1", VehicleID: "veh-1", Direction: domain.DirectionForward})
	require.NoError(t, err)
	require.Equal(t, first.Since, second.Since, "re-claim must not refresh since")

	veh, err := fleet.GetVehicle(ctx, "veh-1")
	require.NoError(t, err)
	require.True(t, veh.ClaimedBy("op-1"))
}

func TestClaimRejectsSecondVehicleForActiveOperator(t *testing.T) {
	svc, _ := newActivationFixture(t)
	ctx := context.Background()

	_, err := svc.Claim(ctx, ClaimRequest{OperatorID: "op-1", VehicleID: "veh-1", Direction: domain.DirectionForward})
	require.NoError(t, err)

	_, err = svc.Claim(ctx, ClaimRequest{OperatorID: "op-1", VehicleID: "veh-2", Direction: domain.DirectionForward})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestClaimEligibility(t *testing.T) {
	svc, _ := newActivationFixture(t)
	ctx := context.Background()

	// op-2 is not eligible for veh-2.
	_, err := svc.Claim(ctx, ClaimRequest{OperatorID: "op-2", VehicleID: "veh-2", Direction: domain.DirectionForward})
	require.ErrorIs(t, err, domain.ErrForbidden)

	// Administrative override bypasses eligibility.
	_, err = svc.Claim(ctx, ClaimRequest{OperatorID: "op-2", VehicleID: "veh-2", Direction: domain.DirectionForward, AdminOverride: true})
	require.NoError(t, err)
}

func TestLockExpiresWithCalendarDay(t *testing.T) {
	svc, _ := newActivationFixture(t)
	ctx := context.Background()

	_, err := svc.Claim(ctx, ClaimRequest{OperatorID: "op-1", VehicleID: "veh-1", Direction: domain.DirectionForward})
	require.NoError(t, err)
	_, _, err = svc.Release(ctx, "op-1", true)
	require.NoError(t, err)

	// Next morning the lock window has rolled past; no reopen needed.
	svc.Now = func() time.Time { return time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC) }
	_, err = svc.Claim(ctx, ClaimRequest{OperatorID: "op-2", VehicleID: "veh-1", Direction: domain.DirectionReturn})
	require.NoError(t, err)
}

func TestReopenRequiresActiveLock(t *testing.T) {
	svc, _ := newActivationFixture(t)
	ctx := context.Background()

	err := svc.Reopen(ctx, "veh-1", "op-1", false)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	// Non-eligible callers cannot reopen without admin.
	err = svc.Reopen(ctx, "veh-2", "op-2", false)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSetDirection(t *testing.T) {
	svc, fleet := newActivationFixture(t)
	ctx := context.Background()

	err := svc.SetDirection(ctx, "op-1", domain.DirectionReturn)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.Claim(ctx, ClaimRequest{OperatorID: "op-1", VehicleID: "veh-1", Direction: domain.DirectionForward})
	require.NoError(t, err)

	require.NoError(t, svc.SetDirection(ctx, "op-1", domain.DirectionReturn))

	veh, err := fleet.GetVehicle(ctx, "veh-1")
	require.NoError(t, err)
	require.Equal(t, domain.DirectionReturn, veh.ClaimDirection)
}

func TestConcurrentClaimsSameVehicle(t *testing.T) {
	svc, fleet := newActivationFixture(t)
	ctx := context.Background()

	const racers = 24
	for i := 0; i < racers; i++ {
		fleet.AddOperator(domain.Operator{OperatorID: opID(i), Role: domain.RoleOperator})
		fleet.AllowOperator("veh-1", opID(i))
	}

	var wg sync.WaitGroup
	wins := make(chan string, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.Claim(ctx, ClaimRequest{OperatorID: id, VehicleID: "veh-1", Direction: domain.DirectionForward}); err == nil {
				wins <- id
			}
		}(opID(i))
	}
	wg.Wait()
	close(wins)

	var winners []string
	for id := range wins {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1, "exactly one racing claim must win")

	veh, err := fleet.GetVehicle(ctx, "veh-1")
	require.NoError(t, err)
	require.True(t, veh.ClaimedBy(winners[0]))
}

func TestConcurrentClaimsSameOperator(t *testing.T) {
	svc, fleet := newActivationFixture(t)
	ctx := context.Background()

	const vehicles = 24
	for i := 0; i < vehicles; i++ {
		fleet.AddVehicle(domain.Vehicle{VehicleID: vehID(i), Plate: vehID(i)})
		fleet.AllowOperator(vehID(i), "op-1")
	}

	var wg sync.WaitGroup
	wins := make(chan string, vehicles)
	for i := 0; i < vehicles; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.Claim(ctx, ClaimRequest{OperatorID: "op-1", VehicleID: id, Direction: domain.DirectionForward}); err == nil {
				wins <- id
			}
		}(vehID(i))
	}
	wg.Wait()
	close(wins)

	var winners []string
	for id := range wins {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1, "an operator must end up holding exactly one vehicle")
}

func opID(i int) string  { return "racer-" + string(rune('a'+i%26)) + string(rune('a'+i/26)) }
func vehID(i int) string { return "unit-" + string(rune('a'+i%26)) + string(rune('a'+i/26)) }

// unavailableFleet simulates a persistent store that cannot be reached.
type unavailableFleet struct{ ports.FleetRepository }

func (unavailableFleet) GetOperator(ctx context.Context, operatorID string) (*domain.Operator, error) {
	return nil, domain.StoreUnavailablef("operators store")
}

func TestClaimAbortsWhenStoreUnavailable(t *testing.T) {
	svc := &ActivationService{Fleet: unavailableFleet{}}

	_, err := svc.Claim(context.Background(), ClaimRequest{OperatorID: "op-1", VehicleID: "veh-1", Direction: domain.DirectionForward})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

// unavailableOnWrite serves reads but fails the claim write itself.
type unavailableOnWrite struct{ ports.FleetRepository }

func (f unavailableOnWrite) Claim(ctx context.Context, operatorID, vehicleID string, direction domain.Direction, since time.Time) error {
	return domain.StoreUnavailablef("vehicles store")
}

func TestClaimWriteFailureSurfaces(t *testing.T) {
	base, _ := newActivationFixture(t)
	svc := &ActivationService{
		Fleet: unavailableOnWrite{FleetRepository: base.Fleet},
		Now:   base.Now,
	}

	_, err := svc.Claim(context.Background(), ClaimRequest{OperatorID: "op-1", VehicleID: "veh-1", Direction: domain.DirectionForward})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	// Nothing was claimed: the underlying state is untouched.
	veh, err := base.Fleet.GetVehicle(context.Background(), "veh-1")
	require.NoError(t, err)
	require.False(t, veh.Claimed())
}
