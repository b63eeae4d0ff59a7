package domain

import (
	"testing"
	"time"
)

func TestVehicleClaim(t *testing.T) {
	holder := "op-1"
	since := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	v := &Vehicle{
		VehicleID:      "veh-1",
		Plate:          "TXA-4821",
		ClaimHolderID:  &holder,
		ClaimDirection: DirectionForward,
		ClaimSince:     &since,
	}

	if !v.Claimed() || !v.ClaimedBy("op-1") {
		t.Fatal("vehicle should report the live claim")
	}
	if v.ClaimedBy("op-2") {
		t.Fatal("claim should not match another operator")
	}

	claim := v.Claim()
	if claim == nil {
		t.Fatal("Claim() returned nil for a claimed vehicle")
	}
	if claim.OperatorID != "op-1" || claim.VehicleID != "veh-1" {
		t.Fatalf("claim = %+v", claim)
	}
	if !claim.Since.Equal(since) {
		t.Fatalf("claim since = %v, want %v", claim.Since, since)
	}

	free := &Vehicle{VehicleID: "veh-2"}
	if free.Claim() != nil {
		t.Fatal("Claim() should be nil for a free vehicle")
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(" return ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != DirectionReturn {
		t.Fatalf("direction = %q, want RETURN", d)
	}

	if _, err := ParseDirection("sideways"); err == nil {
		t.Fatal("expected error for invalid direction")
	}
}
