package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fleet-control-service/internal/adapters/repositories"
	"fleet-control-service/internal/api/dto"
	"fleet-control-service/internal/domain"
	"fleet-control-service/internal/ratelimit"
	"fleet-control-service/internal/services"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	fleet := repositories.NewMemoryFleetRepository()
	fleet.AddOperator(domain.Operator{OperatorID: "op-1", Name: "Ramiro", Role: domain.RoleOperator})
	fleet.AddOperator(domain.Operator{OperatorID: "op-2", Name: "Lucia", Role: domain.RoleOperator})
	fleet.AddVehicle(domain.Vehicle{VehicleID: "veh-1", Plate: "TXA-4821"})
	fleet.AllowOperator("veh-1", "op-1")
	fleet.AllowOperator("veh-1", "op-2")

	ledger := repositories.NewMemoryLedgerRepository()
	ledger.AddChecker(domain.Checker{CheckerID: "chk-1", Name: "Jorge"})
	chk := "chk-1"
	ledger.AddCheckpoint(domain.Checkpoint{CheckpointID: "cp-1", Name: "Terminal", Sequence: 1, AssignedCheckerID: &chk})

	now := func() time.Time { return time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC) }
	activation := &services.ActivationService{Fleet: fleet, Now: now}
	checkins := &services.CheckInService{
		Fleet:    fleet,
		Ledger:   ledger,
		Settings: repositories.NewMemorySettingsStore(),
		Now:      now,
	}

	// Guard without a store: throttling stays out of these tests' way.
	router := NewRouter(Config{
		Activation: activation,
		CheckIns:   checkins,
		Guard:      ratelimit.NewGuard(nil),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// post sends a request carrying the identity headers the upstream identity
// layer would assert.
func post(t *testing.T, srv *httptest.Server, path, operatorID, role, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if operatorID != "" {
		req.Header.Set("X-Operator-ID", operatorID)
	}
	if role != "" {
		req.Header.Set("X-Role", role)
	}

	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestClaimEndpointLifecycle(t *testing.T) {
	srv := newTestServer(t)

	res := post(t, srv, "/activations/claim", "op-1", "operator", `{"operator_id":"op-1","vehicle_id":"veh-1","direction":"forward"}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("claim status = %d, want 200", res.StatusCode)
	}
	var claim dto.ClaimResponse
	if err := json.NewDecoder(res.Body).Decode(&claim); err != nil {
		t.Fatalf("decode claim: %v", err)
	}
	if claim.OperatorID != "op-1" || claim.Direction != "FORWARD" {
		t.Fatalf("claim = %+v", claim)
	}

	// Conflicting claim from another operator.
	res = post(t, srv, "/activations/claim", "op-2", "operator", `{"operator_id":"op-2","vehicle_id":"veh-1","direction":"forward"}`)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("conflict status = %d, want 409", res.StatusCode)
	}

	// Release locking for the rest of the day.
	res = post(t, srv, "/activations/release", "op-1", "operator", `{"operator_id":"op-1","lock_for_rest_of_day":true}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("release status = %d, want 200", res.StatusCode)
	}
	var released dto.ReleaseResponse
	if err := json.NewDecoder(res.Body).Decode(&released); err != nil {
		t.Fatalf("decode release: %v", err)
	}
	if released.LockedUntil == nil {
		t.Fatal("expected a lock window on release")
	}

	// Locked vehicle maps to 423.
	res = post(t, srv, "/activations/claim", "op-2", "operator", `{"operator_id":"op-2","vehicle_id":"veh-1","direction":"forward"}`)
	if res.StatusCode != http.StatusLocked {
		t.Fatalf("locked status = %d, want 423", res.StatusCode)
	}

	// An eligible operator reopens the vehicle, then the claim goes through.
	res = post(t, srv, "/activations/reopen", "op-1", "operator", `{"vehicle_id":"veh-1"}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reopen status = %d, want 200", res.StatusCode)
	}
	res = post(t, srv, "/activations/claim", "op-2", "operator", `{"operator_id":"op-2","vehicle_id":"veh-1","direction":"return"}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("claim after reopen status = %d, want 200", res.StatusCode)
	}
}

func TestClaimEndpointRejections(t *testing.T) {
	srv := newTestServer(t)

	// No role header: the capability chain answers first.
	res := post(t, srv, "/activations/claim", "", "", `{"operator_id":"op-1","vehicle_id":"veh-1","direction":"forward"}`)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("anonymous status = %d, want 403", res.StatusCode)
	}

	// Checkers cannot claim.
	res = post(t, srv, "/activations/claim", "chk-1", "checker", `{"operator_id":"op-1","vehicle_id":"veh-1","direction":"forward"}`)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("checker status = %d, want 403", res.StatusCode)
	}

	// Unknown JSON fields are rejected.
	res = post(t, srv, "/activations/claim", "op-1", "operator", `{"operator_id":"op-1","vehicle_id":"veh-1","direction":"forward","bogus":1}`)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d, want 400", res.StatusCode)
	}

	res = post(t, srv, "/activations/claim", "op-1", "operator", `{"operator_id":"op-1","vehicle_id":"veh-1","direction":"sideways"}`)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad direction status = %d, want 400", res.StatusCode)
	}

	res = post(t, srv, "/activations/claim", "op-1", "operator", `{"operator_id":"op-1","vehicle_id":"ghost","direction":"forward"}`)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown vehicle status = %d, want 404", res.StatusCode)
	}
}

func TestReopenRequiresEligibleCaller(t *testing.T) {
	srv := newTestServer(t)

	res := post(t, srv, "/activations/claim", "op-1", "operator", `{"operator_id":"op-1","vehicle_id":"veh-1","direction":"forward"}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("claim status = %d, want 200", res.StatusCode)
	}
	res = post(t, srv, "/activations/release", "op-1", "operator", `{"operator_id":"op-1","lock_for_rest_of_day":true}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("release status = %d, want 200", res.StatusCode)
	}

	// A role header alone is not enough: with no operator identity the
	// eligibility check has nobody to check.
	res = post(t, srv, "/activations/reopen", "", "operator", `{"vehicle_id":"veh-1"}`)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("reopen without identity status = %d, want 403", res.StatusCode)
	}

	// Admins reopen without being eligible themselves.
	res = post(t, srv, "/activations/reopen", "adm-1", "admin", `{"vehicle_id":"veh-1"}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin reopen status = %d, want 200", res.StatusCode)
	}
}

func TestCheckInEndpoints(t *testing.T) {
	srv := newTestServer(t)

	res := post(t, srv, "/checkins", "chk-1", "checker", `{"vehicle_id":"veh-1","checkpoint_id":"cp-1"}`)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("check-in status = %d, want 201", res.StatusCode)
	}
	var created dto.CheckInResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode check-in: %v", err)
	}
	if created.Event.CheckerID == nil || *created.Event.CheckerID != "chk-1" {
		t.Fatalf("event = %+v", created.Event)
	}

	// Payload shorthand.
	res = post(t, srv, "/checkins/payload", "chk-1", "checker", `{"payload":"TXA-4821|op-1","checkpoint_id":"cp-1"}`)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("payload check-in status = %d, want 201", res.StatusCode)
	}

	// Payment transition via path.
	res = post(t, srv, "/checkins/"+created.Event.EventID+"/paid", "chk-1", "checker", ``)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mark paid status = %d, want 200", res.StatusCode)
	}
	var paid dto.EventResponse
	if err := json.NewDecoder(res.Body).Decode(&paid); err != nil {
		t.Fatalf("decode paid: %v", err)
	}
	if paid.PaymentState != string(domain.PaymentPaid) {
		t.Fatalf("payment state = %s, want PAID", paid.PaymentState)
	}

	res = post(t, srv, "/checkins/ghost/paid", "chk-1", "checker", ``)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown event status = %d, want 404", res.StatusCode)
	}

	// Recent listing is open: no role required.
	listRes, err := srv.Client().Get(srv.URL + "/checkins/recent?vehicle_id=veh-1&limit=10")
	if err != nil {
		t.Fatalf("get recent: %v", err)
	}
	defer listRes.Body.Close()
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("recent status = %d, want 200", listRes.StatusCode)
	}
	var list dto.ListEventsResponse
	if err := json.NewDecoder(listRes.Body).Decode(&list); err != nil {
		t.Fatalf("decode recent: %v", err)
	}
	if len(list.Events) != 2 {
		t.Fatalf("recent events = %d, want 2", len(list.Events))
	}
}

func TestVehicleStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	res := post(t, srv, "/activations/claim", "op-1", "operator", `{"operator_id":"op-1","vehicle_id":"veh-1","direction":"forward"}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("claim status = %d, want 200", res.StatusCode)
	}

	statusRes, err := srv.Client().Get(srv.URL + "/vehicles/status?vehicle_id=veh-1")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer statusRes.Body.Close()
	if statusRes.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", statusRes.StatusCode)
	}

	var status dto.VehicleStatusResponse
	if err := json.NewDecoder(statusRes.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Claim == nil || status.Claim.OperatorID != "op-1" {
		t.Fatalf("status = %+v", status)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	res, err := srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", res.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "fleet-control-service" {
		t.Fatalf("health body = %v", body)
	}
	if body["uptime"] == "" {
		t.Fatal("health body missing uptime")
	}
}
