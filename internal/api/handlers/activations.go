package handlers

import (
	"net/http"

	"fleet-control-service/internal/api/dto"
	"fleet-control-service/internal/domain"
	"fleet-control-service/internal/services"
)

// ActivationHandler exposes the claim/release/reopen/direction operations.
type ActivationHandler struct {
	Service *services.ActivationService

	// CallerIdentity extracts the upstream-asserted caller from the request.
	CallerIdentity func(r *http.Request) (operatorID string, admin bool)
}

func (h *ActivationHandler) caller(r *http.Request) (string, bool) {
	if h.CallerIdentity == nil {
		return "", false
	}
	return h.CallerIdentity(r)
}

func (h *ActivationHandler) Claim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.ClaimRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	direction, err := domain.ParseDirection(req.Direction)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// Only admins may claim on behalf of ineligible operators.
	_, admin := h.caller(r)

	claim, err := h.Service.Claim(r.Context(), services.ClaimRequest{
		OperatorID:    req.OperatorID,
		VehicleID:     req.VehicleID,
		Direction:     direction,
		AdminOverride: req.AdminOverride && admin,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ClaimResponse{
		OperatorID: claim.OperatorID,
		VehicleID:  claim.VehicleID,
		Direction:  string(claim.Direction),
		Since:      claim.Since,
	})
}

func (h *ActivationHandler) Release(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.ReleaseRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	vehicleID, lockedUntil, err := h.Service.Release(r.Context(), req.OperatorID, req.LockForRestOfDay)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ReleaseResponse{
		VehicleID:   vehicleID,
		LockedUntil: lockedUntil,
	})
}

func (h *ActivationHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.ReopenRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	callerID, admin := h.caller(r)
	if err := h.Service.Reopen(r.Context(), req.VehicleID, callerID, admin); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.AckResponse{Status: "ok"})
}

func (h *ActivationHandler) Direction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.DirectionRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	direction, err := domain.ParseDirection(req.Direction)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := h.Service.SetDirection(r.Context(), req.OperatorID, direction); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.AckResponse{Status: "ok"})
}

func (h *ActivationHandler) VehicleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	veh, err := h.Service.VehicleStatus(r.Context(), r.URL.Query().Get("vehicle_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res := dto.VehicleStatusResponse{
		VehicleID:   veh.VehicleID,
		Plate:       veh.Plate,
		LockedUntil: veh.LockedUntil,
	}
	if claim := veh.Claim(); claim != nil {
		res.Claim = &dto.ClaimResponse{
			OperatorID: claim.OperatorID,
			VehicleID:  claim.VehicleID,
			Direction:  string(claim.Direction),
			Since:      claim.Since,
		}
	}

	writeJSON(w, r, http.StatusOK, res)
}
