package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"fleet-control-service/internal/api/dto"
	"fleet-control-service/internal/domain"
	"fleet-control-service/internal/services"
)

// CheckInHandler exposes check-in creation, the payload shorthand, payment
// transitions, and recent-event listing.
type CheckInHandler struct {
	Service *services.CheckInService

	CallerIdentity func(r *http.Request) (operatorID string, admin bool)
}

func (h *CheckInHandler) admin(r *http.Request) bool {
	if h.CallerIdentity == nil {
		return false
	}
	_, admin := h.CallerIdentity(r)
	return admin
}

func (h *CheckInHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.CheckInRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Service.CheckIn(r.Context(), services.CheckInRequest{
		VehicleID:     req.VehicleID,
		CheckpointID:  req.CheckpointID,
		OperatorID:    req.OperatorID,
		CheckerID:     req.CheckerID,
		Lat:           req.Lat,
		Lon:           req.Lon,
		Paid:          req.Paid,
		AdminOverride: h.admin(r),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, checkInResponse(result))
}

func (h *CheckInHandler) CreateFromPayload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.PayloadCheckInRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Service.CheckInByPayload(r.Context(), req.Payload, services.CheckInRequest{
		CheckpointID:  req.CheckpointID,
		CheckerID:     req.CheckerID,
		Lat:           req.Lat,
		Lon:           req.Lon,
		Paid:          req.Paid,
		AdminOverride: h.admin(r),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, checkInResponse(result))
}

// MarkPaid handles POST /checkins/{id}/paid.
func (h *CheckInHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/checkins/")
	eventID, ok := strings.CutSuffix(rest, "/paid")
	if !ok || eventID == "" || strings.Contains(eventID, "/") {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}

	ev, err := h.Service.MarkPaid(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, eventResponse(ev))
}

func (h *CheckInHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	events, err := h.Service.RecentEvents(r.Context(), r.URL.Query().Get("vehicle_id"), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res := dto.ListEventsResponse{Events: make([]dto.EventResponse, 0, len(events))}
	for _, ev := range events {
		res.Events = append(res.Events, eventResponse(ev))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func checkInResponse(result *services.CheckInResult) dto.CheckInResponse {
	return dto.CheckInResponse{
		Event:          eventResponse(result.Event),
		ElapsedMinutes: result.ElapsedMinutes,
		Fee:            result.Fee,
	}
}

func eventResponse(ev *domain.CheckpointEvent) dto.EventResponse {
	return dto.EventResponse{
		EventID:        ev.EventID,
		VehicleID:      ev.VehicleID,
		CheckpointID:   ev.CheckpointID,
		OperatorID:     ev.OperatorID,
		CheckerID:      ev.CheckerID,
		Timestamp:      ev.Timestamp,
		ElapsedMinutes: ev.ElapsedMinutes,
		Fee:            ev.Fee,
		PaymentState:   string(ev.PaymentState),
		Lat:            ev.Lat,
		Lon:            ev.Lon,
	}
}
