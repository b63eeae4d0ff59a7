package dto

import "time"

type CheckInRequest struct {
	VehicleID    string   `json:"vehicle_id"`
	CheckpointID string   `json:"checkpoint_id"`
	OperatorID   *string  `json:"operator_id"`
	CheckerID    *string  `json:"checker_id"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
	Paid         bool     `json:"paid"`
}

type PayloadCheckInRequest struct {
	Payload      string   `json:"payload"`
	CheckpointID string   `json:"checkpoint_id"`
	CheckerID    *string  `json:"checker_id"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
	Paid         bool     `json:"paid"`
}

type EventResponse struct {
	EventID        string    `json:"event_id"`
	VehicleID      string    `json:"vehicle_id"`
	CheckpointID   string    `json:"checkpoint_id"`
	OperatorID     *string   `json:"operator_id,omitempty"`
	CheckerID      *string   `json:"checker_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	ElapsedMinutes *int      `json:"elapsed_minutes,omitempty"`
	Fee            int64     `json:"fee"`
	PaymentState   string    `json:"payment_state"`
	Lat            *float64  `json:"lat,omitempty"`
	Lon            *float64  `json:"lon,omitempty"`
}

type CheckInResponse struct {
	Event          EventResponse `json:"event"`
	ElapsedMinutes *int          `json:"elapsed_minutes,omitempty"`
	Fee            int64         `json:"fee"`
}

type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
}
