package dto

import "time"

type ClaimRequest struct {
	OperatorID    string `json:"operator_id"`
	VehicleID     string `json:"vehicle_id"`
	Direction     string `json:"direction"`
	AdminOverride bool   `json:"admin_override"`
}

type ClaimResponse struct {
	OperatorID string    `json:"operator_id"`
	VehicleID  string    `json:"vehicle_id"`
	Direction  string    `json:"direction"`
	Since      time.Time `json:"since"`
}

type ReleaseRequest struct {
	OperatorID       string `json:"operator_id"`
	LockForRestOfDay bool   `json:"lock_for_rest_of_day"`
}

type ReleaseResponse struct {
	VehicleID   string     `json:"vehicle_id"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

type ReopenRequest struct {
	VehicleID string `json:"vehicle_id"`
}

type DirectionRequest struct {
	OperatorID string `json:"operator_id"`
	Direction  string `json:"direction"`
}

type AckResponse struct {
	Status string `json:"status"`
}

type VehicleStatusResponse struct {
	VehicleID   string         `json:"vehicle_id"`
	Plate       string         `json:"plate"`
	Claim       *ClaimResponse `json:"claim,omitempty"`
	LockedUntil *time.Time     `json:"locked_until,omitempty"`
}
