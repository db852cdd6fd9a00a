package model

import (
	"time"

	"github.com/google/uuid"
)

type PatientStatus string

const (
	PatientStatusPending   PatientStatus = "pending"
	PatientStatusFulfilled PatientStatus = "fulfilled"
	PatientStatusCancelled PatientStatus = "cancelled"
)

// Patient is a hospital patient waiting on blood units.
type Patient struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	HospitalID   uuid.UUID     `json:"hospital_id" db:"hospital_id"`
	FirstName    string        `json:"first_name" db:"first_name"`
	LastName     string        `json:"last_name" db:"last_name"`
	BloodType    BloodType     `json:"blood_type" db:"blood_type"`
	UnitsNeeded  int           `json:"units_needed" db:"units_needed"`
	UrgencyLevel int           `json:"urgency_level" db:"urgency_level"`
	Status       PatientStatus `json:"status" db:"status"`
	Diagnosis    string        `json:"diagnosis" db:"diagnosis"`
	Notes        string        `json:"notes" db:"notes"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

type CreatePatientRequest struct {
	FirstName    string    `json:"first_name" binding:"required,max=100"`
	LastName     string    `json:"last_name" binding:"required,max=100"`
	BloodType    BloodType `json:"blood_type" binding:"required,bloodtype"`
	UnitsNeeded  int       `json:"units_needed" binding:"required,min=1,max=100"`
	UrgencyLevel int       `json:"urgency_level" binding:"omitempty,urgency"`
	Diagnosis    string    `json:"diagnosis" binding:"max=500"`
	Notes        string    `json:"notes" binding:"max=2000"`
}

type UpdatePatientRequest struct {
	FirstName    *string        `json:"first_name" binding:"omitempty,max=100"`
	LastName     *string        `json:"last_name" binding:"omitempty,max=100"`
	BloodType    *BloodType     `json:"blood_type" binding:"omitempty,bloodtype"`
	UnitsNeeded  *int           `json:"units_needed" binding:"omitempty,min=1,max=100"`
	UrgencyLevel *int           `json:"urgency_level" binding:"omitempty,urgency"`
	Status       *PatientStatus `json:"status" binding:"omitempty,oneof=pending fulfilled cancelled"`
	Diagnosis    *string        `json:"diagnosis" binding:"omitempty,max=500"`
	Notes        *string        `json:"notes" binding:"omitempty,max=2000"`
}

type PatientFilters struct {
	Status PatientStatus
	Limit  int
	Offset int
}

type PatientStats struct {
	Total              int `json:"total" db:"total"`
	Pending            int `json:"pending" db:"pending"`
	Fulfilled          int `json:"fulfilled" db:"fulfilled"`
	Cancelled          int `json:"cancelled" db:"cancelled"`
	PendingUnitsNeeded int `json:"pending_units_needed" db:"pending_units_needed"`
}
