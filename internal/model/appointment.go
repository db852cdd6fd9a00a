package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment invariant: DonationCompleted implies Status == completed.
type Appointment struct {
	ID                 uuid.UUID         `json:"id" db:"id"`
	DonorID            uuid.UUID         `json:"donor_id" db:"donor_id"`
	HospitalID         uuid.UUID         `json:"hospital_id" db:"hospital_id"`
	UrgencyRequestID   *uuid.UUID        `json:"urgency_request_id,omitempty" db:"urgency_request_id"`
	AppointmentDate    time.Time         `json:"appointment_date" db:"appointment_date"`
	BloodType          BloodType         `json:"blood_type" db:"blood_type"`
	Status             AppointmentStatus `json:"status" db:"status"`
	DonorArrived       bool              `json:"donor_arrived" db:"donor_arrived"`
	DonationCompleted  bool              `json:"donation_completed" db:"donation_completed"`
	HospitalNotes      string            `json:"hospital_notes" db:"hospital_notes"`
	Notes              string            `json:"notes" db:"notes"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelledBy        *Role             `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancellationReason *string           `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at" db:"updated_at"`
}

type CreateAppointmentRequest struct {
	HospitalID      uuid.UUID `json:"hospital_id" binding:"required"`
	AppointmentDate time.Time `json:"appointment_date" binding:"required"`
	Notes           string    `json:"notes" binding:"max=1000"`
}

type RescheduleRequest struct {
	AppointmentDate time.Time `json:"appointment_date" binding:"required"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// AppointmentStatusUpdate carries the hospital-side tracking flags; nil
// fields are left unchanged.
type AppointmentStatusUpdate struct {
	DonorArrived      *bool   `json:"donor_arrived"`
	DonationCompleted *bool   `json:"donation_completed"`
	HospitalNotes     *string `json:"hospital_notes" binding:"omitempty,max=2000"`
}

// Apply sets the flags on a scheduled appointment and derives the status.
func (u AppointmentStatusUpdate) Apply(a *Appointment) {
	if u.DonorArrived != nil {
		a.DonorArrived = *u.DonorArrived
	}
	if u.HospitalNotes != nil {
		a.HospitalNotes = *u.HospitalNotes
	}
	if u.DonationCompleted != nil && *u.DonationCompleted {
		a.DonationCompleted = true
		a.DonorArrived = true
		a.Status = AppointmentStatusCompleted
	}
}

type DonorAppointment struct {
	Appointment
	HospitalName          string  `json:"hospital_name" db:"hospital_name"`
	HospitalAddressFields Address `json:"-" db:"hospital"`
	HospitalAddress       string  `json:"hospital_address" db:"-"`
	HospitalPhone         string  `json:"hospital_phone" db:"hospital_phone"`
}

type HospitalAppointment struct {
	Appointment
	DonorFirstName string    `json:"donor_first_name" db:"donor_first_name"`
	DonorLastName  string    `json:"donor_last_name" db:"donor_last_name"`
	DonorBloodType BloodType `json:"donor_blood_type" db:"donor_blood_type"`
	DonorPhone     string    `json:"donor_phone" db:"donor_phone"`
	DonorEmail     string    `json:"donor_email" db:"donor_email"`
}

// HospitalAppointmentOrder ranks statuses for the hospital list:
// scheduled, then completed, then cancelled.
func HospitalAppointmentOrder(s AppointmentStatus) int {
	switch s {
	case AppointmentStatusScheduled:
		return 0
	case AppointmentStatusCompleted:
		return 1
	default:
		return 2
	}
}
