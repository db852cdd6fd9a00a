package model

import (
	"time"

	"github.com/google/uuid"
)

// Event types written to the outbox and used as broker channels.
const (
	EventUrgencyBroadcast     = "urgency.broadcast"
	EventAppointmentScheduled = "appointment.scheduled"
	EventAppointmentCancelled = "appointment.cancelled"
)

// DonorContact is who a notification is delivered to.
type DonorContact struct {
	DonorID   uuid.UUID `json:"donor_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	Phone     string    `json:"phone,omitempty"`
}

type UrgencyBroadcast struct {
	UrgencyRequestID uuid.UUID      `json:"urgency_request_id"`
	HospitalName     string         `json:"hospital_name"`
	HospitalAddress  string         `json:"hospital_address"`
	BloodType        BloodType      `json:"blood_type"`
	UrgencyLevel     int            `json:"urgency_level"`
	Message          string         `json:"message"`
	Recipients       []DonorContact `json:"recipients"`
}

type AppointmentNotice struct {
	AppointmentID   uuid.UUID         `json:"appointment_id"`
	Status          AppointmentStatus `json:"status"`
	AppointmentDate time.Time         `json:"appointment_date"`
	HospitalName    string            `json:"hospital_name"`
	CancelledBy     *Role             `json:"cancelled_by,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	Recipient       DonorContact      `json:"recipient"`
}
