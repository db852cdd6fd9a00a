package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultRadiusMiles      = 5.0
	DefaultVisibilityWindow = 7 * 24 * time.Hour
)

type UrgencyRequest struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	HospitalID    uuid.UUID  `json:"hospital_id" db:"hospital_id"`
	BloodType     BloodType  `json:"blood_type" db:"blood_type"`
	UrgencyLevel  int        `json:"urgency_level" db:"urgency_level"`
	Message       string     `json:"message" db:"message"`
	RadiusMiles   float64    `json:"radius_miles" db:"radius_miles"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	FulfilledAt   *time.Time `json:"fulfilled_at,omitempty" db:"fulfilled_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty" db:"deactivated_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

type CreateUrgencyRequest struct {
	BloodType    string   `json:"blood_type" binding:"required"`
	UrgencyLevel int      `json:"urgency_level"`
	Message      string   `json:"message" binding:"max=1000"`
	RadiusMiles  *float64 `json:"radius_miles" binding:"omitempty,gt=0,lte=500"`
}

type CreateUrgencyResult struct {
	Request        *UrgencyRequest `json:"request"`
	NotifiedDonors int             `json:"notified_donors"`
	Warnings       []string        `json:"warnings,omitempty"`
}

type ResponseType string

const (
	ResponseAccepted  ResponseType = "accepted"
	ResponseRejected  ResponseType = "rejected"
	ResponseCancelled ResponseType = "cancelled"
)

// UrgencyResponse is the single response row for a (request, donor) pair.
type UrgencyResponse struct {
	ID                     uuid.UUID    `json:"id" db:"id"`
	UrgencyRequestID       uuid.UUID    `json:"urgency_request_id" db:"urgency_request_id"`
	DonorID                uuid.UUID    `json:"donor_id" db:"donor_id"`
	ResponseType           ResponseType `json:"response_type" db:"response_type"`
	RejectionReason        *string      `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ScheduledAppointmentID *uuid.UUID   `json:"scheduled_appointment_id,omitempty" db:"scheduled_appointment_id"`
	RespondedAt            time.Time    `json:"responded_at" db:"responded_at"`
}

// DonorResponseView is a donor's prior response as shown next to a request
// or a nearby donor.
type DonorResponseView struct {
	ResponseType      ResponseType       `json:"response_type"`
	RejectionReason   *string            `json:"rejection_reason,omitempty"`
	AppointmentID     *uuid.UUID         `json:"appointment_id,omitempty"`
	AppointmentDate   *time.Time         `json:"appointment_date,omitempty"`
	AppointmentStatus *AppointmentStatus `json:"appointment_status,omitempty"`
}

// VisibleRequestRow is an active request joined with its hospital and the
// asking donor's response, before the radius check.
type VisibleRequestRow struct {
	UrgencyRequest
	HospitalName      string             `db:"hospital_name"`
	HospitalAddress   Address            `db:"hospital"`
	HospitalPhone     string             `db:"hospital_phone"`
	HospitalLatitude  float64            `db:"hospital_latitude"`
	HospitalLongitude float64            `db:"hospital_longitude"`
	ResponseType      *ResponseType      `db:"response_type"`
	RejectionReason   *string            `db:"rejection_reason"`
	AppointmentID     *uuid.UUID         `db:"appointment_id"`
	AppointmentDate   *time.Time         `db:"appointment_date"`
	AppointmentStatus *AppointmentStatus `db:"appointment_status"`
}

// VisibleRequestFilter selects the active, recent requests for a blood type.
type VisibleRequestFilter struct {
	BloodType BloodType
	Since     time.Time
	DonorID   uuid.UUID
}

// DonorUrgencyRequest is a request as shown to a donor.
type DonorUrgencyRequest struct {
	UrgencyRequest
	HospitalName      string             `json:"hospital_name"`
	HospitalAddress   string             `json:"hospital_address"`
	HospitalPhone     string             `json:"hospital_phone"`
	HospitalLatitude  float64            `json:"hospital_latitude"`
	HospitalLongitude float64            `json:"hospital_longitude"`
	DistanceMiles     float64            `json:"distance_miles"`
	UserResponse      *DonorResponseView `json:"user_response"`
}

// HospitalUrgencyRequest is a hospital's own request with response tallies.
type HospitalUrgencyRequest struct {
	UrgencyRequest
	AcceptedCount  int `json:"accepted_count" db:"accepted_count"`
	RejectedCount  int `json:"rejected_count" db:"rejected_count"`
	CancelledCount int `json:"cancelled_count" db:"cancelled_count"`
}

// HospitalUrgencyResponse is a donor response to one of the hospital's
// active requests.
type HospitalUrgencyResponse struct {
	ID                  uuid.UUID          `json:"id" db:"id"`
	UrgencyRequestID    uuid.UUID          `json:"urgency_request_id" db:"urgency_request_id"`
	RequestBloodType    BloodType          `json:"request_blood_type" db:"request_blood_type"`
	RequestUrgencyLevel int                `json:"request_urgency_level" db:"request_urgency_level"`
	ResponseType        ResponseType       `json:"response_type" db:"response_type"`
	RejectionReason     *string            `json:"rejection_reason,omitempty" db:"rejection_reason"`
	RespondedAt         time.Time          `json:"responded_at" db:"responded_at"`
	DonorID             uuid.UUID          `json:"donor_id" db:"donor_id"`
	DonorFirstName      string             `json:"donor_first_name" db:"donor_first_name"`
	DonorLastName       string             `json:"donor_last_name" db:"donor_last_name"`
	DonorBloodType      BloodType          `json:"donor_blood_type" db:"donor_blood_type"`
	DonorPhone          string             `json:"donor_phone" db:"donor_phone"`
	AppointmentID       *uuid.UUID         `json:"appointment_id,omitempty" db:"appointment_id"`
	AppointmentDate     *time.Time         `json:"appointment_date,omitempty" db:"appointment_date"`
	AppointmentStatus   *AppointmentStatus `json:"appointment_status,omitempty" db:"appointment_status"`
}

type AcceptUrgencyRequest struct {
	AppointmentDate time.Time `json:"appointment_date" binding:"required"`
	Notes           string    `json:"notes" binding:"max=1000"`
}

type RejectUrgencyRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type AcceptResult struct {
	Appointment  *Appointment `json:"appointment"`
	HospitalName string       `json:"hospital_name"`
	Warnings     []string     `json:"warnings,omitempty"`
}
