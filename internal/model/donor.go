package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/pkg/geo"
)

type EligibilityStatus string

const (
	EligibilityPending    EligibilityStatus = "pending"
	EligibilityEligible   EligibilityStatus = "eligible"
	EligibilityIneligible EligibilityStatus = "ineligible"
)

func (s EligibilityStatus) Valid() bool {
	switch s {
	case EligibilityPending, EligibilityEligible, EligibilityIneligible:
		return true
	}
	return false
}

type Donor struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	FirstName   string     `json:"first_name" db:"first_name"`
	LastName    string     `json:"last_name" db:"last_name"`
	Phone       string     `json:"phone" db:"phone"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Sex         string     `json:"sex" db:"sex"`
	Address
	Latitude          *float64          `json:"latitude" db:"latitude"`
	Longitude         *float64          `json:"longitude" db:"longitude"`
	BloodType         BloodType         `json:"blood_type" db:"blood_type"`
	WeightLbs         *float64          `json:"weight_lbs,omitempty" db:"weight_lbs"`
	HeightIn          *float64          `json:"height_in,omitempty" db:"height_in"`
	EligibilityStatus EligibilityStatus `json:"eligibility_status" db:"eligibility_status"`
	LastDonationDate  *time.Time        `json:"last_donation_date,omitempty" db:"last_donation_date"`

	EmergencyContactName         string `json:"emergency_contact_name" db:"emergency_contact_name"`
	EmergencyContactPhone        string `json:"emergency_contact_phone" db:"emergency_contact_phone"`
	EmergencyContactRelationship string `json:"emergency_contact_relationship" db:"emergency_contact_relationship"`

	HasChronicIllness     bool   `json:"has_chronic_illness" db:"has_chronic_illness"`
	ChronicIllnessDetails string `json:"chronic_illness_details" db:"chronic_illness_details"`
	RecentTravel          bool   `json:"recent_travel" db:"recent_travel"`
	TravelDetails         string `json:"travel_details" db:"travel_details"`
	RecentTattoo          bool   `json:"recent_tattoo" db:"recent_tattoo"`
	TattooDetails         string `json:"tattoo_details" db:"tattoo_details"`
	TakesMedication       bool   `json:"takes_medication" db:"takes_medication"`
	MedicationDetails     string `json:"medication_details" db:"medication_details"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Location returns the stored coordinates, if both are present.
func (d *Donor) Location() (geo.Point, bool) {
	return location(d.Latitude, d.Longitude)
}

func (d *Donor) DisplayAddress() string {
	return d.Address.Display()
}

// DonorProfileRequest is the donor-editable part of the profile.
// Eligibility is deliberately absent.
type DonorProfileRequest struct {
	FirstName   string     `json:"first_name" binding:"required,max=100"`
	LastName    string     `json:"last_name" binding:"required,max=100"`
	Phone       string     `json:"phone" binding:"max=30"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Sex         string     `json:"sex" binding:"omitempty,oneof=female male other"`
	Address
	Latitude         *float64   `json:"latitude"`
	Longitude        *float64   `json:"longitude"`
	BloodType        BloodType  `json:"blood_type" binding:"omitempty,bloodtype"`
	WeightLbs        *float64   `json:"weight_lbs" binding:"omitempty,gt=0"`
	HeightIn         *float64   `json:"height_in" binding:"omitempty,gt=0"`
	LastDonationDate *time.Time `json:"last_donation_date"`

	EmergencyContactName         string `json:"emergency_contact_name"`
	EmergencyContactPhone        string `json:"emergency_contact_phone"`
	EmergencyContactRelationship string `json:"emergency_contact_relationship"`

	HasChronicIllness     bool   `json:"has_chronic_illness"`
	ChronicIllnessDetails string `json:"chronic_illness_details"`
	RecentTravel          bool   `json:"recent_travel"`
	TravelDetails         string `json:"travel_details"`
	RecentTattoo          bool   `json:"recent_tattoo"`
	TattooDetails         string `json:"tattoo_details"`
	TakesMedication       bool   `json:"takes_medication"`
	MedicationDetails     string `json:"medication_details"`
}

// ProfileResult wraps a saved profile with collaborator warnings.
type ProfileResult[T any] struct {
	Profile  T        `json:"profile"`
	Warnings []string `json:"warnings,omitempty"`
}

// DonorCandidate is a donor row considered by the nearby-donor search,
// with the optional response projection.
type DonorCandidate struct {
	DonorID           uuid.UUID          `db:"donor_id"`
	UserID            uuid.UUID          `db:"user_id"`
	Email             string             `db:"email"`
	FirstName         string             `db:"first_name"`
	LastName          string             `db:"last_name"`
	Phone             string             `db:"phone"`
	BloodType         BloodType          `db:"blood_type"`
	EligibilityStatus EligibilityStatus  `db:"eligibility_status"`
	Latitude          float64            `db:"latitude"`
	Longitude         float64            `db:"longitude"`
	ResponseType      *ResponseType      `db:"response_type"`
	RejectionReason   *string            `db:"rejection_reason"`
	AppointmentID     *uuid.UUID         `db:"appointment_id"`
	AppointmentDate   *time.Time         `db:"appointment_date"`
	AppointmentStatus *AppointmentStatus `db:"appointment_status"`
}

// CandidateFilter narrows the donor rows fetched before the exact radius check.
type CandidateFilter struct {
	BloodType BloodType
	Bounds    geo.Bounds
	Statuses  []EligibilityStatus
	// ResponseRequestID, when set, projects each donor's response to that request.
	ResponseRequestID *uuid.UUID
}

// NearbyDonorsQuery is the hospital-side search. RadiusMiles defaults to the
// configured broadcast radius. IncludeResponses projects each donor's
// response to RequestID, or to the latest active request for the type.
type NearbyDonorsQuery struct {
	BloodType        string     `form:"blood_type" binding:"required"`
	RadiusMiles      *float64   `form:"radius" binding:"omitempty,gt=0,lte=500"`
	IncludeResponses bool       `form:"include_responses"`
	RequestID        *uuid.UUID `form:"-"`
}

type NearbyDonor struct {
	DonorID           uuid.UUID          `json:"donor_id"`
	FirstName         string             `json:"first_name"`
	LastName          string             `json:"last_name"`
	Email             string             `json:"email"`
	Phone             string             `json:"phone"`
	BloodType         BloodType          `json:"blood_type"`
	EligibilityStatus EligibilityStatus  `json:"eligibility_status"`
	Latitude          float64            `json:"latitude"`
	Longitude         float64            `json:"longitude"`
	DistanceMiles     float64            `json:"distance_miles"`
	Response          *DonorResponseView `json:"response,omitempty"`
}

type NearbyDonorsResult struct {
	BloodType        BloodType     `json:"blood_type"`
	RadiusMiles      float64       `json:"radius_miles"`
	UrgencyRequestID *uuid.UUID    `json:"urgency_request_id,omitempty"`
	Eligible         []NearbyDonor `json:"eligible"`
	Ineligible       []NearbyDonor `json:"ineligible"`
}

type EligibilityUpdateRequest struct {
	Status  EligibilityStatus `json:"status" binding:"required,eligibility"`
	Reasons []string          `json:"reasons"`
}

type EligibilityUpdateResult struct {
	PreviousStatus EligibilityStatus `json:"previous_status"`
	Status         EligibilityStatus `json:"status"`
	Reasons        []string          `json:"reasons,omitempty"`
}

type EligibilityAuditEntry struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	DonorID        uuid.UUID         `json:"donor_id" db:"donor_id"`
	PreviousStatus EligibilityStatus `json:"previous_status" db:"previous_status"`
	NewStatus      EligibilityStatus `json:"new_status" db:"new_status"`
	Reasons        StringList        `json:"reasons" db:"reasons"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

func location(lat, lng *float64) (geo.Point, bool) {
	if lat == nil || lng == nil {
		return geo.Point{}, false
	}
	return geo.Point{Latitude: *lat, Longitude: *lng}, true
}
