package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/pkg/geo"
)

// All repository interfaces in one file.
//
// Methods that act on behalf of a caller take the caller's user id and check
// ownership in the same statement that reads or writes; a miss is reported
// as errors.ErrNotFoundOrDenied.
type (
	UserRepository interface {
		// CreateWithProfile inserts the user and an empty donor or hospital row.
		CreateWithProfile(ctx context.Context, user *model.User) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
	}

	DonorRepository interface {
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Donor, error)
		// UpsertProfile saves the profile and marks the user's profile completed.
		UpsertProfile(ctx context.Context, donor *model.Donor) error
		// UpdateEligibility changes the status unless it is already ineligible
		// and records an audit entry. Returns the previous status.
		UpdateEligibility(ctx context.Context, userID uuid.UUID, status model.EligibilityStatus, reasons []string) (model.EligibilityStatus, error)
		ListEligibilityHistory(ctx context.Context, userID uuid.UUID) ([]*model.EligibilityAuditEntry, error)
		FindCandidates(ctx context.Context, filter model.CandidateFilter) ([]*model.DonorCandidate, error)
		ListMissingCoordinates(ctx context.Context, limit int) ([]*model.Donor, error)
		SetCoordinates(ctx context.Context, id uuid.UUID, p geo.Point) error
	}

	HospitalRepository interface {
		GetByID(ctx context.Context, id uuid.UUID) (*model.Hospital, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Hospital, error)
		UpsertProfile(ctx context.Context, hospital *model.Hospital) error
		UpdateUrgencyLevel(ctx context.Context, userID uuid.UUID, level int) error
		ListWithCoordinates(ctx context.Context) ([]*model.Hospital, error)
		ListMissingCoordinates(ctx context.Context, limit int) ([]*model.Hospital, error)
		SetCoordinates(ctx context.Context, id uuid.UUID, p geo.Point) error
	}

	InventoryRepository interface {
		List(ctx context.Context, hospitalID uuid.UUID) ([]*model.InventoryItem, error)
		// Upsert writes every given type; concurrent writers to the same type
		// resolve last-writer-wins.
		Upsert(ctx context.Context, hospitalID uuid.UUID, units map[model.BloodType]int) error
	}

	UrgencyRequestRepository interface {
		Create(ctx context.Context, req *model.UrgencyRequest) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.UrgencyRequest, error)
		GetOwned(ctx context.Context, id, hospitalUserID uuid.UUID) (*model.UrgencyRequest, error)
		// LatestActive returns nil when the hospital has no active request
		// for the blood type.
		LatestActive(ctx context.Context, hospitalID uuid.UUID, bloodType model.BloodType) (*model.UrgencyRequest, error)
		ListByHospital(ctx context.Context, hospitalUserID uuid.UUID) ([]*model.HospitalUrgencyRequest, error)
		ListVisible(ctx context.Context, filter model.VisibleRequestFilter) ([]*model.VisibleRequestRow, error)
		// Close deactivates an owned request; fulfilled also stamps fulfilled_at.
		Close(ctx context.Context, id, hospitalUserID uuid.UUID, fulfilled bool) (*model.UrgencyRequest, error)
	}

	UrgencyResponseRepository interface {
		Get(ctx context.Context, requestID, donorID uuid.UUID) (*model.UrgencyResponse, error)
		// Accept creates the appointment and the accepted response atomically.
		// An existing non-cancelled response yields errors.ErrDuplicateResponse.
		Accept(ctx context.Context, appt *model.Appointment, resp *model.UrgencyResponse) error
		// Reject upserts a rejected response unless the pair is accepted.
		Reject(ctx context.Context, resp *model.UrgencyResponse) error
		ListForHospital(ctx context.Context, hospitalUserID uuid.UUID) ([]*model.HospitalUrgencyResponse, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appt *model.Appointment) error
		ListByDonor(ctx context.Context, donorUserID uuid.UUID) ([]*model.DonorAppointment, error)
		ListByHospital(ctx context.Context, hospitalUserID uuid.UUID) ([]*model.HospitalAppointment, error)
		// Cancel requires status scheduled and flips a linked urgency
		// response to cancelled in the same transaction.
		Cancel(ctx context.Context, id uuid.UUID, actor model.Actor, reason string) (*model.Appointment, error)
		Reschedule(ctx context.Context, id, donorUserID uuid.UUID, date time.Time) (*model.DonorAppointment, error)
		UpdateStatus(ctx context.Context, id, hospitalUserID uuid.UUID, upd model.AppointmentStatusUpdate) (*model.Appointment, error)
		// Delete removes a completed or cancelled appointment.
		Delete(ctx context.Context, id, hospitalUserID uuid.UUID) error
		// Notice loads what a donor-facing notification needs.
		Notice(ctx context.Context, id uuid.UUID) (*model.AppointmentNotice, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id, hospitalID uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id, hospitalID uuid.UUID) error
		List(ctx context.Context, hospitalID uuid.UUID, filters model.PatientFilters) ([]*model.Patient, int64, error)
		Stats(ctx context.Context, hospitalID uuid.UUID) (*model.PatientStats, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending locks due events and marks them processing.
		ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)

// Store bundles every repository behind one backend.
type Store struct {
	Users        UserRepository
	Donors       DonorRepository
	Hospitals    HospitalRepository
	Inventory    InventoryRepository
	Urgency      UrgencyRequestRepository
	Responses    UrgencyResponseRepository
	Appointments AppointmentRepository
	Patients     PatientRepository
	Outbox       OutboxRepository
	Health       HealthChecker
}
