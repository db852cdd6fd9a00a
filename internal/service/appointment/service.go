package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/internal/service/notification"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
	"github.com/lifeline/donation-api/pkg/logger"
)

const WarningNoticeFailed = "donor notification not sent"

// Result is a changed appointment plus any collaborator warnings.
type Result[T any] struct {
	Appointment T        `json:"appointment"`
	Warnings    []string `json:"warnings,omitempty"`
}

type Service struct {
	repo      repository.AppointmentRepository
	donors    repository.DonorRepository
	hospitals repository.HospitalRepository
	notifier  notification.Service
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(repos *repository.Store, notifier notification.Service, log *logger.Logger) *Service {
	return &Service{
		repo:      repos.Appointments,
		donors:    repos.Donors,
		hospitals: repos.Hospitals,
		notifier:  notifier,
		logger:    log,
		now:       time.Now,
	}
}

func (s *Service) validateDate(date time.Time) error {
	if !date.After(s.now()) {
		return apperrors.NewValidation("appointment_date must be in the future", nil)
	}
	return nil
}

// Schedule books a donation outside any urgency request. The blood type is
// taken from the donor profile.
func (s *Service) Schedule(ctx context.Context, donorUserID uuid.UUID, req model.CreateAppointmentRequest) (*Result[*model.Appointment], error) {
	if err := s.validateDate(req.AppointmentDate); err != nil {
		return nil, err
	}

	donor, err := s.donors.GetByUserID(ctx, donorUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get donor profile: %w", err)
	}
	if donor.BloodType == "" {
		return nil, apperrors.NewValidation("set a blood type on your profile before scheduling", nil)
	}

	if _, err := s.hospitals.GetByID(ctx, req.HospitalID); err != nil {
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}

	appt := &model.Appointment{
		DonorID:         donor.ID,
		HospitalID:      req.HospitalID,
		AppointmentDate: req.AppointmentDate,
		BloodType:       donor.BloodType,
		Notes:           req.Notes,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	return &Result[*model.Appointment]{
		Appointment: appt,
		Warnings:    s.notify(ctx, model.EventAppointmentScheduled, appt.ID),
	}, nil
}

func (s *Service) ListForDonor(ctx context.Context, donorUserID uuid.UUID) ([]*model.DonorAppointment, error) {
	appts, err := s.repo.ListByDonor(ctx, donorUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	if appts == nil {
		appts = []*model.DonorAppointment{}
	}
	return appts, nil
}

func (s *Service) ListForHospital(ctx context.Context, hospitalUserID uuid.UUID) ([]*model.HospitalAppointment, error) {
	appts, err := s.repo.ListByHospital(ctx, hospitalUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	if appts == nil {
		appts = []*model.HospitalAppointment{}
	}
	return appts, nil
}

// Cancel works for either side. A linked urgency response becomes
// cancelled so the donor may answer that request again.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*Result[*model.Appointment], error) {
	appt, err := s.repo.Cancel(ctx, id, actor, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel appointment: %w", err)
	}

	return &Result[*model.Appointment]{
		Appointment: appt,
		Warnings:    s.notify(ctx, model.EventAppointmentCancelled, appt.ID),
	}, nil
}

// Reschedule moves the date only; response state is untouched.
func (s *Service) Reschedule(ctx context.Context, donorUserID, id uuid.UUID, date time.Time) (*model.DonorAppointment, error) {
	if err := s.validateDate(date); err != nil {
		return nil, err
	}
	appt, err := s.repo.Reschedule(ctx, id, donorUserID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to reschedule appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) UpdateStatus(ctx context.Context, hospitalUserID, id uuid.UUID, upd model.AppointmentStatusUpdate) (*model.Appointment, error) {
	if upd.DonationCompleted != nil && !*upd.DonationCompleted {
		return nil, apperrors.NewValidation("donation_completed cannot be unset", nil)
	}
	appt, err := s.repo.UpdateStatus(ctx, id, hospitalUserID, upd)
	if err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	return appt, nil
}

// Complete marks the donor arrived and the donation done.
func (s *Service) Complete(ctx context.Context, hospitalUserID, id uuid.UUID) (*model.Appointment, error) {
	done := true
	return s.UpdateStatus(ctx, hospitalUserID, id, model.AppointmentStatusUpdate{
		DonorArrived:      &done,
		DonationCompleted: &done,
	})
}

func (s *Service) Delete(ctx context.Context, hospitalUserID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id, hospitalUserID); err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, eventType string, id uuid.UUID) []string {
	if err := s.notifier.AppointmentChanged(ctx, eventType, id); err != nil {
		s.logger.Warn("Appointment notification failed",
			"appointment_id", id.String(),
			"event_type", eventType,
			"error", err.Error())
		return []string{WarningNoticeFailed}
	}
	return nil
}
