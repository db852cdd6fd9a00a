// Package response reconciles donor answers to urgency requests with
// appointments.
package response

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

// WarningConfirmationFailed is returned with an accept whose confirmation event
// could not be queued.
const WarningConfirmationFailed = "appointment scheduled, confirmation not sent"

// Service records donor answers to urgency requests.
type Service struct {
	donors    repository.DonorRepository
	hospitals repository.HospitalRepository
	requests  repository.UrgencyRequestRepository
	responses repository.UrgencyResponseRepository
	notifier  notification.Service
	logger    *logger.Logger
	now       func() time.Time
}

// NewService builds a response service over the given repositories.
func NewService(repos *repository.Store, notifier notification.Service, log *logger.Logger) *Service {
	return &Service{
		donors:    repos.Donors,
		hospitals: repos.Hospitals,
		requests:  repos.Urgency,
		responses: repos.Responses,
		notifier:  notifier,
		logger:    log,
		now:       time.Now,
	}
}

// Accept schedules an appointment from an urgency request. The appointment
// and the accepted response are written in one unit.
func (s *Service) Accept(ctx context.Context, donorUserID, requestID uuid.UUID, req model.AcceptUrgencyRequest) (*model.AcceptResult, error) {
	if !req.AppointmentDate.After(s.now()) {
		return nil, apperrors.NewValidation("appointment_date must be in the future", nil)
	}

	donor, request, err := s.load(ctx, donorUserID, requestID)
	if err != nil {
		return nil, err
	}

	existing, err := s.existing(ctx, request.ID, donor.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ResponseType != model.ResponseCancelled {
		return nil, apperrors.ErrDuplicateResponse
	}

	hospital, err := s.hospitals.GetByID(ctx, request.HospitalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}

	appt := &model.Appointment{
		DonorID:          donor.ID,
		HospitalID:       request.HospitalID,
		UrgencyRequestID: &request.ID,
		AppointmentDate:  req.AppointmentDate,
		BloodType:        request.BloodType,
		Notes:            req.Notes,
	}
	resp := &model.UrgencyResponse{
		UrgencyRequestID: request.ID,
		DonorID:          donor.ID,
	}
	if err := s.responses.Accept(ctx, appt, resp); err != nil {
		return nil, fmt.Errorf("failed to accept urgency request: %w", err)
	}

	result := &model.AcceptResult{Appointment: appt, HospitalName: hospital.Name}
	if err := s.notifier.AppointmentChanged(ctx, model.EventAppointmentScheduled, appt.ID); err != nil {
		s.logger.Warn("Appointment confirmation failed",
			"appointment_id", appt.ID.String(),
			"error", err.Error())
		result.Warnings = append(result.Warnings, WarningConfirmationFailed)
	}
	return result, nil
}

// Reject records a rejection. A pair that is currently accepted must be
// cancelled first.
func (s *Service) Reject(ctx context.Context, donorUserID, requestID uuid.UUID, req model.RejectUrgencyRequest) (*model.UrgencyResponse, error) {
	donor, request, err := s.load(ctx, donorUserID, requestID)
	if err != nil {
		return nil, err
	}

	existing, err := s.existing(ctx, request.ID, donor.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ResponseType == model.ResponseAccepted {
		return nil, apperrors.ErrAlreadyResponded
	}

	resp := &model.UrgencyResponse{
		UrgencyRequestID: request.ID,
		DonorID:          donor.ID,
	}
	if req.Reason != "" {
		reason := req.Reason
		resp.RejectionReason = &reason
	}
	if err := s.responses.Reject(ctx, resp); err != nil {
		return nil, fmt.Errorf("failed to reject urgency request: %w", err)
	}
	return resp, nil
}

func (s *Service) load(ctx context.Context, donorUserID, requestID uuid.UUID) (*model.Donor, *model.UrgencyRequest, error) {
	donor, err := s.donors.GetByUserID(ctx, donorUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get donor profile: %w", err)
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.ErrNotFound {
			return nil, nil, apperrors.ErrNotFoundOrDenied
		}
		return nil, nil, fmt.Errorf("failed to get urgency request: %w", err)
	}
	if !request.IsActive {
		return nil, nil, apperrors.ErrRequestNoLongerActive
	}
	return donor, request, nil
}

func (s *Service) existing(ctx context.Context, requestID, donorID uuid.UUID) (*model.UrgencyResponse, error) {
	resp, err := s.responses.Get(ctx, requestID, donorID)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get urgency response: %w", err)
	}
	return resp, nil
}
