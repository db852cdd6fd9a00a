// Package notification hands donor notifications to the outbox. Delivery
// happens later in the worker; failures here are reported to the caller
// as warnings and never undo the write that triggered them.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/pkg/metrics"
)

type Service interface {
	// BroadcastUrgency enqueues one alert for every recipient.
	BroadcastUrgency(ctx context.Context, alert *model.UrgencyBroadcast) error
	// AppointmentChanged enqueues a scheduled or cancelled notice for the donor.
	AppointmentChanged(ctx context.Context, eventType string, appointmentID uuid.UUID) error
}

type service struct {
	outbox       repository.OutboxRepository
	appointments repository.AppointmentRepository
	metrics      *metrics.Metrics
}

func NewService(outbox repository.OutboxRepository, appointments repository.AppointmentRepository, m *metrics.Metrics) Service {
	return &service{
		outbox:       outbox,
		appointments: appointments,
		metrics:      m,
	}
}

func (s *service) BroadcastUrgency(ctx context.Context, alert *model.UrgencyBroadcast) error {
	if len(alert.Recipients) == 0 {
		return nil
	}
	if err := s.emit(ctx, model.EventUrgencyBroadcast, alert); err != nil {
		return err
	}
	s.metrics.DonorsNotified.Add(float64(len(alert.Recipients)))
	return nil
}

func (s *service) AppointmentChanged(ctx context.Context, eventType string, appointmentID uuid.UUID) error {
	notice, err := s.appointments.Notice(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to load appointment notice: %w", err)
	}
	if notice.Recipient.Email == "" {
		return fmt.Errorf("donor for appointment %s has no email", appointmentID)
	}
	return s.emit(ctx, eventType, notice)
}

func (s *service) emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}
	if err := s.outbox.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	s.metrics.OutboxEventsEnqueued.WithLabelValues(eventType).Inc()
	return nil
}
