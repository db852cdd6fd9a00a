package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lifeline/donation-api/internal/email"
	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/messaging"
	"github.com/lifeline/donation-api/pkg/metrics"
)

// RelayChannels are the broker patterns the email relay listens on.
var RelayChannels = []string{model.EventUrgencyBroadcast, "appointment.*"}

// EmailRelay turns published notification events into emails.
type EmailRelay struct {
	broker  messaging.Broker
	mailer  email.Service
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewEmailRelay(broker messaging.Broker, mailer email.Service, log *logger.Logger, m *metrics.Metrics) *EmailRelay {
	return &EmailRelay{
		broker:  broker,
		mailer:  mailer,
		logger:  log.With("component", "email_relay"),
		metrics: m,
	}
}

// Start consumes until ctx is cancelled.
func (r *EmailRelay) Start(ctx context.Context) error {
	msgs, err := r.broker.Subscribe(ctx, RelayChannels...)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	r.logger.Info("Starting email relay", "channels", strings.Join(RelayChannels, ","))
	r.Consume(ctx, msgs)
	return nil
}

// Consume handles messages until msgs is closed.
func (r *EmailRelay) Consume(ctx context.Context, msgs <-chan messaging.Message) {
	for msg := range msgs {
		if err := r.Handle(ctx, msg); err != nil {
			r.logger.Error(err, "Failed to relay message", "channel", msg.Channel)
		}
	}
	r.logger.Info("Email relay stopped")
}

// Handle delivers one message. A failed recipient does not stop delivery to
// the others; the first error is returned.
func (r *EmailRelay) Handle(ctx context.Context, msg messaging.Message) error {
	switch {
	case msg.Channel == model.EventUrgencyBroadcast:
		var alert model.UrgencyBroadcast
		if err := json.Unmarshal(msg.Payload, &alert); err != nil {
			return fmt.Errorf("failed to decode urgency broadcast: %w", err)
		}
		var firstErr error
		for _, to := range alert.Recipients {
			err := r.mailer.SendUrgencyAlert(ctx, to, &alert)
			r.observe(msg.Channel, err)
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr

	case strings.HasPrefix(msg.Channel, "appointment."):
		var notice model.AppointmentNotice
		if err := json.Unmarshal(msg.Payload, &notice); err != nil {
			return fmt.Errorf("failed to decode appointment notice: %w", err)
		}
		err := r.mailer.SendAppointmentNotice(ctx, &notice)
		r.observe(msg.Channel, err)
		return err
	}

	r.logger.Debug("Ignoring message", "channel", msg.Channel)
	return nil
}

func (r *EmailRelay) observe(eventType string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	r.metrics.EmailsSent.WithLabelValues(eventType, status).Inc()
}
