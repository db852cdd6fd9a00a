package email

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/lifeline/donation-api/internal/model"
)

type Service interface {
	SendUrgencyAlert(ctx context.Context, to model.DonorContact, alert *model.UrgencyBroadcast) error
	SendAppointmentNotice(ctx context.Context, notice *model.AppointmentNotice) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type smtpService struct {
	from string
	send func(m ...*gomail.Message) error
}

func NewSMTPService(cfg Config) Service {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return &smtpService{
		from: cfg.From,
		send: dialer.DialAndSend,
	}
}

func (s *smtpService) SendUrgencyAlert(ctx context.Context, to model.DonorContact, alert *model.UrgencyBroadcast) error {
	subject := fmt.Sprintf("Urgent: %s blood needed at %s", alert.BloodType, alert.HospitalName)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", greetingName(to.FirstName))
	fmt.Fprintf(&b, "%s needs %s donors (urgency level %d of 5).\n", alert.HospitalName, alert.BloodType, alert.UrgencyLevel)
	if alert.HospitalAddress != "" {
		fmt.Fprintf(&b, "Address: %s\n", alert.HospitalAddress)
	}
	if alert.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", alert.Message)
	}
	b.WriteString("\nOpen the app to accept or decline this request.\n")

	return s.SendCustom(ctx, to.Email, subject, b.String())
}

func (s *smtpService) SendAppointmentNotice(ctx context.Context, notice *model.AppointmentNotice) error {
	when := notice.AppointmentDate.Format("Mon Jan 2, 2006 at 3:04 PM MST")

	var subject string
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", greetingName(notice.Recipient.FirstName))

	switch notice.Status {
	case model.AppointmentStatusCancelled:
		subject = fmt.Sprintf("Appointment at %s cancelled", notice.HospitalName)
		fmt.Fprintf(&b, "Your donation appointment at %s on %s was cancelled", notice.HospitalName, when)
		if notice.CancelledBy != nil {
			fmt.Fprintf(&b, " by the %s", *notice.CancelledBy)
		}
		b.WriteString(".\n")
		if notice.Reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", notice.Reason)
		}
	default:
		subject = fmt.Sprintf("Appointment confirmed at %s", notice.HospitalName)
		fmt.Fprintf(&b, "Your donation appointment at %s is confirmed for %s.\n", notice.HospitalName, when)
	}

	return s.SendCustom(ctx, notice.Recipient.Email, subject, b.String())
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if to == "" {
		return fmt.Errorf("recipient address is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)

	if err := s.send(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

func greetingName(first string) string {
	if strings.TrimSpace(first) == "" {
		return "there"
	}
	return first
}
