package email

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/lifeline/donation-api/internal/model"
)

func capture(sent *[]*gomail.Message) func(m ...*gomail.Message) error {
	return func(m ...*gomail.Message) error {
		*sent = append(*sent, m...)
		return nil
	}
}

func body(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestSendUrgencyAlert(t *testing.T) {
	var sent []*gomail.Message
	s := &smtpService{from: "alerts@example.org", send: capture(&sent)}

	err := s.SendUrgencyAlert(context.Background(),
		model.DonorContact{DonorID: uuid.New(), Email: "ada@example.org", FirstName: "Ada"},
		&model.UrgencyBroadcast{
			HospitalName:    "Grady",
			HospitalAddress: "80 Jesse Hill Jr Dr SE, Atlanta, GA 30303",
			BloodType:       model.BloodTypeOPos,
			UrgencyLevel:    4,
			Message:         "Trauma surge",
		})
	require.NoError(t, err)
	require.Len(t, sent, 1)

	assert.Equal(t, []string{"ada@example.org"}, sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Urgent: O+ blood needed at Grady"}, sent[0].GetHeader("Subject"))
	assert.Contains(t, body(t, sent[0]), "urgency level 4 of 5")
}

func TestSendAppointmentNoticeCancelled(t *testing.T) {
	var sent []*gomail.Message
	s := &smtpService{from: "alerts@example.org", send: capture(&sent)}

	by := model.RoleHospital
	err := s.SendAppointmentNotice(context.Background(), &model.AppointmentNotice{
		Status:          model.AppointmentStatusCancelled,
		AppointmentDate: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
		HospitalName:    "Grady",
		CancelledBy:     &by,
		Reason:          "staff shortage",
		Recipient:       model.DonorContact{Email: "ada@example.org"},
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)

	assert.Equal(t, []string{"Appointment at Grady cancelled"}, sent[0].GetHeader("Subject"))
	text := body(t, sent[0])
	assert.Contains(t, text, "by the hospital")
	assert.Contains(t, text, "staff shortage")
}

func TestSendCustomErrors(t *testing.T) {
	s := &smtpService{send: func(...*gomail.Message) error { return errors.New("dial tcp: refused") }}

	err := s.SendCustom(context.Background(), "", "s", "b")
	assert.Error(t, err)

	err = s.SendCustom(context.Background(), "x@example.org", "s", "b")
	assert.ErrorContains(t, err, "refused")
}
