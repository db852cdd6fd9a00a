package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository/memory"
	seed "github.com/lifeline/donation-api/internal/testutil"
	"github.com/lifeline/donation-api/pkg/metrics"
)

func TestBroadcastUrgency(t *testing.T) {
	store := memory.New()
	repos := store.Repositories()
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	svc := NewService(repos.Outbox, repos.Appointments, m)

	require.NoError(t, svc.BroadcastUrgency(context.Background(), &model.UrgencyBroadcast{
		UrgencyRequestID: uuid.New(),
		HospitalName:     "Grady",
		BloodType:        model.BloodTypeABNeg,
		UrgencyLevel:     3,
		Recipients: []model.DonorContact{
			{Email: "a@example.org"},
			{Email: "b@example.org"},
		},
	}))

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventUrgencyBroadcast, events[0].EventType)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)

	var payload model.UrgencyBroadcast
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Len(t, payload.Recipients, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DonorsNotified))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsEnqueued.WithLabelValues(model.EventUrgencyBroadcast)))
}

func TestBroadcastWithoutRecipientsIsNoop(t *testing.T) {
	store := memory.New()
	repos := store.Repositories()
	svc := NewService(repos.Outbox, repos.Appointments, metrics.NewMetrics("test", prometheus.NewRegistry()))

	require.NoError(t, svc.BroadcastUrgency(context.Background(), &model.UrgencyBroadcast{HospitalName: "Grady"}))
	assert.Empty(t, store.Events())
}

func TestAppointmentChanged(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repos := store.Repositories()
	svc := NewService(repos.Outbox, repos.Appointments, metrics.NewMetrics("test", prometheus.NewRegistry()))

	hospital := seed.Hospital(t, repos, "Grady", seed.Point(seed.Atlanta))
	donor := seed.Donor(t, repos, seed.DonorSeed{Email: "ada@example.org", FirstName: "Ada", BloodType: model.BloodTypeBNeg})

	appt := &model.Appointment{
		DonorID:         donor.DonorID,
		HospitalID:      hospital.HospitalID,
		AppointmentDate: time.Now().Add(24 * time.Hour),
		BloodType:       model.BloodTypeBNeg,
	}
	require.NoError(t, repos.Appointments.Create(ctx, appt))

	require.NoError(t, svc.AppointmentChanged(ctx, model.EventAppointmentScheduled, appt.ID))

	events := store.Events()
	require.Len(t, events, 1)
	var notice model.AppointmentNotice
	require.NoError(t, json.Unmarshal(events[0].Payload, &notice))
	assert.Equal(t, appt.ID, notice.AppointmentID)
	assert.Equal(t, "Grady", notice.HospitalName)
	assert.Equal(t, "ada@example.org", notice.Recipient.Email)
	assert.Equal(t, "Ada", notice.Recipient.FirstName)

	err := svc.AppointmentChanged(ctx, model.EventAppointmentCancelled, uuid.New())
	assert.Error(t, err)
	assert.Len(t, store.Events(), 1)
}
