package response_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/internal/repository/memory"
	"github.com/lifeline/donation-api/internal/service/notification"
	"github.com/lifeline/donation-api/internal/service/response"
	"github.com/lifeline/donation-api/internal/service/urgency"
	"github.com/lifeline/donation-api/internal/testutil"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/metrics"
)

type fixture struct {
	repos    *repository.Store
	notifier notification.Service
	request  *model.UrgencyRequest
	donor    testutil.Seeded
}

func setup(t *testing.T) *fixture {
	t.Helper()
	repos := memory.New().Repositories()
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	notifier := notification.NewService(repos.Outbox, repos.Appointments, m)

	hospital := testutil.Hospital(t, repos, "Grady", testutil.Point(testutil.Atlanta))
	donor := testutil.Donor(t, repos, testutil.DonorSeed{
		FirstName:   "Ada",
		BloodType:   model.BloodTypeOPos,
		Location:    testutil.Point(testutil.North(testutil.Atlanta, 0.3)),
		Eligibility: model.EligibilityEligible,
	})

	created, err := urgency.NewService(repos, notifier, urgency.Config{}, logger.Nop(), m).
		Create(context.Background(), hospital.UserID, model.CreateUrgencyRequest{BloodType: "O+", UrgencyLevel: 4})
	require.NoError(t, err)

	return &fixture{repos: repos, notifier: notifier, request: created.Request, donor: donor}
}

// misroutedAppointments points every appointment at a hospital that does not
// exist, so the appointment half of an accept fails.
type misroutedAppointments struct {
	repository.UrgencyResponseRepository
}

func (r misroutedAppointments) Accept(ctx context.Context, appt *model.Appointment, resp *model.UrgencyResponse) error {
	appt.HospitalID = uuid.New()
	return r.UrgencyResponseRepository.Accept(ctx, appt, resp)
}

func TestAcceptWritesNothingWhenAppointmentFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	repos := *f.repos
	repos.Responses = misroutedAppointments{f.repos.Responses}
	svc := response.NewService(&repos, f.notifier, logger.Nop())

	_, err := svc.Accept(ctx, f.donor.UserID, f.request.ID, model.AcceptUrgencyRequest{
		AppointmentDate: time.Now().Add(24 * time.Hour),
	})
	require.Error(t, err)

	_, err = f.repos.Responses.Get(ctx, f.request.ID, f.donor.DonorID)
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected not found, got %v", err)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)

	appts, err := f.repos.Appointments.ListByDonor(ctx, f.donor.UserID)
	require.NoError(t, err)
	assert.Empty(t, appts)

	// The donor can still answer once the store is healthy again.
	_, err = response.NewService(f.repos, f.notifier, logger.Nop()).Accept(ctx, f.donor.UserID, f.request.ID, model.AcceptUrgencyRequest{
		AppointmentDate: time.Now().Add(24 * time.Hour),
	})
	assert.NoError(t, err)
}

func TestConcurrentAcceptsHaveOneWinner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := response.NewService(f.repos, f.notifier, logger.Nop())

	const attempts = 30
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		wins       int
		duplicates int
		others     []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.Accept(ctx, f.donor.UserID, f.request.ID, model.AcceptUrgencyRequest{
				AppointmentDate: time.Now().Add(time.Duration(24+i) * time.Hour),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperrors.Is(err, apperrors.ErrDuplicateResponse):
				duplicates++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, duplicates)

	appts, err := f.repos.Appointments.ListByDonor(ctx, f.donor.UserID)
	require.NoError(t, err)
	assert.Len(t, appts, 1)

	resp, err := f.repos.Responses.Get(ctx, f.request.ID, f.donor.DonorID)
	require.NoError(t, err)
	assert.Equal(t, model.ResponseAccepted, resp.ResponseType)
	require.NotNil(t, resp.ScheduledAppointmentID)
	assert.Equal(t, appts[0].ID, *resp.ScheduledAppointmentID)
}

func TestAcceptAfterReject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := response.NewService(f.repos, f.notifier, logger.Nop())

	_, err := svc.Reject(ctx, f.donor.UserID, f.request.ID, model.RejectUrgencyRequest{Reason: "travelling"})
	require.NoError(t, err)

	// Only a cancelled response can be answered again.
	_, err = svc.Accept(ctx, f.donor.UserID, f.request.ID, model.AcceptUrgencyRequest{
		AppointmentDate: time.Now().Add(24 * time.Hour),
	})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateResponse)

	_, err = svc.Reject(ctx, f.donor.UserID, uuid.New(), model.RejectUrgencyRequest{})
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrDenied)
}
