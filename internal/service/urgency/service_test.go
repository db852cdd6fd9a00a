package urgency_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/internal/repository/memory"
	"github.com/lifeline/donation-api/internal/service/appointment"
	"github.com/lifeline/donation-api/internal/service/notification"
	"github.com/lifeline/donation-api/internal/service/response"
	"github.com/lifeline/donation-api/internal/service/urgency"
	"github.com/lifeline/donation-api/internal/testutil"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/metrics"
)

type harness struct {
	store        *memory.Store
	repos        *repository.Store
	urgency      *urgency.Service
	responses    *response.Service
	appointments *appointment.Service
}

func newHarness(t *testing.T, notifier notification.Service) *harness {
	t.Helper()
	store := memory.New()
	repos := store.Repositories()
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	if notifier == nil {
		notifier = notification.NewService(repos.Outbox, repos.Appointments, m)
	}
	return &harness{
		store:        store,
		repos:        repos,
		urgency:      urgency.NewService(repos, notifier, urgency.Config{}, logger.Nop(), m),
		responses:    response.NewService(repos, notifier, logger.Nop()),
		appointments: appointment.NewService(repos, notifier, logger.Nop()),
	}
}

type failingNotifier struct{}

func (failingNotifier) BroadcastUrgency(context.Context, *model.UrgencyBroadcast) error {
	return errors.New("outbox unavailable")
}

func (failingNotifier) AppointmentChanged(context.Context, string, uuid.UUID) error {
	return errors.New("outbox unavailable")
}

func createRequest(t *testing.T, h *harness, hospital testutil.Seeded, level int) *model.UrgencyRequest {
	t.Helper()
	res, err := h.urgency.Create(context.Background(), hospital.UserID, model.CreateUrgencyRequest{
		BloodType:    "O+",
		UrgencyLevel: level,
	})
	require.NoError(t, err)
	return res.Request
}

func donorIDs(donors []model.NearbyDonor) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(donors))
	for _, d := range donors {
		ids = append(ids, d.DonorID)
	}
	return ids
}

func TestBroadcastAcceptCompleteFulfill(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	hospital := testutil.Hospital(t, h.repos, "Grady", testutil.Point(testutil.Atlanta))
	donorA := testutil.Donor(t, h.repos, testutil.DonorSeed{
		FirstName: "Ada", BloodType: model.BloodTypeOPos,
		Location: testutil.Point(testutil.North(testutil.Atlanta, 0.3)), Eligibility: model.EligibilityEligible,
	})
	donorB := testutil.Donor(t, h.repos, testutil.DonorSeed{
		FirstName: "Bo", BloodType: model.BloodTypeOPos,
		Location: testutil.Point(testutil.North(testutil.Atlanta, 6)), Eligibility: model.EligibilityEligible,
	})

	created, err := h.urgency.Create(ctx, hospital.UserID, model.CreateUrgencyRequest{
		BloodType: "O+", UrgencyLevel: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created.NotifiedDonors)
	assert.Empty(t, created.Warnings)
	assert.True(t, created.Request.IsActive)
	assert.Equal(t, model.DefaultRadiusMiles, created.Request.RadiusMiles)

	nearby, err := h.urgency.RequestDonors(ctx, hospital.UserID, created.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{donorA.DonorID}, donorIDs(nearby.Eligible))
	assert.Empty(t, nearby.Ineligible)
	assert.InDelta(t, 0.3, nearby.Eligible[0].DistanceMiles, 0.05)
	assert.Nil(t, nearby.Eligible[0].Response)

	visibleToB, err := h.urgency.ListForDonor(ctx, donorB.UserID)
	require.NoError(t, err)
	assert.Empty(t, visibleToB)

	date := time.Now().Add(48 * time.Hour)
	accepted, err := h.responses.Accept(ctx, donorA.UserID, created.Request.ID, model.AcceptUrgencyRequest{AppointmentDate: date})
	require.NoError(t, err)
	assert.Equal(t, "Grady", accepted.HospitalName)
	assert.Equal(t, model.AppointmentStatusScheduled, accepted.Appointment.Status)
	assert.Equal(t, model.BloodTypeOPos, accepted.Appointment.BloodType)
	require.NotNil(t, accepted.Appointment.UrgencyRequestID)
	assert.Equal(t, created.Request.ID, *accepted.Appointment.UrgencyRequestID)

	_, err = h.responses.Accept(ctx, donorA.UserID, created.Request.ID, model.AcceptUrgencyRequest{AppointmentDate: date})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateResponse)
	_, err = h.responses.Reject(ctx, donorA.UserID, created.Request.ID, model.RejectUrgencyRequest{})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyResponded)

	donorAppts, err := h.appointments.ListForDonor(ctx, donorA.UserID)
	require.NoError(t, err)
	assert.Len(t, donorAppts, 1)

	nearby, err = h.urgency.RequestDonors(ctx, hospital.UserID, created.Request.ID)
	require.NoError(t, err)
	require.Len(t, nearby.Eligible, 1)
	require.NotNil(t, nearby.Eligible[0].Response)
	assert.Equal(t, model.ResponseAccepted, nearby.Eligible[0].Response.ResponseType)

	count, err := h.urgency.CountForDonor(ctx, donorA.UserID)
	require.NoError(t, err)
	assert.Zero(t, count)

	arrived := true
	appt, err := h.appointments.UpdateStatus(ctx, hospital.UserID, accepted.Appointment.ID, model.AppointmentStatusUpdate{DonorArrived: &arrived})
	require.NoError(t, err)
	assert.True(t, appt.DonorArrived)
	assert.Equal(t, model.AppointmentStatusScheduled, appt.Status)

	appt, err = h.appointments.Complete(ctx, hospital.UserID, accepted.Appointment.ID)
	require.NoError(t, err)
	assert.True(t, appt.DonationCompleted)
	assert.Equal(t, model.AppointmentStatusCompleted, appt.Status)

	fulfilled, err := h.urgency.Fulfill(ctx, hospital.UserID, created.Request.ID)
	require.NoError(t, err)
	assert.False(t, fulfilled.IsActive)
	assert.NotNil(t, fulfilled.FulfilledAt)

	visibleToA, err := h.urgency.ListForDonor(ctx, donorA.UserID)
	require.NoError(t, err)
	assert.Empty(t, visibleToA)

	hospitalAppts, err := h.appointments.ListForHospital(ctx, hospital.UserID)
	require.NoError(t, err)
	require.Len(t, hospitalAppts, 1)
	assert.Equal(t, model.AppointmentStatusCompleted, hospitalAppts[0].Status)
}

func TestCreateEnqueuesBroadcastForEligibleDonorsOnly(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	hospital := testutil.Hospital(t, h.repos, "Grady", testutil.Point(testutil.Atlanta))
	eligible := testutil.Donor(t, h.repos, testutil.DonorSeed{
		FirstName: "Ada", BloodType: model.BloodTypeOPos,
		Location: testutil.Point(testutil.North(testutil.Atlanta, 1)), Eligibility: model.EligibilityEligible,
	})
	ineligible := testutil.Donor(t, h.repos, testutil.DonorSeed{
		BloodType: model.BloodTypeOPos,
		Location:  testutil.Point(testutil.North(testutil.Atlanta, 1)), Eligibility: model.EligibilityIneligible,
	})
	pending := testutil.Donor(t, h.repos, testutil.DonorSeed{
		BloodType: model.BloodTypeOPos,
		Location:  testutil.Point(testutil.North(testutil.Atlanta, 1)),
	})
	testutil.Donor(t, h.repos, testutil.DonorSeed{
		BloodType: model.BloodTypeONeg,
		Location:  testutil.Point(testutil.North(testutil.Atlanta, 1)), Eligibility: model.EligibilityEligible,
	})

	created, err := h.urgency.Create(ctx, hospital.UserID, model.CreateUrgencyRequest{BloodType: "O_plus", UrgencyLevel: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, created.NotifiedDonors)

	events := h.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventUrgencyBroadcast, events[0].EventType)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)

	var alert model.UrgencyBroadcast
	require.NoError(t, json.Unmarshal(events[0].Payload, &alert))
	require.Len(t, alert.Recipients, 1)
	assert.Equal(t, eligible.DonorID, alert.Recipients[0].DonorID)
	assert.Equal(t, eligible.Email, alert.Recipients[0].Email)
	assert.Equal(t, "Grady", alert.HospitalName)

	nearby, err := h.urgency.NearbyDonors(ctx, hospital.UserID, model.NearbyDonorsQuery{BloodType: "O+"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{eligible.DonorID}, donorIDs(nearby.Eligible))
	assert.Equal(t, []uuid.UUID{ineligible.DonorID}, donorIDs(nearby.Ineligible))
	assert.NotContains(t, append(donorIDs(nearby.Eligible), donorIDs(nearby.Ineligible)...), pending.DonorID)
}

func TestNearbyDonorsRadius(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	hospital := testutil.Hospital(t, h.repos, "Grady", testutil.Point(testutil.Atlanta))
	inside := testutil.Donor(t, h.repos, testutil.DonorSeed{
		BloodType: model.BloodTypeAPos,
		Location:  testutil.Point(testutil.North(testutil.Atlanta, 4.95)), Eligibility: model.EligibilityEligible,
	})
	closer := testutil.Donor(t, h.repos, testutil.DonorSeed{
		BloodType: model.BloodTypeAPos,
		Location:  testutil.Point(testutil.North(testutil.Atlanta, 2)), Eligibility: model.EligibilityEligible,
	})
	testutil.Donor(t, h.repos, testutil.DonorSeed{
		BloodType: model.BloodTypeAPos,
		Location:  testutil.Point(testutil.North(testutil.Atlanta, 5.05)), Eligibility: model.EligibilityEligible,
	})
	testutil.Donor(t, h.repos, testutil.DonorSeed{
		BloodType: model.BloodTypeAPos, Eligibility: model.EligibilityEligible,
	})

	nearby, err := h.urgency.NearbyDonors(ctx, hospital.UserID, model.NearbyDonorsQuery{BloodType: "A+"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{closer.DonorID, inside.DonorID}, donorIDs(nearby.Eligible))
	assert.NotNil(t, nearby.Ineligible)

	wide := 10.0
	nearby, err = h.urgency.NearbyDonors(ctx, hospital.UserID, model.NearbyDonorsQuery{BloodType: "A+", RadiusMiles: &wide})
	require.NoError(t, err)
	assert.Len(t, nearby.Eligible, 3)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	located := testutil.Hospital(t, h.repos, "Grady", testutil.Point(testutil.Atlanta))
	unlocated := testutil.Hospital(t, h.repos, "Nowhere", nil)

	_, err := h.urgency.Create(ctx, located.UserID, model.CreateUrgencyRequest{BloodType: "Q+", UrgencyLevel: 3})
	assert.ErrorIs(t, err, apperrors.ErrInvalidBloodType)

	_, err = h.urgency.Create(ctx, located.UserID, model.CreateUrgencyRequest{BloodType: "O+", UrgencyLevel: 6})
	assert.ErrorIs(t, err, apperrors.ErrInvalidUrgencyLevel)

	_, err = h.urgency.Create(ctx, unlocated.UserID, model.CreateUrgencyRequest{BloodType: "O+", UrgencyLevel: 3})
	assert.ErrorIs(t, err, apperrors.ErrHospitalLocationMissing)

	requests, err := h.urgency.ListForHospital(ctx, unlocated.UserID)
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestCreateSurvivesNotifierFailure(t *testing.T) {
	h := newHarness(t, failingNotifier{})
	ctx := context.Background()

	hospital := testutil.Hospital(t, h.repos, "Grady", testutil.Point(testutil.Atlanta))
	testutil.Donor(t, h.repos, testutil.DonorSeed{
		BloodType: model.BloodTypeOPos,
		Location:  testutil.Point(testutil.North(testutil.Atlanta, 1)), Eligibility: model.EligibilityEligible,
	})

	created, err := h.urgency.Create(ctx, hospital.UserID, model.CreateUrgencyRequest{BloodType: "O+", UrgencyLevel: 2})
	require.NoError(t, err)
	assert.Zero(t, created.NotifiedDonors)
	assert.Equal(t, []string{urgency.WarningNotifyFailed}, created.Warnings)

	stored, err := h.repos.Urgency.GetByID(ctx, created.Request.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
}

func TestListForDonorVisibility(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	hospital := testutil.Hospital(t, h.repos, "Grady", testutil.Point(testutil.Atlanta))
	donor := testutil.Donor(t, h.repos, testutil.DonorSeed{
		BloodType: model.BloodTypeOPos,
		Location:  testutil.Point(testutil.North(testutil.Atlanta, 1)), Eligibility: model.EligibilityEligible,
	})

	h.store.SetClock(func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) })
	createRequest(t, h, hospital, 5)
	h.store.SetClock(time.Now)

	low := createRequest(t, h, hospital, 2)
	high := createRequest(t, h, hospital, 4)
	rejected := createRequest(t, h, hospital, 3)
	closed := createRequest(t, h, hospital, 5)

	_, err := h.responses.Reject(ctx, donor.UserID, rejected.ID, model.RejectUrgencyRequest{Reason: "travelling"})
	require.NoError(t, err)
	_, err = h.urgency.Deactivate(ctx, hospital.UserID, closed.ID)
	require.NoError(t, err)

	visible, err := h.urgency.ListForDonor(ctx, donor.UserID)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, high.ID, visible[0].ID)
	assert.Equal(t, low.ID, visible[1].ID)
	assert.Equal(t, "Grady", visible[0].HospitalName)
	assert.InDelta(t, 1.0, visible[0].DistanceMiles, 0.05)
	assert.Nil(t, visible[0].UserResponse)

	count, err := h.urgency.CountForDonor(ctx, donor.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = h.responses.Accept(ctx, donor.UserID, closed.ID, model.AcceptUrgencyRequest{AppointmentDate: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, apperrors.ErrRequestNoLongerActive)

	_, err = h.responses.Accept(ctx, donor.UserID, uuid.New(), model.AcceptUrgencyRequest{AppointmentDate: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrDenied)
}

func TestCancelReopensResponse(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	hospital := testutil.Hospital(t, h.repos, "Grady", testutil.Point(testutil.Atlanta))
	donor := testutil.Donor(t, h.repos, testutil.DonorSeed{
		FirstName: "Ada", BloodType: model.BloodTypeOPos,
		Location: testutil.Point(testutil.North(testutil.Atlanta, 1)), Eligibility: model.EligibilityEligible,
	})
	request := createRequest(t, h, hospital, 4)

	accepted, err := h.responses.Accept(ctx, donor.UserID, request.ID, model.AcceptUrgencyRequest{AppointmentDate: time.Now().Add(24 * time.Hour)})
	require.NoError(t, err)

	_, err = h.appointments.Cancel(ctx, hospital.Actor, accepted.Appointment.ID, "")
	require.NoError(t, err)
	_, err = h.appointments.Cancel(ctx, hospital.Actor, accepted.Appointment.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrAppointmentNotScheduled)

	resp, err := h.repos.Responses.Get(ctx, request.ID, donor.DonorID)
	require.NoError(t, err)
	assert.Equal(t, model.ResponseCancelled, resp.ResponseType)

	visible, err := h.urgency.ListForDonor(ctx, donor.UserID)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.NotNil(t, visible[0].UserResponse)
	assert.Equal(t, model.ResponseCancelled, visible[0].UserResponse.ResponseType)

	again, err := h.responses.Accept(ctx, donor.UserID, request.ID, model.AcceptUrgencyRequest{AppointmentDate: time.Now().Add(72 * time.Hour)})
	require.NoError(t, err)
	assert.NotEqual(t, accepted.Appointment.ID, again.Appointment.ID)

	resp, err = h.repos.Responses.Get(ctx, request.ID, donor.DonorID)
	require.NoError(t, err)
	assert.Equal(t, model.ResponseAccepted, resp.ResponseType)
	require.NotNil(t, resp.ScheduledAppointmentID)
	assert.Equal(t, again.Appointment.ID, *resp.ScheduledAppointmentID)

	var types []string
	for _, e := range h.store.Events() {
		types = append(types, e.EventType)
	}
	assert.ElementsMatch(t, []string{
		model.EventUrgencyBroadcast,
		model.EventAppointmentScheduled,
		model.EventAppointmentCancelled,
		model.EventAppointmentScheduled,
	}, types)
}

func TestHospitalCannotTouchAnotherHospitalsRequest(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	owner := testutil.Hospital(t, h.repos, "Grady", testutil.Point(testutil.Atlanta))
	other := testutil.Hospital(t, h.repos, "Emory", testutil.Point(testutil.North(testutil.Atlanta, 3)))
	request := createRequest(t, h, owner, 3)

	_, err := h.urgency.Fulfill(ctx, other.UserID, request.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrDenied)
	_, err = h.urgency.RequestDonors(ctx, other.UserID, request.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrDenied)

	stored, err := h.repos.Urgency.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
}
