package appointment

import (
	"context"
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
	"github.com/lifeline/donation-api/internal/testutil"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/metrics"
)

type fixture struct {
	svc      *Service
	store    *memory.Store
	repos    *repository.Store
	donor    testutil.Seeded
	hospital testutil.Seeded
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	repos := store.Repositories()
	notifier := notification.NewService(repos.Outbox, repos.Appointments, metrics.NewMetrics("test", prometheus.NewRegistry()))
	return &fixture{
		svc:   NewService(repos, notifier, logger.Nop()),
		store: store,
		repos: repos,
		donor: testutil.Donor(t, repos, testutil.DonorSeed{
			FirstName: "Ada", BloodType: model.BloodTypeBNeg, Eligibility: model.EligibilityEligible,
		}),
		hospital: testutil.Hospital(t, repos, "Grady", testutil.Point(testutil.Atlanta)),
	}
}

func (f *fixture) schedule(t *testing.T) *model.Appointment {
	t.Helper()
	res, err := f.svc.Schedule(context.Background(), f.donor.UserID, model.CreateAppointmentRequest{
		HospitalID:      f.hospital.HospitalID,
		AppointmentDate: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	return res.Appointment
}

func TestScheduleUsesDonorBloodType(t *testing.T) {
	f := setup(t)
	appt := f.schedule(t)

	assert.Equal(t, model.BloodTypeBNeg, appt.BloodType)
	assert.Equal(t, model.AppointmentStatusScheduled, appt.Status)
	assert.Nil(t, appt.UrgencyRequestID)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAppointmentScheduled, events[0].EventType)
}

func TestScheduleValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Schedule(ctx, f.donor.UserID, model.CreateAppointmentRequest{
		HospitalID: f.hospital.HospitalID, AppointmentDate: time.Now().Add(-time.Hour),
	})
	assertCode(t, err, apperrors.ErrValidation)

	_, err = f.svc.Schedule(ctx, f.donor.UserID, model.CreateAppointmentRequest{
		HospitalID: uuid.New(), AppointmentDate: time.Now().Add(time.Hour),
	})
	assertCode(t, err, apperrors.ErrNotFound)

	typeless := testutil.Donor(t, f.repos, testutil.DonorSeed{})
	_, err = f.svc.Schedule(ctx, typeless.UserID, model.CreateAppointmentRequest{
		HospitalID: f.hospital.HospitalID, AppointmentDate: time.Now().Add(time.Hour),
	})
	assertCode(t, err, apperrors.ErrValidation)
}

func TestCancelByDonorRecordsActor(t *testing.T) {
	f := setup(t)
	appt := f.schedule(t)

	res, err := f.svc.Cancel(context.Background(), f.donor.Actor, appt.ID, "sick")
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, model.AppointmentStatusCancelled, res.Appointment.Status)
	require.NotNil(t, res.Appointment.CancelledBy)
	assert.Equal(t, model.RoleDonor, *res.Appointment.CancelledBy)
	require.NotNil(t, res.Appointment.CancellationReason)
	assert.Equal(t, "sick", *res.Appointment.CancellationReason)

	events := f.store.Events()
	assert.Len(t, events, 2)
}

func TestOtherPartiesAreDenied(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	appt := f.schedule(t)

	stranger := testutil.Donor(t, f.repos, testutil.DonorSeed{BloodType: model.BloodTypeBNeg})
	otherHospital := testutil.Hospital(t, f.repos, "Emory", nil)

	_, err := f.svc.Cancel(ctx, stranger.Actor, appt.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrDenied)
	_, err = f.svc.Reschedule(ctx, stranger.UserID, appt.ID, time.Now().Add(48*time.Hour))
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrDenied)
	_, err = f.svc.Complete(ctx, otherHospital.UserID, appt.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrDenied)
	assert.ErrorIs(t, f.svc.Delete(ctx, otherHospital.UserID, appt.ID), apperrors.ErrNotFoundOrDenied)
}

func TestRescheduleOnlyWhileScheduled(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	appt := f.schedule(t)

	_, err := f.svc.Reschedule(ctx, f.donor.UserID, appt.ID, time.Now().Add(-time.Hour))
	assertCode(t, err, apperrors.ErrValidation)

	when := time.Now().Add(72 * time.Hour).Truncate(time.Second)
	moved, err := f.svc.Reschedule(ctx, f.donor.UserID, appt.ID, when)
	require.NoError(t, err)
	assert.True(t, when.Equal(moved.AppointmentDate))
	assert.Equal(t, "Grady", moved.HospitalName)

	_, err = f.svc.Cancel(ctx, f.hospital.Actor, appt.ID, "")
	require.NoError(t, err)
	_, err = f.svc.Reschedule(ctx, f.donor.UserID, appt.ID, when)
	assert.ErrorIs(t, err, apperrors.ErrAppointmentNotScheduled)
}

func TestDeleteRequiresFinishedAppointment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	appt := f.schedule(t)

	err := f.svc.Delete(ctx, f.hospital.UserID, appt.ID)
	assertCode(t, err, apperrors.ErrStateConflict)

	_, err = f.svc.Complete(ctx, f.hospital.UserID, appt.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, f.hospital.UserID, appt.ID))

	list, err := f.svc.ListForHospital(ctx, f.hospital.UserID)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
}

func TestUpdateStatusRejectsUnsettingCompletion(t *testing.T) {
	f := setup(t)
	appt := f.schedule(t)

	no := false
	_, err := f.svc.UpdateStatus(context.Background(), f.hospital.UserID, appt.ID, model.AppointmentStatusUpdate{DonationCompleted: &no})
	assertCode(t, err, apperrors.ErrValidation)
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected app error, got %v", err)
	assert.Equal(t, code, appErr.Code)
}
