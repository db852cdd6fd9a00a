package patient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/internal/repository/memory"
	"github.com/lifeline/donation-api/internal/testutil"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
	"github.com/lifeline/donation-api/pkg/httputil"
)

func newService(t *testing.T) (*Service, *repository.Store) {
	t.Helper()
	repos := memory.New().Repositories()
	return NewService(repos.Patients, repos.Hospitals, repos.Inventory), repos
}

func TestCalculateUrgency(t *testing.T) {
	tests := []struct {
		needed, available, want int
	}{
		{10, 10, 1},
		{10, 50, 1},
		{10, 9, 2},
		{10, 5, 3},
		{10, 1, 5},
		{10, 0, 5},
		{1, 0, 5},
		{0, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateUrgency(tt.needed, tt.available), "needed=%d available=%d", tt.needed, tt.available)
	}
}

func TestCreateDerivesUrgencyFromInventory(t *testing.T) {
	svc, repos := newService(t)
	ctx := context.Background()
	h := testutil.Hospital(t, repos, "Grady", nil)
	require.NoError(t, repos.Inventory.Upsert(ctx, h.HospitalID, map[model.BloodType]int{model.BloodTypeABNeg: 5}))

	derived, err := svc.Create(ctx, h.UserID, model.CreatePatientRequest{
		FirstName: "Sam", LastName: "Lee", BloodType: "AB-", UnitsNeeded: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, derived.UrgencyLevel)
	assert.Equal(t, model.PatientStatusPending, derived.Status)
	assert.Equal(t, h.HospitalID, derived.HospitalID)

	explicit, err := svc.Create(ctx, h.UserID, model.CreatePatientRequest{
		FirstName: "Kim", LastName: "Ray", BloodType: "AB-", UnitsNeeded: 2, UrgencyLevel: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, explicit.UrgencyLevel)

	_, err = svc.Create(ctx, h.UserID, model.CreatePatientRequest{
		FirstName: "Bad", LastName: "Type", BloodType: "C+", UnitsNeeded: 1,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidBloodType)
}

func TestUpdateAndOwnership(t *testing.T) {
	svc, repos := newService(t)
	ctx := context.Background()
	owner := testutil.Hospital(t, repos, "Grady", nil)
	other := testutil.Hospital(t, repos, "Emory", nil)

	p, err := svc.Create(ctx, owner.UserID, model.CreatePatientRequest{
		FirstName: "Sam", LastName: "Lee", BloodType: "O-", UnitsNeeded: 2, UrgencyLevel: 2,
	})
	require.NoError(t, err)

	_, err = svc.Get(ctx, other.UserID, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrDenied)
	assert.ErrorIs(t, svc.Delete(ctx, other.UserID, p.ID), apperrors.ErrNotFoundOrDenied)

	status := model.PatientStatusFulfilled
	notes := "transfused"
	updated, err := svc.Update(ctx, owner.UserID, p.ID, model.UpdatePatientRequest{Status: &status, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusFulfilled, updated.Status)
	assert.Equal(t, "transfused", updated.Notes)
	assert.Equal(t, "Sam", updated.FirstName)

	bad := 9
	_, err = svc.Update(ctx, owner.UserID, p.ID, model.UpdatePatientRequest{UrgencyLevel: &bad})
	assert.ErrorIs(t, err, apperrors.ErrInvalidUrgencyLevel)

	require.NoError(t, svc.Delete(ctx, owner.UserID, p.ID))
	_, err = svc.Get(ctx, owner.UserID, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrDenied)
}

func TestListAndStats(t *testing.T) {
	svc, repos := newService(t)
	ctx := context.Background()
	h := testutil.Hospital(t, repos, "Grady", nil)

	for i, level := range []int{1, 4, 2} {
		_, err := svc.Create(ctx, h.UserID, model.CreatePatientRequest{
			FirstName: "P", LastName: string(rune('A' + i)), BloodType: "B+", UnitsNeeded: 3, UrgencyLevel: level,
		})
		require.NoError(t, err)
	}
	cancelled, err := svc.Create(ctx, h.UserID, model.CreatePatientRequest{
		FirstName: "P", LastName: "D", BloodType: "B+", UnitsNeeded: 7, UrgencyLevel: 5,
	})
	require.NoError(t, err)
	status := model.PatientStatusCancelled
	_, err = svc.Update(ctx, h.UserID, cancelled.ID, model.UpdatePatientRequest{Status: &status})
	require.NoError(t, err)

	page, err := svc.List(ctx, h.UserID, "pending", httputil.NewParams(1, 2))
	require.NoError(t, err)
	items := page.Items.([]*model.Patient)
	require.Len(t, items, 2)
	assert.Equal(t, 4, items[0].UrgencyLevel)
	assert.Equal(t, 2, items[1].UrgencyLevel)
	assert.Equal(t, int64(3), page.Meta.Total)
	assert.Equal(t, 2, page.Meta.TotalPages)
	assert.True(t, page.Meta.HasNext)

	page, err = svc.List(ctx, h.UserID, "", httputil.NewParams(1, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Meta.Total)

	stats, err := svc.Stats(ctx, h.UserID)
	require.NoError(t, err)
	assert.Equal(t, &model.PatientStats{Total: 4, Pending: 3, Cancelled: 1, PendingUnitsNeeded: 9}, stats)
}
