package hospital

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/internal/repository/memory"
	"github.com/lifeline/donation-api/internal/service/location"
	"github.com/lifeline/donation-api/internal/testutil"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
	"github.com/lifeline/donation-api/pkg/logger"
)

func newService(t *testing.T) (*Service, *repository.Store) {
	t.Helper()
	repos := memory.New().Repositories()
	return NewService(repos.Hospitals, repos.Inventory, location.NewResolver(nil, logger.Nop())), repos
}

func TestUpdateProfileWithoutGeocoderWarns(t *testing.T) {
	svc, repos := newService(t)
	h := testutil.Hospital(t, repos, "Grady", nil)

	res, err := svc.UpdateProfile(context.Background(), h.UserID, model.HospitalProfileRequest{
		Name:    "Grady Memorial",
		Address: model.Address{Street: "80 Jesse Hill Jr Dr SE", City: "Atlanta", State: "GA"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{location.WarningGeocodeFailed}, res.Warnings)
	assert.Nil(t, res.Profile.Latitude)
	assert.Equal(t, 1, res.Profile.BloodUrgencyLevel)
}

func TestUpdateUrgencyLevel(t *testing.T) {
	svc, repos := newService(t)
	h := testutil.Hospital(t, repos, "Grady", testutil.Point(testutil.Atlanta))
	ctx := context.Background()

	assert.ErrorIs(t, svc.UpdateUrgencyLevel(ctx, h.UserID, 0), apperrors.ErrInvalidUrgencyLevel)
	assert.ErrorIs(t, svc.UpdateUrgencyLevel(ctx, h.UserID, 6), apperrors.ErrInvalidUrgencyLevel)
	require.NoError(t, svc.UpdateUrgencyLevel(ctx, h.UserID, 4))

	profile, err := svc.GetProfile(ctx, h.UserID)
	require.NoError(t, err)
	assert.Equal(t, 4, profile.BloodUrgencyLevel)
}

func TestInventory(t *testing.T) {
	svc, repos := newService(t)
	h := testutil.Hospital(t, repos, "Grady", nil)
	ctx := context.Background()

	inv, err := svc.GetInventory(ctx, h.UserID)
	require.NoError(t, err)
	assert.Len(t, inv, 8)
	assert.Zero(t, inv[model.BloodTypeOPos])

	inv, err = svc.UpdateInventory(ctx, h.UserID, map[string]int{"O+": 12, "AB_negative": 3})
	require.NoError(t, err)
	assert.Equal(t, 12, inv[model.BloodTypeOPos])
	assert.Equal(t, 3, inv[model.BloodTypeABNeg])

	inv, err = svc.UpdateInventory(ctx, h.UserID, map[string]int{"O+": 7})
	require.NoError(t, err)
	assert.Equal(t, 7, inv[model.BloodTypeOPos])
	assert.Equal(t, 3, inv[model.BloodTypeABNeg])

	_, err = svc.UpdateInventory(ctx, h.UserID, map[string]int{"Z+": 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidBloodType)

	_, err = svc.UpdateInventory(ctx, h.UserID, map[string]int{"A+": -1})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrValidation, appErr.Code)
}

func TestMapListsLocatedHospitals(t *testing.T) {
	svc, repos := newService(t)
	testutil.Hospital(t, repos, "Grady", testutil.Point(testutil.Atlanta))
	testutil.Hospital(t, repos, "Nowhere", nil)

	entries, err := svc.Map(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Grady", entries[0].Name)
	assert.Equal(t, "80 Jesse Hill Jr Dr SE, Atlanta, GA 30303", entries[0].Address)
}
