// Package testutil seeds the in-memory store for service and handler tests.
package testutil

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/pkg/geo"
)

// Atlanta is the hospital location used across scenarios.
var Atlanta = geo.Point{Latitude: 33.749, Longitude: -84.388}

// North returns the point the given distance due north of p.
func North(p geo.Point, miles float64) geo.Point {
	return geo.Point{
		Latitude:  p.Latitude + miles/geo.EarthRadiusMiles*180/math.Pi,
		Longitude: p.Longitude,
	}
}

type DonorSeed struct {
	Email       string
	FirstName   string
	BloodType   model.BloodType
	Location    *geo.Point
	Eligibility model.EligibilityStatus
}

type Seeded struct {
	UserID  uuid.UUID
	Email   string
	Actor   model.Actor
	DonorID uuid.UUID
	// HospitalID is set for hospitals.
	HospitalID uuid.UUID
}

func Donor(t *testing.T, repos *repository.Store, seed DonorSeed) Seeded {
	t.Helper()
	ctx := context.Background()

	if seed.Email == "" {
		seed.Email = uuid.NewString() + "@donor.test"
	}
	user := &model.User{Email: seed.Email, PasswordHash: "x", Role: model.RoleDonor}
	require.NoError(t, repos.Users.CreateWithProfile(ctx, user))

	d := &model.Donor{
		UserID:    user.ID,
		FirstName: seed.FirstName,
		LastName:  "Donor",
		BloodType: seed.BloodType,
	}
	if seed.Location != nil {
		lat, lng := seed.Location.Latitude, seed.Location.Longitude
		d.Latitude, d.Longitude = &lat, &lng
	}
	require.NoError(t, repos.Donors.UpsertProfile(ctx, d))

	if seed.Eligibility != "" && seed.Eligibility != model.EligibilityPending {
		_, err := repos.Donors.UpdateEligibility(ctx, user.ID, seed.Eligibility, nil)
		require.NoError(t, err)
	}

	return Seeded{
		UserID:  user.ID,
		Email:   user.Email,
		Actor:   model.Actor{UserID: user.ID, Role: model.RoleDonor},
		DonorID: d.ID,
	}
}

func Hospital(t *testing.T, repos *repository.Store, name string, location *geo.Point) Seeded {
	t.Helper()
	ctx := context.Background()

	user := &model.User{Email: uuid.NewString() + "@hospital.test", PasswordHash: "x", Role: model.RoleHospital}
	require.NoError(t, repos.Users.CreateWithProfile(ctx, user))

	h := &model.Hospital{
		UserID: user.ID,
		Name:   name,
		Address: model.Address{
			Street: "80 Jesse Hill Jr Dr SE", City: "Atlanta", State: "GA", ZipCode: "30303",
		},
		Phone: "404-555-0100",
	}
	if location != nil {
		lat, lng := location.Latitude, location.Longitude
		h.Latitude, h.Longitude = &lat, &lng
	}
	require.NoError(t, repos.Hospitals.UpsertProfile(ctx, h))

	return Seeded{
		UserID:     user.ID,
		Email:      user.Email,
		Actor:      model.Actor{UserID: user.ID, Role: model.RoleHospital},
		HospitalID: h.ID,
	}
}

func Point(p geo.Point) *geo.Point { return &p }
