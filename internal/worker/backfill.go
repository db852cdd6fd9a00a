package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/pkg/geo"
	"github.com/lifeline/donation-api/pkg/geocode"
	"github.com/lifeline/donation-api/pkg/logger"
)

// GeocodeBackfill fills coordinates for profiles saved while the geocoder
// was unavailable.
type GeocodeBackfill struct {
	donors    repository.DonorRepository
	hospitals repository.HospitalRepository
	geocoder  geocode.Geocoder
	batchSize int
	logger    *logger.Logger
}

func NewGeocodeBackfill(repos *repository.Store, geocoder geocode.Geocoder, batchSize int, log *logger.Logger) *GeocodeBackfill {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &GeocodeBackfill{
		donors:    repos.Donors,
		hospitals: repos.Hospitals,
		geocoder:  geocoder,
		batchSize: batchSize,
		logger:    log.With("component", "geocode_backfill"),
	}
}

// Run processes one batch of each profile kind and returns how many were
// resolved.
func (b *GeocodeBackfill) Run(ctx context.Context) (int, error) {
	resolved := 0

	donors, err := b.donors.ListMissingCoordinates(ctx, b.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list donors without coordinates: %w", err)
	}
	for _, d := range donors {
		ok, err := b.resolve(ctx, d.Address.Display(), func(ctx context.Context, p geo.Point) error {
			return b.donors.SetCoordinates(ctx, d.ID, p)
		})
		if err != nil {
			return resolved, err
		}
		if ok {
			resolved++
		}
	}

	hospitals, err := b.hospitals.ListMissingCoordinates(ctx, b.batchSize)
	if err != nil {
		return resolved, fmt.Errorf("failed to list hospitals without coordinates: %w", err)
	}
	for _, h := range hospitals {
		ok, err := b.resolve(ctx, h.DisplayAddress(), func(ctx context.Context, p geo.Point) error {
			return b.hospitals.SetCoordinates(ctx, h.ID, p)
		})
		if err != nil {
			return resolved, err
		}
		if ok {
			resolved++
		}
	}

	b.logger.Info("Geocode backfill finished", "donors", len(donors), "hospitals", len(hospitals), "resolved", resolved)
	return resolved, nil
}

// resolve geocodes one address. Lookup failures are skipped; only store
// failures and cancellation abort the run.
func (b *GeocodeBackfill) resolve(ctx context.Context, address string, save func(context.Context, geo.Point) error) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := b.geocoder.Geocode(ctx, address)
	if err != nil {
		if !errors.Is(err, geocode.ErrNoMatch) {
			b.logger.Warn("Geocoding failed", "address", address, "error", err.Error())
		}
		return false, nil
	}
	if err := save(ctx, p); err != nil {
		return false, fmt.Errorf("failed to save coordinates: %w", err)
	}
	return true, nil
}
