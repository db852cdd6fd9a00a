// Package location fills in profile coordinates from the structured address.
package location

import (
	"context"

	"github.com/lifeline/donation-api/internal/model"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
	"github.com/lifeline/donation-api/pkg/geo"
	"github.com/lifeline/donation-api/pkg/geocode"
	"github.com/lifeline/donation-api/pkg/logger"
)

const WarningGeocodeFailed = "address could not be geocoded; location left empty"

type Resolver struct {
	geocoder geocode.Geocoder
	logger   *logger.Logger
}

// NewResolver accepts a nil geocoder, in which case missing coordinates
// simply stay empty.
func NewResolver(geocoder geocode.Geocoder, log *logger.Logger) *Resolver {
	return &Resolver{geocoder: geocoder, logger: log}
}

// Resolve returns the coordinates to store. Supplied coordinates win and are
// validated; otherwise the address is geocoded. A geocoding failure is a
// warning, not an error.
func (r *Resolver) Resolve(ctx context.Context, addr model.Address, lat, lng *float64) (*float64, *float64, []string, error) {
	if lat != nil || lng != nil {
		if lat == nil || lng == nil {
			return nil, nil, nil, apperrors.NewValidation("latitude and longitude must be provided together", nil)
		}
		p := geo.Point{Latitude: *lat, Longitude: *lng}
		if err := p.Validate(); err != nil {
			return nil, nil, nil, apperrors.NewValidation(err.Error(), err)
		}
		return lat, lng, nil, nil
	}

	if !addr.Geocodable() {
		return nil, nil, nil, nil
	}
	if r.geocoder == nil {
		return nil, nil, []string{WarningGeocodeFailed}, nil
	}

	p, err := r.geocoder.Geocode(ctx, addr.Display())
	if err != nil {
		r.logger.Warn("Geocoding failed", "address", addr.Display(), "error", err.Error())
		return nil, nil, []string{WarningGeocodeFailed}, nil
	}
	return &p.Latitude, &p.Longitude, nil, nil
}
