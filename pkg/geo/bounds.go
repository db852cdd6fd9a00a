package geo

import "math"

const (
	milesPerDegreeLat = EarthRadiusMiles * math.Pi / 180
	boundsPad         = 1e-6
)

// Bounds is a lat/lng rectangle enclosing a search circle. It is only a
// prefilter; exact membership is decided by WithinRadius.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundsAround returns a rectangle that contains every point within
// radiusMiles of center. Near the poles or the antimeridian it widens to the
// full longitude range.
func BoundsAround(center Point, radiusMiles float64) Bounds {
	angular := radiusMiles / EarthRadiusMiles
	dLat := toDegrees(angular) + boundsPad
	b := Bounds{
		MinLat: math.Max(-90, center.Latitude-dLat),
		MaxLat: math.Min(90, center.Latitude+dLat),
		MinLng: -180,
		MaxLng: 180,
	}
	if b.MinLat == -90 || b.MaxLat == 90 {
		return b
	}

	ratio := math.Sin(angular) / math.Cos(toRadians(center.Latitude))
	if ratio >= 1 {
		return b
	}
	dLng := toDegrees(math.Asin(ratio)) + boundsPad
	if center.Longitude-dLng < -180 || center.Longitude+dLng > 180 {
		return b
	}
	b.MinLng = center.Longitude - dLng
	b.MaxLng = center.Longitude + dLng
	return b
}

func (b Bounds) Contains(p Point) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLng && p.Longitude <= b.MaxLng
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
