// Package geo computes great-circle distances for the radius filter.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMiles is the mean Earth radius used by every distance in the service.
const EarthRadiusMiles = 3958.8

// Point is a coordinate pair in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// Validate rejects NaN, infinite and out-of-range coordinates.
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Latitude)
	}
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Longitude)
	}
	return nil
}

// DistanceMiles returns the haversine distance between a and b.
// Callers must validate both points first.
func DistanceMiles(a, b Point) float64 {
	if a == b {
		return 0
	}
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMiles * c
}

// WithinRadius is boundary inclusive.
func WithinRadius(a, b Point, radiusMiles float64) bool {
	return DistanceMiles(a, b) <= radiusMiles
}

// Round rounds a distance to one decimal place for display.
func Round(miles float64) float64 {
	return math.Round(miles*10) / 10
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
