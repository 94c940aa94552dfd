// server/internal/models/geo.go
package models

import (
	"errors"
	"math"
)

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

var ErrInvalidCoordinates = errors.New("coordinates out of range")

// Validate checks that both values are finite and within WGS84 bounds.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return ErrInvalidCoordinates
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
