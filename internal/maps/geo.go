package maps

import (
	"fmt"
	"math"
	"net/url"
	"time"

	"vital-route-api-server/internal/models"
)

const (
	earthRadiusKm = 6371.0
	// AverageSpeedKmh is the speed ETAs are estimated at.
	AverageSpeedKmh = 40.0
)

// DistanceKm is the great-circle (haversine) distance between two points.
func DistanceKm(a, b models.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// ETA estimates travel time for distanceKm, rounded up to whole minutes.
func ETA(distanceKm float64) time.Duration {
	if distanceKm <= 0 {
		return 0
	}
	minutes := math.Ceil(distanceKm / AverageSpeedKmh * 60)
	return time.Duration(minutes) * time.Minute
}

// NavigationURL builds a Google Maps directions deep link. origin may be nil.
func NavigationURL(origin *models.GeoPoint, dest models.GeoPoint) string {
	q := url.Values{}
	q.Set("api", "1")
	if origin != nil {
		q.Set("origin", latLng(*origin))
	}
	q.Set("destination", latLng(dest))
	return "https://www.google.com/maps/dir/?" + q.Encode()
}

func latLng(p models.GeoPoint) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}
