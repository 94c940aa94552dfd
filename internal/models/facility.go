// server/internal/models/facility.go
package models

// Facility is a nearby place returned by a places search. It is never persisted;
// only the one a driver selects becomes an alert Destination.
type Facility struct {
	PlaceID    string   `json:"placeId"`
	Name       string   `json:"name"`
	Address    string   `json:"address,omitempty"`
	Location   GeoPoint `json:"location"`
	Rating     float64  `json:"rating,omitempty"`
	DistanceKm float64  `json:"distanceKm"`
}

// Destination converts the facility into the value stored on an alert.
func (f Facility) Destination() Destination {
	return Destination{Lat: f.Location.Lat, Lng: f.Location.Lng, Name: f.Name}
}
