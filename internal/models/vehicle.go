// server/internal/models/vehicle.go
package models

import (
	"fmt"
	"time"
)

type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleEnroute     VehicleStatus = "enroute"
	VehicleOnScene     VehicleStatus = "on_scene"
	VehicleUnavailable VehicleStatus = "unavailable"
)

func ParseVehicleStatus(s string) (VehicleStatus, error) {
	switch VehicleStatus(s) {
	case VehicleAvailable, VehicleEnroute, VehicleOnScene, VehicleUnavailable:
		return VehicleStatus(s), nil
	}
	return "", fmt.Errorf("unknown vehicle status %q", s)
}

type Vehicle struct {
	ID          string        `bson:"_id,omitempty" json:"id"`
	VehicleID   string        `bson:"vehicleId" json:"vehicleId"` // human readable, e.g. VEH-1A2B3C4D
	Type        AlertType     `bson:"type" json:"type"`
	PlateNumber string        `bson:"plateNumber" json:"plateNumber"`
	Status      VehicleStatus `bson:"status" json:"status"`
	Location    *GeoPoint     `bson:"location,omitempty" json:"location,omitempty"`
	DriverID    string        `bson:"driverId,omitempty" json:"driverId,omitempty"` // driver who usually operates it
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt" json:"updatedAt"`
}
