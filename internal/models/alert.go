// server/internal/models/alert.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// AlertType is the kind of emergency unit an alert asks for.
type AlertType string

const (
	AlertTypeAmbulance AlertType = "ambulance"
	AlertTypeFire      AlertType = "fire"
	AlertTypePolice    AlertType = "police"
)

// ParseAlertType accepts the canonical values plus the legacy "fire_engine".
func ParseAlertType(s string) (AlertType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ambulance":
		return AlertTypeAmbulance, nil
	case "fire", "fire_engine":
		return AlertTypeFire, nil
	case "police":
		return AlertTypePolice, nil
	}
	return "", fmt.Errorf("unknown alert type %q", s)
}

// AlertStatus is the lifecycle status of an alert. Only the seven constants below are valid.
type AlertStatus string

const (
	StatusPending           AlertStatus = "pending"
	StatusAccepted          AlertStatus = "accepted"
	StatusOnScene           AlertStatus = "on_scene"
	StatusEnrouteToHospital AlertStatus = "enroute_to_hospital"
	StatusCompleted         AlertStatus = "completed"
	StatusRejected          AlertStatus = "rejected"
	StatusDeleted           AlertStatus = "deleted"
)

// AllStatuses lists every valid status in lifecycle order.
var AllStatuses = []AlertStatus{
	StatusPending,
	StatusAccepted,
	StatusOnScene,
	StatusEnrouteToHospital,
	StatusCompleted,
	StatusRejected,
	StatusDeleted,
}

// ParseAlertStatus rejects anything outside the closed set.
func ParseAlertStatus(s string) (AlertStatus, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown alert status %q", s)
}

// IsActive reports whether a mission is still in progress for this status.
func (s AlertStatus) IsActive() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusOnScene, StatusEnrouteToHospital:
		return true
	}
	return false
}

// IsResolved reports whether the alert reached a terminal outcome.
func (s AlertStatus) IsResolved() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Priority is set by admins on manually created alerts.
type Priority string

const (
	PriorityRed    Priority = "red"
	PriorityYellow Priority = "yellow"
	PriorityGreen  Priority = "green"
)

func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityRed, PriorityYellow, PriorityGreen:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Destination is where an ambulance transports the patient.
type Destination struct {
	Lat  float64 `bson:"lat" json:"lat"`
	Lng  float64 `bson:"lng" json:"lng"`
	Name string  `bson:"name,omitempty" json:"name,omitempty"`
}

// Point returns the destination coordinates.
func (d Destination) Point() GeoPoint {
	return GeoPoint{Lat: d.Lat, Lng: d.Lng}
}

type Alert struct {
	ID              string       `bson:"_id,omitempty" json:"id"`
	Type            AlertType    `bson:"type" json:"type"`
	Location        GeoPoint     `bson:"location" json:"location"`
	Destination     *Destination `bson:"destination,omitempty" json:"destination,omitempty"`
	Notes           string       `bson:"notes" json:"notes"`
	CallerName      string       `bson:"callerName" json:"callerName"`
	CallerPhone     string       `bson:"callerPhone" json:"callerPhone"`
	Status          AlertStatus  `bson:"status" json:"status"`
	DriverID        string       `bson:"driverId,omitempty" json:"driverId,omitempty"`
	AssignedVehicle string       `bson:"assignedVehicle,omitempty" json:"assignedVehicle,omitempty"`
	Priority        Priority     `bson:"priority,omitempty" json:"priority,omitempty"`
	UserID          string       `bson:"userId,omitempty" json:"userId,omitempty"`
	Version         int64        `bson:"version" json:"version"`
	CreatedAt       time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time    `bson:"updatedAt" json:"updatedAt"`
}
