// Package store defines the persistence contract for alerts, vehicles and user profiles.
// Alert updates are compare-and-swap on the alert's version.
package store

import (
	"context"
	"errors"
	"sort"

	"vital-route-api-server/internal/models"
)

var (
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict means the record changed since the caller read it.
	ErrConflict  = errors.New("store: version conflict")
	ErrDuplicate = errors.New("store: duplicate record")
)

// AlertFilter holds equality predicates; zero-valued fields match anything.
type AlertFilter struct {
	Type        models.AlertType
	Status      models.AlertStatus
	DriverID    string
	NewestFirst bool
}

// Match reports whether a satisfies every set predicate.
func (f AlertFilter) Match(a models.Alert) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.DriverID != "" && a.DriverID != f.DriverID {
		return false
	}
	return true
}

// SortAlerts orders alerts by creation time, newest first when requested.
func SortAlerts(alerts []models.Alert, newestFirst bool) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if newestFirst {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].CreatedAt.Before(alerts[j].CreatedAt)
	})
}

// AlertPatch is a partial field merge. Nil fields are left untouched.
type AlertPatch struct {
	Status          *models.AlertStatus
	DriverID        *string
	AssignedVehicle *string
	Destination     *models.Destination
}

// Apply merges the patch into a copy of a.
func (p AlertPatch) Apply(a models.Alert) models.Alert {
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.DriverID != nil {
		a.DriverID = *p.DriverID
	}
	if p.AssignedVehicle != nil {
		a.AssignedVehicle = *p.AssignedVehicle
	}
	if p.Destination != nil {
		d := *p.Destination
		a.Destination = &d
	}
	return a
}

type AlertStore interface {
	// CreateAlert assigns ID, CreatedAt, UpdatedAt and Version=1 on the passed alert.
	CreateAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id string) (models.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]models.Alert, error)
	// UpdateAlert applies patch only if the stored version equals expectedVersion.
	UpdateAlert(ctx context.Context, id string, expectedVersion int64, patch AlertPatch) (models.Alert, error)
	DeleteAlert(ctx context.Context, id string) error
}

type VehicleFilter struct {
	Type   models.AlertType
	Status models.VehicleStatus
}

func (f VehicleFilter) Match(v models.Vehicle) bool {
	if f.Type != "" && v.Type != f.Type {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	return true
}

type VehicleStore interface {
	CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error
	GetVehicle(ctx context.Context, vehicleID string) (models.Vehicle, error)
	ListVehicles(ctx context.Context, filter VehicleFilter) ([]models.Vehicle, error)
	// UpdateVehicleStatus sets the status. A non-empty expected status makes the write
	// conditional and returns ErrConflict when the vehicle is in some other status.
	UpdateVehicleStatus(ctx context.Context, vehicleID string, expected, to models.VehicleStatus) (models.Vehicle, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// Store is the full set of collections the service needs.
type Store interface {
	AlertStore
	VehicleStore
	UserStore
	Close(ctx context.Context) error
}
