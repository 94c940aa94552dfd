// Package lifecycle holds the alert state machine: which status may follow which,
// for which alert type, and who may drive each step.
package lifecycle

import (
	"errors"
	"fmt"

	"vital-route-api-server/internal/models"
)

var ErrIllegalTransition = errors.New("illegal status transition")

// Actor is the role issuing a write.
type Actor string

const (
	ActorPublic Actor = "public"
	ActorDriver Actor = "driver"
	ActorAdmin  Actor = "admin"
)

// Next returns the statuses reachable in one step from "from" for an alert of type t.
// Admin deletion is not included; see CanDelete.
func Next(t models.AlertType, from models.AlertStatus) []models.AlertStatus {
	switch from {
	case models.StatusPending:
		return []models.AlertStatus{models.StatusAccepted, models.StatusRejected}
	case models.StatusAccepted:
		return []models.AlertStatus{models.StatusOnScene}
	case models.StatusOnScene:
		if t == models.AlertTypeAmbulance {
			return []models.AlertStatus{models.StatusEnrouteToHospital}
		}
		return []models.AlertStatus{models.StatusCompleted}
	case models.StatusEnrouteToHospital:
		return []models.AlertStatus{models.StatusCompleted}
	case models.StatusCompleted, models.StatusRejected, models.StatusDeleted:
		return nil
	}
	return nil
}

// CanTransition reports whether from -> to is a single legal step.
func CanTransition(t models.AlertType, from, to models.AlertStatus) bool {
	for _, next := range Next(t, from) {
		if next == to {
			return true
		}
	}
	return false
}

// Validate returns ErrIllegalTransition (wrapped with context) when from -> to is not allowed.
func Validate(t models.AlertType, from, to models.AlertStatus) error {
	if _, err := models.ParseAlertStatus(string(to)); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalTransition, err)
	}
	if !CanTransition(t, from, to) {
		return fmt.Errorf("%w: %s alert cannot go from %s to %s", ErrIllegalTransition, t, from, to)
	}
	return nil
}

// Authorize checks that actor is allowed to perform from -> to.
func Authorize(actor Actor, from, to models.AlertStatus) error {
	allowed := false
	switch actor {
	case ActorDriver:
		allowed = to != models.StatusPending && to != models.StatusDeleted
	case ActorAdmin:
		// admins assign (pending -> accepted) and delete; mission progress is the driver's
		allowed = (from == models.StatusPending && to == models.StatusAccepted) || to == models.StatusDeleted
	case ActorPublic:
		allowed = false
	}
	if !allowed {
		return fmt.Errorf("%w: %s may not move an alert from %s to %s", ErrIllegalTransition, actor, from, to)
	}
	return nil
}

// CanDelete reports whether the actor may remove an alert. Any status is deletable by an admin.
func CanDelete(actor Actor) bool {
	return actor == ActorAdmin
}

// InitialStatus is the status every new alert starts in.
func InitialStatus() models.AlertStatus {
	return models.StatusPending
}

// RequiresDestination reports whether entering "to" must carry a destination.
func RequiresDestination(to models.AlertStatus) bool {
	return to == models.StatusEnrouteToHospital
}
