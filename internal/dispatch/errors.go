package dispatch

import "errors"

var (
	ErrInvalidAlert      = errors.New("invalid alert")
	ErrNotDriver         = errors.New("only drivers can perform this action")
	ErrWrongAlertType    = errors.New("alert type does not match driver role")
	ErrNotMissionOwner   = errors.New("mission belongs to another driver")
	ErrNoMission         = errors.New("no active mission")
	ErrMissionInProgress = errors.New("driver already has an active mission")
	ErrUnknownFacility   = errors.New("facility not in the current lookup results")
	ErrNoPosition        = errors.New("driver position unknown")
	ErrInvalidVehicle    = errors.New("invalid vehicle")
	// ErrPartialAssignment means the alert was accepted but the vehicle write failed.
	ErrPartialAssignment = errors.New("alert assigned but vehicle status update failed")
)

// NoHospitalsNotice is shown when the hospital lookup fails or comes back empty.
const NoHospitalsNotice = "Could not find any nearby hospitals. Please proceed manually."
