// Package dispatch owns every write that moves an alert through its lifecycle,
// for all three roles, and the per-driver mission state.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"vital-route-api-server/internal/events"
	"vital-route-api-server/internal/feed"
	"vital-route-api-server/internal/lifecycle"
	"vital-route-api-server/internal/maps"
	"vital-route-api-server/internal/metrics"
	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/store"
)

const publishTimeout = 5 * time.Second

// Places is the subset of the maps client the dispatch flow uses.
type Places interface {
	NearbyHospitals(ctx context.Context, at models.GeoPoint) ([]models.Facility, error)
	Directions(ctx context.Context, origin, dest models.GeoPoint) (maps.Route, error)
}

// Notifier pushes out-of-band notices to connected users of a role.
type Notifier interface {
	NotifyRole(role models.Role, event string, payload interface{})
}

type Deps struct {
	Store    store.Store
	Bus      events.Bus
	Feed     *feed.Feed
	Places   Places
	Notifier Notifier
}

type Service struct {
	store    store.Store
	bus      events.Bus
	feed     *feed.Feed
	places   Places
	notifier Notifier
	missions *missionBoard
}

func NewService(d Deps) *Service {
	return &Service{
		store:    d.Store,
		bus:      d.Bus,
		feed:     d.Feed,
		places:   d.Places,
		notifier: d.Notifier,
		missions: newMissionBoard(),
	}
}

// AlertInput is the body of a new alert from the public form or the admin console.
type AlertInput struct {
	Type        string           `json:"type"`
	Location    *models.GeoPoint `json:"location"`
	Notes       string           `json:"notes"`
	CallerName  string           `json:"callerName"`
	CallerPhone string           `json:"callerPhone"`
	Priority    string           `json:"priority,omitempty"`
}

func (in AlertInput) build() (models.Alert, error) {
	typ, err := models.ParseAlertType(in.Type)
	if err != nil {
		return models.Alert{}, fmt.Errorf("%w: %v", ErrInvalidAlert, err)
	}
	if in.Location == nil {
		return models.Alert{}, fmt.Errorf("%w: location is required", ErrInvalidAlert)
	}
	if err := in.Location.Validate(); err != nil {
		return models.Alert{}, fmt.Errorf("%w: %v", ErrInvalidAlert, err)
	}
	name := strings.TrimSpace(in.CallerName)
	phone := strings.TrimSpace(in.CallerPhone)
	if name == "" || phone == "" {
		return models.Alert{}, fmt.Errorf("%w: caller name and phone are required", ErrInvalidAlert)
	}
	return models.Alert{
		Type:        typ,
		Location:    *in.Location,
		Notes:       strings.TrimSpace(in.Notes),
		CallerName:  name,
		CallerPhone: phone,
		Status:      lifecycle.InitialStatus(),
	}, nil
}

// SubmitPublicAlert creates a pending alert from the public form.
func (s *Service) SubmitPublicAlert(ctx context.Context, in AlertInput) (models.Alert, error) {
	alert, err := in.build()
	if err != nil {
		return models.Alert{}, err
	}
	return s.create(ctx, &alert)
}

// CreateAdminAlert creates a pending alert with a priority on behalf of an admin.
func (s *Service) CreateAdminAlert(ctx context.Context, adminID string, in AlertInput) (models.Alert, error) {
	alert, err := in.build()
	if err != nil {
		return models.Alert{}, err
	}
	if in.Priority != "" {
		p, err := models.ParsePriority(in.Priority)
		if err != nil {
			return models.Alert{}, fmt.Errorf("%w: %v", ErrInvalidAlert, err)
		}
		alert.Priority = p
	}
	alert.UserID = adminID
	return s.create(ctx, &alert)
}

func (s *Service) create(ctx context.Context, alert *models.Alert) (models.Alert, error) {
	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return models.Alert{}, fmt.Errorf("create alert: %w", err)
	}
	metrics.AlertTransitions.WithLabelValues("none", string(alert.Status)).Inc()
	log.WithFields(log.Fields{"alertId": alert.ID, "type": alert.Type}).Info("alert created")
	s.publish(ctx, events.AlertCreated, *alert)
	return *alert, nil
}

// DeleteAlert removes an alert in any status. Admin only.
func (s *Service) DeleteAlert(ctx context.Context, id string) error {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAlert(ctx, id); err != nil {
		return err
	}
	s.missions.dropAlert(id)
	metrics.AlertTransitions.WithLabelValues(string(alert.Status), string(models.StatusDeleted)).Inc()
	alert.Status = models.StatusDeleted
	s.publish(ctx, events.AlertDeleted, alert)
	return nil
}

// AssignVehicle accepts a pending alert with a vehicle, then marks the vehicle enroute.
// The vehicle must match the alert type and be available. The two writes are
// independent. When the second fails the alert stays accepted and the returned
// error wraps ErrPartialAssignment.
func (s *Service) AssignVehicle(ctx context.Context, alertID, vehicleID string) (models.Alert, error) {
	if strings.TrimSpace(vehicleID) == "" {
		return models.Alert{}, fmt.Errorf("%w: vehicleId is required", ErrInvalidVehicle)
	}
	vehicle, err := s.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return models.Alert{}, fmt.Errorf("vehicle %s: %w", vehicleID, err)
	}
	alert, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return models.Alert{}, err
	}
	if vehicle.Type != alert.Type {
		return models.Alert{}, fmt.Errorf("%w: vehicle %s is %s, alert needs %s", ErrInvalidVehicle, vehicleID, vehicle.Type, alert.Type)
	}
	if vehicle.Status != models.VehicleAvailable {
		return models.Alert{}, fmt.Errorf("vehicle %s is %s: %w", vehicleID, vehicle.Status, store.ErrConflict)
	}

	accepted := models.StatusAccepted
	updated, err := s.transition(ctx, lifecycle.ActorAdmin, alert, accepted, store.AlertPatch{
		Status:          &accepted,
		AssignedVehicle: &vehicleID,
	}, "assign")
	if err != nil {
		return models.Alert{}, err
	}

	if _, err := s.store.UpdateVehicleStatus(ctx, vehicleID, models.VehicleAvailable, models.VehicleEnroute); err != nil {
		if errors.Is(err, store.ErrConflict) {
			metrics.AlertConflicts.WithLabelValues("assign_vehicle").Inc()
		}
		log.WithError(err).WithFields(log.Fields{
			"alertId":   alertID,
			"vehicleId": vehicleID,
		}).Error("alert accepted but vehicle status update failed")
		return updated, fmt.Errorf("%w: %v", ErrPartialAssignment, err)
	}
	s.publishVehicle(ctx, vehicleID)
	return updated, nil
}

// transition validates and commits from -> to with a compare-and-swap on alert.Version.
func (s *Service) transition(ctx context.Context, actor lifecycle.Actor, alert models.Alert, to models.AlertStatus, patch store.AlertPatch, op string) (models.Alert, error) {
	if err := lifecycle.Validate(alert.Type, alert.Status, to); err != nil {
		return models.Alert{}, err
	}
	if err := lifecycle.Authorize(actor, alert.Status, to); err != nil {
		return models.Alert{}, err
	}
	if lifecycle.RequiresDestination(to) {
		if patch.Destination == nil {
			return models.Alert{}, fmt.Errorf("%w: destination required", lifecycle.ErrIllegalTransition)
		}
		if err := patch.Destination.Point().Validate(); err != nil {
			return models.Alert{}, fmt.Errorf("%w: destination: %v", ErrInvalidAlert, err)
		}
	}

	updated, err := s.store.UpdateAlert(ctx, alert.ID, alert.Version, patch)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			metrics.AlertConflicts.WithLabelValues(op).Inc()
		}
		return models.Alert{}, err
	}
	metrics.AlertTransitions.WithLabelValues(string(alert.Status), string(to)).Inc()
	log.WithFields(log.Fields{
		"alertId": alert.ID,
		"from":    alert.Status,
		"to":      to,
		"actor":   actor,
	}).Info("alert status changed")
	s.publish(ctx, events.AlertUpdated, updated)
	return updated, nil
}

// Stats are the admin dashboard counters.
type Stats struct {
	Total    int                        `json:"total"`
	Active   int                        `json:"active"`
	Resolved int                        `json:"resolved"`
	ByStatus map[models.AlertStatus]int `json:"byStatus"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	alerts, err := s.store.ListAlerts(ctx, store.AlertFilter{})
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Total: len(alerts), ByStatus: make(map[models.AlertStatus]int)}
	for _, a := range alerts {
		st.ByStatus[a.Status]++
		switch {
		case a.Status.IsActive():
			st.Active++
		case a.Status.IsResolved():
			st.Resolved++
		}
	}
	return st, nil
}

// ListAdminAlerts returns every alert newest first with the creator's display name.
func (s *Service) ListAdminAlerts(ctx context.Context) ([]feed.AlertView, error) {
	snap, err := s.feed.Snapshot(ctx, adminFeedOptions())
	if err != nil {
		return nil, err
	}
	return snap.Alerts, nil
}

type VehicleInput struct {
	Type        string `json:"type"`
	PlateNumber string `json:"plateNumber"`
	DriverID    string `json:"driverId,omitempty"`
	Status      string `json:"status,omitempty"`
}

func (s *Service) CreateVehicle(ctx context.Context, in VehicleInput) (models.Vehicle, error) {
	typ, err := models.ParseAlertType(in.Type)
	if err != nil {
		return models.Vehicle{}, fmt.Errorf("%w: %v", ErrInvalidVehicle, err)
	}
	plate := strings.ToUpper(strings.TrimSpace(in.PlateNumber))
	if plate == "" {
		return models.Vehicle{}, fmt.Errorf("%w: plateNumber is required", ErrInvalidVehicle)
	}
	status := models.VehicleAvailable
	if in.Status != "" {
		if status, err = models.ParseVehicleStatus(in.Status); err != nil {
			return models.Vehicle{}, fmt.Errorf("%w: %v", ErrInvalidVehicle, err)
		}
	}

	v := models.Vehicle{
		VehicleID:   NewVehicleID(),
		Type:        typ,
		PlateNumber: plate,
		Status:      status,
		DriverID:    in.DriverID,
	}
	if err := s.store.CreateVehicle(ctx, &v); err != nil {
		return models.Vehicle{}, err
	}
	s.publishVehicle(ctx, v.VehicleID)
	return v, nil
}

// NewVehicleID returns a human readable id such as VEH-1A2B3C4D.
func NewVehicleID() string {
	return "VEH-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *Service) ListVehicles(ctx context.Context, filter store.VehicleFilter) ([]models.Vehicle, error) {
	return s.store.ListVehicles(ctx, filter)
}

// SetVehicleStatus is the admin availability toggle; it is unconditional.
func (s *Service) SetVehicleStatus(ctx context.Context, vehicleID string, status models.VehicleStatus) (models.Vehicle, error) {
	v, err := s.store.UpdateVehicleStatus(ctx, vehicleID, "", status)
	if err != nil {
		return models.Vehicle{}, err
	}
	s.publishVehicle(ctx, vehicleID)
	return v, nil
}

// PanicNotice is pushed to every connected admin.
type PanicNotice struct {
	DriverID   string           `json:"driverId"`
	DriverName string           `json:"driverName"`
	Role       models.Role      `json:"role"`
	AlertID    string           `json:"alertId,omitempty"`
	Location   *models.GeoPoint `json:"location,omitempty"`
	Message    string           `json:"message"`
	At         time.Time        `json:"at"`
}

// changeContext detaches publishing from the request. The write has already
// committed, so a caller that went away must not suppress the change.
func changeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
}

func (s *Service) publish(ctx context.Context, kind events.Kind, a models.Alert) {
	ctx, cancel := changeContext(ctx)
	defer cancel()
	err := s.bus.Publish(ctx, events.Change{
		Kind:    kind,
		AlertID: a.ID,
		Type:    a.Type,
		Status:  a.Status,
		Version: a.Version,
	})
	if err != nil {
		log.WithError(err).WithField("alertId", a.ID).Warn("publish alert change failed")
	}
}

func (s *Service) publishVehicle(ctx context.Context, vehicleID string) {
	ctx, cancel := changeContext(ctx)
	defer cancel()
	if err := s.bus.Publish(ctx, events.Change{Kind: events.VehicleUpdated, VehicleID: vehicleID}); err != nil {
		log.WithError(err).WithField("vehicleId", vehicleID).Warn("publish vehicle change failed")
	}
}

func adminFeedOptions() feed.SubscribeOptions {
	return feed.SubscribeOptions{
		Role:            string(models.RoleAdmin),
		Filter:          store.AlertFilter{NewestFirst: true},
		Enrich:          true,
		IncludeVehicles: true,
	}
}
