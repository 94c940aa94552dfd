package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"vital-route-api-server/internal/feed"
	"vital-route-api-server/internal/lifecycle"
	"vital-route-api-server/internal/maps"
	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/store"
)

// Session is one signed-in user's view of the dispatch system. The role decides
// the alert filter and which writes are allowed.
type Session struct {
	svc  *Service
	user models.User
}

func (s *Service) Session(user models.User) (*Session, error) {
	if _, err := user.Role.HomeRoute(); err != nil {
		return nil, err
	}
	return &Session{svc: s, user: user}, nil
}

func (ss *Session) User() models.User { return ss.user }

// Filter is the slice of the alert collection this role watches.
func (ss *Session) Filter() store.AlertFilter {
	if ss.user.Role.IsDriver() {
		return store.AlertFilter{Type: ss.user.Role.AlertType(), Status: models.StatusPending}
	}
	return store.AlertFilter{NewestFirst: true}
}

// Watch opens a live subscription for this role.
func (ss *Session) Watch(ctx context.Context) (*feed.Subscription, error) {
	if ss.user.Role == models.RoleAdmin {
		return ss.svc.feed.Subscribe(ctx, adminFeedOptions())
	}
	return ss.svc.feed.Subscribe(ctx, feed.SubscribeOptions{
		Role:   string(ss.user.Role),
		Filter: ss.Filter(),
	})
}

func (ss *Session) requireDriver() error {
	if !ss.user.Role.IsDriver() {
		return ErrNotDriver
	}
	return nil
}

func (ss *Session) requireOwnType(a models.Alert) error {
	if a.Type != ss.user.Role.AlertType() {
		return fmt.Errorf("%w: %s alert, %s driver", ErrWrongAlertType, a.Type, ss.user.Role)
	}
	return nil
}

// PendingAlert adds distance and ETA from the driver's last known position.
type PendingAlert struct {
	models.Alert
	DistanceKm *float64 `json:"distanceKm,omitempty"`
	ETAMinutes *int     `json:"etaMinutes,omitempty"`
}

// PendingAlerts lists the alerts this driver could accept. from overrides the
// last reported position when set.
func (ss *Session) PendingAlerts(ctx context.Context, from *models.GeoPoint) ([]PendingAlert, error) {
	if err := ss.requireDriver(); err != nil {
		return nil, err
	}
	if from == nil {
		if st, ok := ss.svc.missions.get(ss.user.ID); ok {
			from = st.position
		}
	}
	alerts, err := ss.svc.store.ListAlerts(ctx, ss.Filter())
	if err != nil {
		return nil, err
	}
	out := make([]PendingAlert, len(alerts))
	for i, a := range alerts {
		out[i] = PendingAlert{Alert: a}
		if from != nil {
			km := maps.DistanceKm(*from, a.Location)
			km = math.Round(km*10) / 10
			eta := int(maps.ETA(km) / time.Minute)
			out[i].DistanceKm = &km
			out[i].ETAMinutes = &eta
		}
	}
	return out, nil
}

func (ss *Session) Accept(ctx context.Context, alertID string) (models.Alert, error) {
	if err := ss.requireDriver(); err != nil {
		return models.Alert{}, err
	}
	alert, err := ss.svc.store.GetAlert(ctx, alertID)
	if err != nil {
		return models.Alert{}, err
	}
	if err := ss.requireOwnType(alert); err != nil {
		return models.Alert{}, err
	}
	current, _, err := ss.activeMission(ctx)
	switch {
	case err == nil && current.ID != alertID:
		return models.Alert{}, fmt.Errorf("%w: %s", ErrMissionInProgress, current.ID)
	case err != nil && !errors.Is(err, ErrNoMission):
		return models.Alert{}, err
	}

	accepted := models.StatusAccepted
	driverID := ss.user.ID
	updated, err := ss.svc.transition(ctx, lifecycle.ActorDriver, alert, accepted, store.AlertPatch{
		Status:   &accepted,
		DriverID: &driverID,
	}, "accept")
	if err != nil {
		return models.Alert{}, err
	}
	ss.svc.missions.start(ss.user.ID, updated.ID)
	return updated, nil
}

func (ss *Session) Reject(ctx context.Context, alertID string) (models.Alert, error) {
	if err := ss.requireDriver(); err != nil {
		return models.Alert{}, err
	}
	alert, err := ss.svc.store.GetAlert(ctx, alertID)
	if err != nil {
		return models.Alert{}, err
	}
	if err := ss.requireOwnType(alert); err != nil {
		return models.Alert{}, err
	}
	rejected := models.StatusRejected
	return ss.svc.transition(ctx, lifecycle.ActorDriver, alert, rejected, store.AlertPatch{Status: &rejected}, "reject")
}

// activeMission finds the driver's in-progress alert, falling back to the store
// when this process has no record of it (e.g. after a restart).
func (ss *Session) activeMission(ctx context.Context) (models.Alert, missionState, error) {
	uid := ss.user.ID
	if st, ok := ss.svc.missions.get(uid); ok && st.alertID != "" {
		alert, err := ss.svc.store.GetAlert(ctx, st.alertID)
		switch {
		case err == nil && alert.DriverID == uid && alert.Status.IsActive():
			return alert, st, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return models.Alert{}, missionState{}, err
		}
		ss.svc.missions.finish(uid)
	}

	alerts, err := ss.svc.store.ListAlerts(ctx, store.AlertFilter{DriverID: uid, NewestFirst: true})
	if err != nil {
		return models.Alert{}, missionState{}, err
	}
	for _, a := range alerts {
		if a.Status.IsActive() && a.Status != models.StatusPending {
			ss.svc.missions.start(uid, a.ID)
			st, _ := ss.svc.missions.get(uid)
			return a, st, nil
		}
	}
	return models.Alert{}, missionState{}, ErrNoMission
}

// mission loads the alert a mission action targets: alertID when given, otherwise
// the driver's active mission.
func (ss *Session) mission(ctx context.Context, alertID string) (models.Alert, missionState, error) {
	if err := ss.requireDriver(); err != nil {
		return models.Alert{}, missionState{}, err
	}
	if alertID == "" {
		return ss.activeMission(ctx)
	}
	alert, err := ss.svc.store.GetAlert(ctx, alertID)
	if err != nil {
		return models.Alert{}, missionState{}, err
	}
	if alert.DriverID != ss.user.ID {
		return models.Alert{}, missionState{}, ErrNotMissionOwner
	}
	st, ok := ss.svc.missions.get(ss.user.ID)
	if !ok || st.alertID != alertID {
		ss.svc.missions.start(ss.user.ID, alertID)
		st, _ = ss.svc.missions.get(ss.user.ID)
	}
	return alert, st, nil
}

// MissionView is everything the driver console shows for the current mission.
type MissionView struct {
	Alert         models.Alert      `json:"alert"`
	Facilities    []models.Facility `json:"facilities,omitempty"`
	Notice        string            `json:"notice,omitempty"`
	NavigationURL string            `json:"navigationUrl"`
	Position      *models.GeoPoint  `json:"position,omitempty"`
}

func (ss *Session) view(alert models.Alert) MissionView {
	st, _ := ss.svc.missions.get(ss.user.ID)
	return MissionView{
		Alert:         alert,
		Facilities:    st.facilities,
		Notice:        st.notice,
		Position:      st.position,
		NavigationURL: maps.NavigationURL(st.position, target(alert)),
	}
}

// target is where the driver should be heading right now.
func target(a models.Alert) models.GeoPoint {
	if a.Status == models.StatusEnrouteToHospital && a.Destination != nil {
		return a.Destination.Point()
	}
	return a.Location
}

func (ss *Session) CurrentMission(ctx context.Context) (MissionView, error) {
	if err := ss.requireDriver(); err != nil {
		return MissionView{}, err
	}
	alert, _, err := ss.activeMission(ctx)
	if err != nil {
		return MissionView{}, err
	}
	return ss.view(alert), nil
}

// ArriveOnScene moves the mission to on_scene. Ambulance missions then look up
// nearby hospitals; a failed lookup leaves a notice but the transition stands.
func (ss *Session) ArriveOnScene(ctx context.Context, alertID string) (MissionView, error) {
	alert, _, err := ss.mission(ctx, alertID)
	if err != nil {
		return MissionView{}, err
	}
	onScene := models.StatusOnScene
	updated, err := ss.svc.transition(ctx, lifecycle.ActorDriver, alert, onScene, store.AlertPatch{Status: &onScene}, "arrive")
	if err != nil {
		return MissionView{}, err
	}
	if updated.Type == models.AlertTypeAmbulance {
		ss.lookupHospitals(ctx, updated)
	}
	return ss.view(updated), nil
}

// FindHospitals repeats the hospital lookup for an ambulance that is on scene.
func (ss *Session) FindHospitals(ctx context.Context, alertID string) (MissionView, error) {
	alert, _, err := ss.mission(ctx, alertID)
	if err != nil {
		return MissionView{}, err
	}
	if alert.Type != models.AlertTypeAmbulance {
		return MissionView{}, fmt.Errorf("%w: hospital lookup is for ambulance missions", ErrWrongAlertType)
	}
	if alert.Status != models.StatusOnScene {
		return MissionView{}, fmt.Errorf("%w: hospital lookup needs on_scene, alert is %s", lifecycle.ErrIllegalTransition, alert.Status)
	}
	ss.lookupHospitals(ctx, alert)
	return ss.view(alert), nil
}

func (ss *Session) lookupHospitals(ctx context.Context, alert models.Alert) {
	if ss.svc.places == nil {
		ss.svc.missions.setFacilities(ss.user.ID, nil, NoHospitalsNotice)
		return
	}
	facilities, err := ss.svc.places.NearbyHospitals(ctx, alert.Location)
	if err == nil && len(facilities) == 0 {
		err = maps.ErrNoResults
	}
	if err != nil {
		log.WithError(err).WithField("alertId", alert.ID).Warn("hospital lookup failed")
		ss.svc.missions.setFacilities(ss.user.ID, nil, NoHospitalsNotice)
		return
	}
	ss.svc.missions.setFacilities(ss.user.ID, facilities, "")
}

// DestinationInput picks a hospital by place id from the last lookup, or gives
// coordinates directly.
type DestinationInput struct {
	AlertID  string           `json:"alertId,omitempty"`
	PlaceID  string           `json:"placeId,omitempty"`
	Location *models.GeoPoint `json:"location,omitempty"`
	Name     string           `json:"name,omitempty"`
}

// SelectDestination records the destination and moves to enroute_to_hospital in one write.
func (ss *Session) SelectDestination(ctx context.Context, in DestinationInput) (MissionView, error) {
	alert, st, err := ss.mission(ctx, in.AlertID)
	if err != nil {
		return MissionView{}, err
	}
	if alert.Type != models.AlertTypeAmbulance {
		return MissionView{}, fmt.Errorf("%w: only ambulance missions have a destination", ErrWrongAlertType)
	}

	var dest models.Destination
	switch {
	case in.PlaceID != "":
		found := false
		for _, f := range st.facilities {
			if f.PlaceID == in.PlaceID {
				dest, found = f.Destination(), true
				break
			}
		}
		if !found {
			return MissionView{}, ErrUnknownFacility
		}
	case in.Location != nil:
		dest = models.Destination{Lat: in.Location.Lat, Lng: in.Location.Lng, Name: strings.TrimSpace(in.Name)}
	default:
		return MissionView{}, fmt.Errorf("%w: placeId or location is required", ErrInvalidAlert)
	}

	enroute := models.StatusEnrouteToHospital
	updated, err := ss.svc.transition(ctx, lifecycle.ActorDriver, alert, enroute, store.AlertPatch{
		Status:      &enroute,
		Destination: &dest,
	}, "destination")
	if err != nil {
		return MissionView{}, err
	}
	return ss.view(updated), nil
}

func (ss *Session) Complete(ctx context.Context, alertID string) (models.Alert, error) {
	alert, _, err := ss.mission(ctx, alertID)
	if err != nil {
		return models.Alert{}, err
	}
	completed := models.StatusCompleted
	updated, err := ss.svc.transition(ctx, lifecycle.ActorDriver, alert, completed, store.AlertPatch{Status: &completed}, "complete")
	if err != nil {
		return models.Alert{}, err
	}
	ss.svc.missions.finish(ss.user.ID)
	return updated, nil
}

// Directions routes from the driver's position (or the scene, once transporting)
// to the current target.
func (ss *Session) Directions(ctx context.Context, alertID string) (maps.Route, error) {
	alert, st, err := ss.mission(ctx, alertID)
	if err != nil {
		return maps.Route{}, err
	}
	origin := st.position
	if origin == nil && alert.Status == models.StatusEnrouteToHospital {
		origin = &alert.Location
	}
	if origin == nil {
		return maps.Route{}, ErrNoPosition
	}
	if ss.svc.places == nil {
		return maps.Route{}, maps.ErrNotConfigured
	}
	return ss.svc.places.Directions(ctx, *origin, target(alert))
}

// ReportPosition records the driver's live position. It is logged, not persisted.
func (ss *Session) ReportPosition(_ context.Context, p models.GeoPoint) error {
	if err := ss.requireDriver(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	ss.svc.missions.setPosition(ss.user.ID, p)
	st, _ := ss.svc.missions.get(ss.user.ID)
	log.WithFields(log.Fields{
		"driverId": ss.user.ID,
		"alertId":  st.alertID,
		"lat":      p.Lat,
		"lng":      p.Lng,
	}).Debug("driver position")
	return nil
}

// History lists this driver's completed missions, newest first.
func (ss *Session) History(ctx context.Context) ([]models.Alert, error) {
	if err := ss.requireDriver(); err != nil {
		return nil, err
	}
	return ss.svc.store.ListAlerts(ctx, store.AlertFilter{
		Type:        ss.user.Role.AlertType(),
		Status:      models.StatusCompleted,
		DriverID:    ss.user.ID,
		NewestFirst: true,
	})
}

// Panic notifies every connected admin.
func (ss *Session) Panic(_ context.Context, message string) (PanicNotice, error) {
	if err := ss.requireDriver(); err != nil {
		return PanicNotice{}, err
	}
	st, _ := ss.svc.missions.get(ss.user.ID)
	if strings.TrimSpace(message) == "" {
		message = "Driver pressed the panic button"
	}
	notice := PanicNotice{
		DriverID:   ss.user.ID,
		DriverName: ss.user.DisplayName(),
		Role:       ss.user.Role,
		AlertID:    st.alertID,
		Location:   st.position,
		Message:    message,
		At:         time.Now(),
	}
	log.WithFields(log.Fields{"driverId": ss.user.ID, "alertId": st.alertID}).Warn("panic raised")
	if ss.svc.notifier != nil {
		ss.svc.notifier.NotifyRole(models.RoleAdmin, "panic", notice)
	}
	return notice, nil
}
