package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vital-route-api-server/config"
	"vital-route-api-server/internal/auth"
	"vital-route-api-server/internal/cache"
	"vital-route-api-server/internal/database"
	"vital-route-api-server/internal/dispatch"
	"vital-route-api-server/internal/events"
	"vital-route-api-server/internal/feed"
	"vital-route-api-server/internal/maps"
	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/socket"
	"vital-route-api-server/internal/store/memstore"
)

func init() { gin.SetMode(gin.TestMode) }

var scene = models.GeoPoint{Lat: 17.3850, Lng: 78.4867}

type stubPlaces struct{}

func (stubPlaces) NearbyHospitals(context.Context, models.GeoPoint) ([]models.Facility, error) {
	return []models.Facility{
		{PlaceID: "p1", Name: "City Hospital", Location: models.GeoPoint{Lat: 17.40, Lng: 78.49}, DistanceKm: 1.7},
	}, nil
}

func (stubPlaces) Directions(context.Context, models.GeoPoint, models.GeoPoint) (maps.Route, error) {
	return maps.Route{Summary: "NH65", DistanceText: "2 km", DurationText: "6 mins"}, nil
}

type testServer struct {
	router *gin.Engine
	store  *memstore.Store
}

func newTestServer(t *testing.T, rate string) *testServer {
	t.Helper()
	st := memstore.New()
	bus := events.NewLocalBus()
	live := feed.New(st, bus, dispatch.NewProfileNames(st, cache.NewLocalCache(time.Minute), time.Minute))
	t.Cleanup(live.Close)

	hub := socket.NewHub()
	svc := dispatch.NewService(dispatch.Deps{Store: st, Bus: bus, Feed: live, Places: stubPlaces{}, Notifier: hub})
	tokens, err := auth.NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	cfg := config.Config{
		Server:    config.ServerConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{PublicAlerts: rate},
	}
	router, err := SetupRouter(cfg, Dependencies{Users: st, Tokens: tokens, Dispatch: svc, Hub: hub})
	require.NoError(t, err)
	return &testServer{router: router, store: st}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (s *testServer) signUp(t *testing.T, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type tokenResponse struct {
	Token string      `json:"token"`
	Route string      `json:"route"`
	User  models.User `json:"user"`
}

func (s *testServer) driverToken(t *testing.T, email string, role models.Role) string {
	t.Helper()
	w := s.signUp(t, map[string]string{
		"email":       email,
		"password":    "secret123",
		"name":        "Driver " + email,
		"mobile":      "9000000000",
		"numberPlate": "ts09 ab 1234",
		"area":        "Hyderabad",
		"role":        string(role),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp tokenResponse
	decode(t, w, &resp)
	return resp.Token
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	require.NoError(t, database.SeedAdmin(context.Background(), s.store, database.DefaultAdminEmail, "adminpass"))
	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": database.DefaultAdminEmail, "password": "adminpass",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp tokenResponse
	decode(t, w, &resp)
	assert.Equal(t, "/admin", resp.Route)
	return resp.Token
}

func (s *testServer) submit(t *testing.T, typ string) models.Alert {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/alerts", "", map[string]interface{}{
		"type": typ, "location": scene, "callerName": "Caller", "callerPhone": "9999999999",
		"notes": "smoke on second floor", "priority": "red",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Alert models.Alert `json:"alert"`
	}
	decode(t, w, &resp)
	return resp.Alert
}

func TestSignUpAndLogin(t *testing.T) {
	s := newTestServer(t, "100-M")

	w := s.signUp(t, map[string]string{
		"email": "Ravi@Example.com", "password": "secret123", "name": "Ravi", "mobile": "9000000000",
		"numberPlate": "ts09 ab 1234", "area": "Hyderabad", "role": "ambulance_driver",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created tokenResponse
	decode(t, w, &created)
	assert.Equal(t, "/ambulance", created.Route)
	assert.Equal(t, "ravi@example.com", created.User.Email)
	assert.Equal(t, "TS09 AB 1234", created.User.NumberPlate)
	assert.NotEmpty(t, created.Token)

	w = s.signUp(t, map[string]string{
		"email": "ravi@example.com", "password": "secret123", "name": "Ravi", "mobile": "9000000000",
		"numberPlate": "X", "area": "Hyderabad", "role": "ambulance_driver",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.signUp(t, map[string]string{
		"email": "nop@example.com", "password": "secret123", "name": "No Plate", "mobile": "9000000000",
		"area": "Hyderabad", "role": "fire_driver",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ravi@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/me", created.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me models.User
	decode(t, w, &me)
	assert.Equal(t, created.User.ID, me.ID)
	assert.Empty(t, me.Password)
}

func TestAmbulanceMissionEndToEnd(t *testing.T) {
	s := newTestServer(t, "100-M")
	driver := s.driverToken(t, "amb@example.com", models.RoleAmbulanceDriver)
	admin := s.adminToken(t)

	alert := s.submit(t, "ambulance")
	assert.Equal(t, models.StatusPending, alert.Status)
	assert.Empty(t, alert.Priority)

	w := s.do(t, http.MethodGet, "/api/v1/driver/alerts?lat=17.40&lng=78.49", driver, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pending []dispatch.PendingAlert
	decode(t, w, &pending)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].DistanceKm)
	require.NotNil(t, pending[0].ETAMinutes)

	w = s.do(t, http.MethodPost, "/api/v1/driver/alerts/"+alert.ID+"/accept", driver, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/driver/mission/arrive", driver, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view dispatch.MissionView
	decode(t, w, &view)
	assert.Equal(t, models.StatusOnScene, view.Alert.Status)
	require.Len(t, view.Facilities, 1)

	w = s.do(t, http.MethodPost, "/api/v1/driver/mission/destination", driver, map[string]string{"placeId": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/driver/mission/destination", driver, map[string]string{"placeId": "p1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &view)
	assert.Equal(t, models.StatusEnrouteToHospital, view.Alert.Status)
	require.NotNil(t, view.Alert.Destination)
	assert.Equal(t, "City Hospital", view.Alert.Destination.Name)

	w = s.do(t, http.MethodGet, "/api/v1/driver/mission/directions", driver, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/driver/mission/complete", driver, map[string]string{"alertId": alert.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/driver/mission", driver, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/driver/history", driver, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.Alert
	decode(t, w, &history)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusCompleted, history[0].Status)

	w = s.do(t, http.MethodGet, "/api/v1/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats dispatch.Stats
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 0, stats.Active)
}

func TestSecondAcceptConflicts(t *testing.T) {
	s := newTestServer(t, "100-M")
	first := s.driverToken(t, "a1@example.com", models.RoleAmbulanceDriver)
	second := s.driverToken(t, "a2@example.com", models.RoleAmbulanceDriver)
	alert := s.submit(t, "ambulance")

	w := s.do(t, http.MethodPost, "/api/v1/driver/alerts/"+alert.ID+"/accept", first, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, "/api/v1/driver/alerts/"+alert.ID+"/accept", second, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t, "100-M")
	fire := s.driverToken(t, "fire@example.com", models.RoleFireDriver)
	amb := s.driverToken(t, "amb@example.com", models.RoleAmbulanceDriver)
	fireAlert := s.submit(t, "fire")

	w := s.do(t, http.MethodGet, "/api/v1/driver/alerts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/alerts", fire, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/driver/mission/hospitals", fire, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/driver/alerts/"+fireAlert.ID+"/accept", amb, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/driver/alerts", amb, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []dispatch.PendingAlert
	decode(t, w, &pending)
	assert.Empty(t, pending)

	w = s.do(t, http.MethodGet, "/api/v1/driver/alerts?lat=abc&lng=1", fire, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminFleetAndAssignment(t *testing.T) {
	s := newTestServer(t, "100-M")
	admin := s.adminToken(t)

	w := s.do(t, http.MethodPost, "/api/v1/admin/vehicles", admin, map[string]string{"type": "fire", "plateNumber": "ts09fe0001"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var vehicle models.Vehicle
	decode(t, w, &vehicle)
	assert.Equal(t, models.VehicleAvailable, vehicle.Status)

	w = s.do(t, http.MethodPost, "/api/v1/admin/alerts", admin, map[string]interface{}{
		"type": "fire", "location": scene, "callerName": "Control", "callerPhone": "100", "priority": "red",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var alert models.Alert
	decode(t, w, &alert)
	assert.Equal(t, models.PriorityRed, alert.Priority)

	w = s.do(t, http.MethodPost, "/api/v1/admin/alerts/"+alert.ID+"/assign", admin, map[string]string{"vehicleId": vehicle.VehicleID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &alert)
	assert.Equal(t, models.StatusAccepted, alert.Status)
	assert.Equal(t, vehicle.VehicleID, alert.AssignedVehicle)

	w = s.do(t, http.MethodGet, "/api/v1/admin/vehicles?status=enroute", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var vehicles []models.Vehicle
	decode(t, w, &vehicles)
	require.Len(t, vehicles, 1)

	w = s.do(t, http.MethodPatch, "/api/v1/admin/vehicles/"+vehicle.VehicleID+"/status", admin, map[string]string{"status": "flying"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPatch, "/api/v1/admin/vehicles/"+vehicle.VehicleID+"/status", admin, map[string]string{"status": "available"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/alerts", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var views []feed.AlertView
	decode(t, w, &views)
	require.Len(t, views, 1)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/alerts/"+alert.ID, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodDelete, "/api/v1/admin/alerts/"+alert.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicAlertsAreRateLimited(t *testing.T) {
	s := newTestServer(t, "2-M")
	s.submit(t, "police")
	s.submit(t, "police")

	w := s.do(t, http.MethodPost, "/api/v1/alerts", "", map[string]interface{}{
		"type": "police", "location": scene, "callerName": "Caller", "callerPhone": "1",
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAlertWithoutLocationIsRejected(t *testing.T) {
	s := newTestServer(t, "100-M")

	w := s.do(t, http.MethodPost, "/api/v1/alerts", "", map[string]interface{}{
		"type": "ambulance", "callerName": "Caller", "callerPhone": "1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	admin := s.adminToken(t)
	w = s.do(t, http.MethodGet, "/api/v1/admin/alerts", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var alerts []map[string]interface{}
	decode(t, w, &alerts)
	assert.Empty(t, alerts)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, "100-M")

	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vitalroute_http_request_duration_seconds")
}

func TestInvalidRateIsRejected(t *testing.T) {
	_, err := SetupRouter(config.Config{RateLimit: config.RateLimitConfig{PublicAlerts: "lots"}}, Dependencies{})
	assert.Error(t, err)
}

func TestPositionAndPanic(t *testing.T) {
	s := newTestServer(t, "100-M")
	driver := s.driverToken(t, "amb@example.com", models.RoleAmbulanceDriver)

	w := s.do(t, http.MethodPost, "/api/v1/driver/position", driver, models.GeoPoint{Lat: 95, Lng: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/driver/position", driver, scene)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/driver/panic", driver, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var notice dispatch.PanicNotice
	decode(t, w, &notice)
	assert.NotEmpty(t, notice.Message)
	require.NotNil(t, notice.Location)
	assert.Equal(t, scene, *notice.Location)
}
