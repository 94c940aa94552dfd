// Package storetest is a behavioural suite every store.Store implementation must pass.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGetAlert", func(t *testing.T) { testCreateAndGetAlert(t, newStore(t)) })
	t.Run("ListAlertsFilterAndOrder", func(t *testing.T) { testListAlerts(t, newStore(t)) })
	t.Run("UpdateAlertCompareAndSwap", func(t *testing.T) { testUpdateCAS(t, newStore(t)) })
	t.Run("ConcurrentAcceptOneWinner", func(t *testing.T) { testConcurrentAccept(t, newStore(t)) })
	t.Run("DeleteAlert", func(t *testing.T) { testDeleteAlert(t, newStore(t)) })
	t.Run("Vehicles", func(t *testing.T) { testVehicles(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
}

func newAlert(typ models.AlertType) *models.Alert {
	return &models.Alert{
		Type:        typ,
		Location:    models.GeoPoint{Lat: 17.40, Lng: 78.47},
		CallerName:  "A",
		CallerPhone: "555",
		Status:      models.StatusPending,
	}
}

func testCreateAndGetAlert(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAlert(models.AlertTypeAmbulance)
	require.NoError(t, s.CreateAlert(ctx, a))

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, int64(1), a.Version)
	assert.False(t, a.CreatedAt.IsZero())

	got, err := s.GetAlert(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, 17.40, got.Location.Lat)
	assert.Nil(t, got.Destination)

	_, err = s.GetAlert(ctx, "does-not-exist")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListAlerts(t *testing.T, s store.Store) {
	ctx := context.Background()
	var ids []string
	for _, typ := range []models.AlertType{models.AlertTypeAmbulance, models.AlertTypeFire, models.AlertTypeAmbulance} {
		a := newAlert(typ)
		require.NoError(t, s.CreateAlert(ctx, a))
		ids = append(ids, a.ID)
		time.Sleep(5 * time.Millisecond)
	}

	amb, err := s.ListAlerts(ctx, store.AlertFilter{Type: models.AlertTypeAmbulance, Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, amb, 2)
	assert.Equal(t, ids[0], amb[0].ID)

	all, err := s.ListAlerts(ctx, store.AlertFilter{NewestFirst: true})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	none, err := s.ListAlerts(ctx, store.AlertFilter{DriverID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testUpdateCAS(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAlert(models.AlertTypeAmbulance)
	require.NoError(t, s.CreateAlert(ctx, a))

	accepted := models.StatusAccepted
	driver := "driver-1"
	updated, err := s.UpdateAlert(ctx, a.ID, 1, store.AlertPatch{Status: &accepted, DriverID: &driver})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, models.StatusAccepted, updated.Status)
	assert.Equal(t, "driver-1", updated.DriverID)
	assert.Equal(t, "A", updated.CallerName, "untouched fields survive a partial merge")

	_, err = s.UpdateAlert(ctx, a.ID, 1, store.AlertPatch{Status: &accepted})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.UpdateAlert(ctx, "missing", 1, store.AlertPatch{Status: &accepted})
	assert.ErrorIs(t, err, store.ErrNotFound)

	enroute := models.StatusEnrouteToHospital
	dest := models.Destination{Lat: 17.41, Lng: 78.48, Name: "City Hospital"}
	updated, err = s.UpdateAlert(ctx, a.ID, 2, store.AlertPatch{Status: &enroute, Destination: &dest})
	require.NoError(t, err)
	require.NotNil(t, updated.Destination)
	assert.Equal(t, "City Hospital", updated.Destination.Name)
}

func testConcurrentAccept(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAlert(models.AlertTypeFire)
	require.NoError(t, s.CreateAlert(ctx, a))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			accepted := models.StatusAccepted
			driver := "driver-" + string(rune('a'+i))
			_, err := s.UpdateAlert(ctx, a.ID, a.Version, store.AlertPatch{Status: &accepted, DriverID: &driver})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, store.ErrConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, writers-1, conflicts)
}

func testDeleteAlert(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAlert(models.AlertTypePolice)
	require.NoError(t, s.CreateAlert(ctx, a))

	require.NoError(t, s.DeleteAlert(ctx, a.ID))
	_, err := s.GetAlert(ctx, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteAlert(ctx, a.ID), store.ErrNotFound)
}

func testVehicles(t *testing.T, s store.Store) {
	ctx := context.Background()
	v1 := &models.Vehicle{VehicleID: "VEH-A1", Type: models.AlertTypeAmbulance, PlateNumber: "TS09AB1234", Status: models.VehicleAvailable}
	v2 := &models.Vehicle{VehicleID: "VEH-F1", Type: models.AlertTypeFire, PlateNumber: "TS09FE0001", Status: models.VehicleUnavailable}
	require.NoError(t, s.CreateVehicle(ctx, v1))
	require.NoError(t, s.CreateVehicle(ctx, v2))
	assert.NotEmpty(t, v1.ID)

	assert.ErrorIs(t, s.CreateVehicle(ctx, &models.Vehicle{VehicleID: "VEH-A1"}), store.ErrDuplicate)

	available, err := s.ListVehicles(ctx, store.VehicleFilter{Status: models.VehicleAvailable})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "VEH-A1", available[0].VehicleID)

	updated, err := s.UpdateVehicleStatus(ctx, "VEH-A1", models.VehicleAvailable, models.VehicleEnroute)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleEnroute, updated.Status)

	_, err = s.UpdateVehicleStatus(ctx, "VEH-A1", models.VehicleAvailable, models.VehicleEnroute)
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.UpdateVehicleStatus(ctx, "VEH-A1", "", models.VehicleAvailable)
	assert.NoError(t, err)

	_, err = s.UpdateVehicleStatus(ctx, "VEH-404", "", models.VehicleAvailable)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetVehicle(ctx, "VEH-404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := &models.User{Email: "driver@example.com", Name: "Ravi", Role: models.RoleAmbulanceDriver, Password: "hash"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ravi", got.Name)
	assert.Equal(t, "hash", got.Password)

	byEmail, err := s.GetUserByEmail(ctx, "DRIVER@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Email: "driver@example.com"}), store.ErrDuplicate)

	_, err = s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
