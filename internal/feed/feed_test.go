package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vital-route-api-server/internal/events"
	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/store"
	"vital-route-api-server/internal/store/memstore"
)

type fakeNames map[string]string

func (f fakeNames) DisplayName(_ context.Context, id string) (string, error) {
	if n, ok := f[id]; ok {
		return n, nil
	}
	return "", store.ErrNotFound
}

func setup(t *testing.T) (*memstore.Store, *events.LocalBus, *Feed) {
	t.Helper()
	s := memstore.New()
	bus := events.NewLocalBus()
	f := New(s, bus, fakeNames{"u1": "Priya"})
	t.Cleanup(f.Close)
	return s, bus, f
}

func next(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}
	return Snapshot{}
}

func waitFor(t *testing.T, sub *Subscription, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Updates():
			require.True(t, ok, "subscription closed unexpectedly")
			if cond(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("condition never met")
			return Snapshot{}
		}
	}
}

func createAlert(t *testing.T, s store.Store, bus events.Bus, a *models.Alert) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateAlert(ctx, a))
	require.NoError(t, bus.Publish(ctx, events.Change{Kind: events.AlertCreated, AlertID: a.ID}))
}

func TestInitialSnapshot(t *testing.T) {
	s, bus, f := setup(t)
	createAlert(t, s, bus, &models.Alert{Type: models.AlertTypeAmbulance, Status: models.StatusPending})

	sub, err := f.Subscribe(context.Background(), SubscribeOptions{Role: "admin"})
	require.NoError(t, err)
	defer sub.Close()

	snap := next(t, sub)
	assert.Len(t, snap.Alerts, 1)
	assert.NotZero(t, snap.Seq)
}

func TestDriverFilterSeesOnlyPendingOfType(t *testing.T) {
	s, bus, f := setup(t)

	sub, err := f.Subscribe(context.Background(), SubscribeOptions{
		Role:   "ambulance_driver",
		Filter: store.AlertFilter{Type: models.AlertTypeAmbulance, Status: models.StatusPending},
	})
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, next(t, sub).Alerts)

	createAlert(t, s, bus, &models.Alert{Type: models.AlertTypeFire, Status: models.StatusPending})
	amb := &models.Alert{Type: models.AlertTypeAmbulance, Status: models.StatusPending}
	createAlert(t, s, bus, amb)

	snap := waitFor(t, sub, func(s Snapshot) bool { return len(s.Alerts) == 1 })
	assert.Equal(t, amb.ID, snap.Alerts[0].ID)

	accepted := models.StatusAccepted
	_, err = s.UpdateAlert(context.Background(), amb.ID, amb.Version, store.AlertPatch{Status: &accepted})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), events.Change{Kind: events.AlertUpdated, AlertID: amb.ID}))

	waitFor(t, sub, func(s Snapshot) bool { return len(s.Alerts) == 0 })
}

func TestDeleteRemovesFromEveryView(t *testing.T) {
	s, bus, f := setup(t)
	a := &models.Alert{Type: models.AlertTypeAmbulance, Status: models.StatusPending}
	createAlert(t, s, bus, a)

	admin, err := f.Subscribe(context.Background(), SubscribeOptions{Role: "admin", Filter: store.AlertFilter{NewestFirst: true}})
	require.NoError(t, err)
	defer admin.Close()
	driver, err := f.Subscribe(context.Background(), SubscribeOptions{
		Role:   "ambulance_driver",
		Filter: store.AlertFilter{Type: models.AlertTypeAmbulance, Status: models.StatusPending},
	})
	require.NoError(t, err)
	defer driver.Close()

	assert.Len(t, next(t, admin).Alerts, 1)
	assert.Len(t, next(t, driver).Alerts, 1)

	require.NoError(t, s.DeleteAlert(context.Background(), a.ID))
	require.NoError(t, bus.Publish(context.Background(), events.Change{Kind: events.AlertDeleted, AlertID: a.ID}))

	waitFor(t, admin, func(s Snapshot) bool { return len(s.Alerts) == 0 })
	waitFor(t, driver, func(s Snapshot) bool { return len(s.Alerts) == 0 })
}

func TestSlowSubscriberGetsLatestOnly(t *testing.T) {
	s, bus, f := setup(t)
	sub, err := f.Subscribe(context.Background(), SubscribeOptions{Role: "admin"})
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		createAlert(t, s, bus, &models.Alert{Type: models.AlertTypePolice, Status: models.StatusPending})
		f.refreshAll()
	}

	snap := next(t, sub)
	assert.Len(t, snap.Alerts, 5, "older snapshots were replaced, not queued")
}

func TestEnrichment(t *testing.T) {
	s, bus, f := setup(t)
	createAlert(t, s, bus, &models.Alert{Type: models.AlertTypeFire, UserID: "u1", Status: models.StatusPending})
	createAlert(t, s, bus, &models.Alert{Type: models.AlertTypeFire, UserID: "ghost", Status: models.StatusPending})
	createAlert(t, s, bus, &models.Alert{Type: models.AlertTypeFire, Status: models.StatusPending})

	snap, err := f.Snapshot(context.Background(), SubscribeOptions{Enrich: true})
	require.NoError(t, err)

	names := map[string]int{}
	for _, a := range snap.Alerts {
		names[a.UserName]++
	}
	assert.Equal(t, 1, names["Priya"])
	assert.Equal(t, 2, names[UnknownUser])
}

func TestIncludeVehicles(t *testing.T) {
	s, _, f := setup(t)
	require.NoError(t, s.CreateVehicle(context.Background(), &models.Vehicle{VehicleID: "VEH-1", Status: models.VehicleAvailable}))

	snap, err := f.Snapshot(context.Background(), SubscribeOptions{IncludeVehicles: true})
	require.NoError(t, err)
	require.Len(t, snap.Vehicles, 1)
	assert.Equal(t, "VEH-1", snap.Vehicles[0].VehicleID)
}

func TestContextCancelReleasesSubscription(t *testing.T) {
	_, _, f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := f.Subscribe(ctx, SubscribeOptions{Role: "admin"})
	require.NoError(t, err)
	next(t, sub)

	cancel()
	select {
	case _, ok := <-sub.Updates():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}

	assert.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.subs) == 0
	}, time.Second, 10*time.Millisecond)
}

type failingSource struct{ Source }

func (failingSource) ListAlerts(context.Context, store.AlertFilter) ([]models.Alert, error) {
	return nil, errors.New("boom")
}

func TestSubscribeFailsWhenInitialReadFails(t *testing.T) {
	f := New(failingSource{}, events.NewLocalBus(), nil)
	defer f.Close()

	_, err := f.Subscribe(context.Background(), SubscribeOptions{Role: "admin"})
	assert.Error(t, err)
	assert.Empty(t, f.subs)
}

func TestSubscribeAfterClose(t *testing.T) {
	_, _, f := setup(t)
	f.Close()
	_, err := f.Subscribe(context.Background(), SubscribeOptions{})
	assert.ErrorIs(t, err, ErrClosed)
}
