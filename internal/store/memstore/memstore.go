// Package memstore is an in-process implementation of store.Store, used for tests and
// for running the API without a database.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	alerts   map[string]models.Alert
	vehicles map[string]models.Vehicle // keyed by VehicleID
	users    map[string]models.User
	now      func() time.Time
}

type Option func(*Store)

// WithClock overrides time.Now, mainly so tests get distinct CreatedAt values.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		alerts:   make(map[string]models.Alert),
		vehicles: make(map[string]models.Vehicle),
		users:    make(map[string]models.User),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	alert.ID = uuid.NewString()
	alert.CreatedAt = now
	alert.UpdatedAt = now
	alert.Version = 1
	s.alerts[alert.ID] = *alert
	return nil
}

func (s *Store) GetAlert(ctx context.Context, id string) (models.Alert, error) {
	if err := ctx.Err(); err != nil {
		return models.Alert{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return models.Alert{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAlerts(ctx context.Context, filter store.AlertFilter) ([]models.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if filter.Match(a) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	store.SortAlerts(out, filter.NewestFirst)
	return out, nil
}

func (s *Store) UpdateAlert(ctx context.Context, id string, expectedVersion int64, patch store.AlertPatch) (models.Alert, error) {
	if err := ctx.Err(); err != nil {
		return models.Alert{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.alerts[id]
	if !ok {
		return models.Alert{}, store.ErrNotFound
	}
	if current.Version != expectedVersion {
		return models.Alert{}, store.ErrConflict
	}
	updated := patch.Apply(current)
	updated.Version = current.Version + 1
	updated.UpdatedAt = s.now()
	s.alerts[id] = updated
	return updated, nil
}

func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.alerts, id)
	return nil
}

func (s *Store) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.vehicles[vehicle.VehicleID]; exists {
		return store.ErrDuplicate
	}
	now := s.now()
	vehicle.ID = uuid.NewString()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	s.vehicles[vehicle.VehicleID] = *vehicle
	return nil
}

func (s *Store) GetVehicle(ctx context.Context, vehicleID string) (models.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return models.Vehicle{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[vehicleID]
	if !ok {
		return models.Vehicle{}, store.ErrNotFound
	}
	return v, nil
}

func (s *Store) ListVehicles(ctx context.Context, filter store.VehicleFilter) ([]models.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		if filter.Match(v) {
			out = append(out, v)
		}
	}
	sortVehicles(out)
	return out, nil
}

func (s *Store) UpdateVehicleStatus(ctx context.Context, vehicleID string, expected, to models.VehicleStatus) (models.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return models.Vehicle{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[vehicleID]
	if !ok {
		return models.Vehicle{}, store.ErrNotFound
	}
	if expected != "" && v.Status != expected {
		return models.Vehicle{}, store.ErrConflict
	}
	v.Status = to
	v.UpdatedAt = s.now()
	s.vehicles[vehicleID] = v
	return v, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return store.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (s *Store) Close(context.Context) error { return nil }

func sortVehicles(vs []models.Vehicle) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].VehicleID < vs[j].VehicleID })
}
