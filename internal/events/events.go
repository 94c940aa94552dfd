// Package events carries "something changed" notices from writers to the live feed.
package events

import (
	"context"
	"sync"
	"time"

	"vital-route-api-server/internal/models"
)

type Kind string

const (
	AlertCreated   Kind = "alert.created"
	AlertUpdated   Kind = "alert.updated"
	AlertDeleted   Kind = "alert.deleted"
	VehicleUpdated Kind = "vehicle.updated"
)

// Change describes a single committed write. Subscribers re-read the store,
// so the payload only needs enough to log and route.
type Change struct {
	Kind      Kind               `json:"kind"`
	AlertID   string             `json:"alertId,omitempty"`
	VehicleID string             `json:"vehicleId,omitempty"`
	Type      models.AlertType   `json:"type,omitempty"`
	Status    models.AlertStatus `json:"status,omitempty"`
	Version   int64              `json:"version,omitempty"`
	At        time.Time          `json:"at"`
	Origin    string             `json:"origin,omitempty"`
}

// Handler must not block; the feed only signals its refresh loop.
type Handler func(Change)

type Bus interface {
	Publish(ctx context.Context, c Change) error
	Subscribe(h Handler) (unsubscribe func())
	Close() error
}

// LocalBus fans out to handlers in this process.
type LocalBus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
	closed   bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]Handler)}
}

func (b *LocalBus) Publish(ctx context.Context, c Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.At.IsZero() {
		c.At = time.Now()
	}
	b.dispatch(c)
	return nil
}

func (b *LocalBus) dispatch(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, h := range b.handlers {
		h(c)
	}
}

func (b *LocalBus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[int]Handler)
	return nil
}
