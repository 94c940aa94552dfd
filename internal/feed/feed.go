// Package feed turns store changes into per-viewer snapshots.
//
// Every subscription has a filter. When any change event arrives, each open
// subscription re-lists its filter and receives a full replacement snapshot.
// Only the newest undelivered snapshot is kept per subscriber.
package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"vital-route-api-server/internal/events"
	"vital-route-api-server/internal/metrics"
	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/store"
)

const (
	UnknownUser    = "Unknown User"
	enrichParallel = 8
	refreshTimeout = 10 * time.Second
)

var ErrClosed = errors.New("feed: closed")

// Source is the read side of the store the feed needs.
type Source interface {
	ListAlerts(ctx context.Context, filter store.AlertFilter) ([]models.Alert, error)
	ListVehicles(ctx context.Context, filter store.VehicleFilter) ([]models.Vehicle, error)
}

// NameResolver maps a user id to a display name.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

type AlertView struct {
	models.Alert
	UserName string `json:"userName,omitempty"`
}

// Snapshot is a complete, immutable view for one subscriber.
type Snapshot struct {
	Seq      uint64           `json:"seq"`
	Alerts   []AlertView      `json:"alerts"`
	Vehicles []models.Vehicle `json:"vehicles,omitempty"`
	At       time.Time        `json:"at"`
}

type SubscribeOptions struct {
	// Role labels the subscription in metrics and logs.
	Role            string
	Filter          store.AlertFilter
	Enrich          bool
	IncludeVehicles bool
}

type Feed struct {
	src   Source
	names NameResolver
	unsub func()

	seq  atomic.Uint64
	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// New starts the refresh loop. names may be nil when no subscriber enriches.
func New(src Source, bus events.Bus, names NameResolver) *Feed {
	f := &Feed{
		src:   src,
		names: names,
		kick:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		subs:  make(map[*Subscription]struct{}),
	}
	f.unsub = bus.Subscribe(func(events.Change) { f.Notify() })

	f.wg.Add(1)
	go f.run()
	return f
}

// Notify schedules a refresh of every subscription. Calls made while a
// refresh is pending collapse into one.
func (f *Feed) Notify() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

func (f *Feed) run() {
	defer f.wg.Done()
	for {
		select {
		case <-f.done:
			return
		case <-f.kick:
			f.refreshAll()
		}
	}
}

func (f *Feed) refreshAll() {
	f.mu.Lock()
	subs := make([]*Subscription, 0, len(f.subs))
	for s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		snap, err := f.build(ctx, s.opts)
		cancel()
		if err != nil {
			// The subscriber keeps its last good snapshot.
			log.WithError(err).WithField("role", s.opts.Role).Warn("feed: refresh failed")
			continue
		}
		s.deliver(snap)
	}
}

// Subscribe registers a subscription and delivers its initial snapshot.
// The subscription is released by Close or when ctx is done.
func (f *Feed) Subscribe(ctx context.Context, opts SubscribeOptions) (*Subscription, error) {
	s := &Subscription{
		feed:    f,
		opts:    opts,
		updates: make(chan Snapshot, 1),
		done:    make(chan struct{}),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	f.subs[s] = struct{}{}
	f.mu.Unlock()
	metrics.FeedSubscriptions.WithLabelValues(opts.Role).Inc()

	snap, err := f.build(ctx, opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.deliver(snap)

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

// Snapshot builds a one-off snapshot without subscribing.
func (f *Feed) Snapshot(ctx context.Context, opts SubscribeOptions) (Snapshot, error) {
	return f.build(ctx, opts)
}

func (f *Feed) build(ctx context.Context, opts SubscribeOptions) (Snapshot, error) {
	seq := f.seq.Add(1)

	alerts, err := f.src.ListAlerts(ctx, opts.Filter)
	if err != nil {
		return Snapshot{}, err
	}
	views := make([]AlertView, len(alerts))
	for i, a := range alerts {
		views[i] = AlertView{Alert: a}
	}
	if opts.Enrich {
		f.enrich(ctx, views)
	}

	snap := Snapshot{Seq: seq, Alerts: views, At: time.Now()}
	if opts.IncludeVehicles {
		snap.Vehicles, err = f.src.ListVehicles(ctx, store.VehicleFilter{})
		if err != nil {
			return Snapshot{}, err
		}
	}
	return snap, nil
}

// enrich fills UserName with at most enrichParallel lookups in flight.
func (f *Feed) enrich(ctx context.Context, views []AlertView) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichParallel)
	for i := range views {
		if views[i].UserID == "" || f.names == nil {
			views[i].UserName = UnknownUser
			continue
		}
		i := i
		g.Go(func() error {
			name, err := f.names.DisplayName(gctx, views[i].UserID)
			if err != nil {
				log.WithError(err).WithField("userId", views[i].UserID).Debug("feed: name lookup failed")
				name = UnknownUser
			}
			views[i].UserName = name
			return nil
		})
	}
	_ = g.Wait()
}

func (f *Feed) remove(s *Subscription) {
	f.mu.Lock()
	delete(f.subs, s)
	f.mu.Unlock()
}

// Close stops the refresh loop and closes every open subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := make([]*Subscription, 0, len(f.subs))
	for s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	f.unsub()
	close(f.done)
	f.wg.Wait()
	for _, s := range subs {
		s.Close()
	}
}

type Subscription struct {
	feed    *Feed
	opts    SubscribeOptions
	updates chan Snapshot
	done    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	lastSeq uint64
	closed  bool
}

// Updates yields snapshots. The channel is closed when the subscription ends.
func (s *Subscription) Updates() <-chan Snapshot { return s.updates }

func (s *Subscription) Role() string { return s.opts.Role }

func (s *Subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || snap.Seq <= s.lastSeq {
		return
	}
	s.lastSeq = snap.Seq
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.feed.remove(s)
		s.mu.Lock()
		s.closed = true
		close(s.updates)
		s.mu.Unlock()
		close(s.done)
		metrics.FeedSubscriptions.WithLabelValues(s.opts.Role).Dec()
	})
}
