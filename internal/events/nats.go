package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NATSBus shares changes between API instances over a NATS subject.
// Local handlers are called immediately on Publish; messages echoed back
// from this instance are ignored.
type NATSBus struct {
	*LocalBus
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	origin  string
}

func NewNATSBus(url, subject string) (*NATSBus, error) {
	nc, err := nats.Connect(url,
		nats.Name("vitalroute-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	b := &NATSBus{
		LocalBus: NewLocalBus(),
		conn:     nc,
		subject:  subject,
		origin:   uuid.NewString(),
	}
	b.sub, err = nc.Subscribe(subject, b.handleMessage)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s failed: %w", subject, err)
	}
	return b, nil
}

func (b *NATSBus) handleMessage(msg *nats.Msg) {
	var c Change
	if err := json.Unmarshal(msg.Data, &c); err != nil {
		log.WithError(err).Warn("events: dropping malformed change message")
		return
	}
	if c.Origin == b.origin {
		return
	}
	b.dispatch(c)
}

func (b *NATSBus) Publish(ctx context.Context, c Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.At.IsZero() {
		c.At = time.Now()
	}
	c.Origin = b.origin
	b.dispatch(c)

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (b *NATSBus) Close() error {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
	return b.LocalBus.Close()
}
