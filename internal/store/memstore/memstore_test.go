package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"vital-route-api-server/internal/store"
	"vital-route-api-server/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListAlerts(ctx, store.AlertFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}
