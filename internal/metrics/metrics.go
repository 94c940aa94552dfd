// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalroute_alert_transitions_total",
			Help: "Committed alert status transitions",
		},
		[]string{"from", "to"},
	)

	// AlertConflicts counts writes that lost a compare-and-swap race.
	AlertConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalroute_alert_conflicts_total",
			Help: "Alert or vehicle writes rejected because the record changed",
		},
		[]string{"op"},
	)

	FeedSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vitalroute_feed_subscriptions",
			Help: "Open live feed subscriptions",
		},
		[]string{"role"},
	)

	PlacesLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalroute_places_lookups_total",
			Help: "Nearby facility lookups by outcome",
		},
		[]string{"result"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitalroute_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
