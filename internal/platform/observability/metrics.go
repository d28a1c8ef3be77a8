package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_total",
		Help: "Inbound source channel events by kind and outcome",
	}, []string{"kind", "outcome"})

	SendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_sends_total",
		Help: "Destination send attempts by fallback tier and status",
	}, []string{"tier", "status"})

	DestinationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_destination_failures_total",
		Help: "Destinations for which every fallback tier failed",
	})

	FilterRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_filter_rejected_total",
		Help: "Messages rejected by the content filter by reason",
	}, []string{"reason"})

	MappingCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_mapping_cache_entries",
		Help: "Source messages currently tracked for edit and delete propagation",
	})

	MappingCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_mapping_cache_evictions_total",
		Help: "Source messages evicted from the mapping cache",
	})

	RewriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_rewrite_errors_total",
		Help: "Reference occurrences left unmodified because rewriting them failed",
	})

	TransportRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_transport_retries_total",
		Help: "Retried transport calls by operation",
	}, []string{"op"})

	EventHandleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_event_handle_duration_seconds",
		Help:    "Time to handle one inbound event including every destination",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})
)
