package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_created_total", Help: "Total rides created"})

	AssignmentsTotal          = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "assignments_total", Help: "Total successful driver assignments"})
	ReservationConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "reservation_conflicts_total", Help: "Total lost reservation races during dispatch"})
	NoDriversTotal            = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "no_drivers_total", Help: "Total dispatch attempts that found no available driver"})
	AssignLatency             = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "ride_dispatch", Name: "assign_latency_seconds", Help: "Dispatch end-to-end latency"})

	UpdatesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "updates_recorded_total", Help: "Total ride updates recorded"})
	ActiveSimulations    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_dispatch", Name: "active_simulations", Help: "Movement simulations currently running"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
