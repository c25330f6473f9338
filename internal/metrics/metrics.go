package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	conflictQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventdesk_conflict_queries_total",
			Help: "Conflict queries answered, by scope (time, room) and outcome (clear, conflict)",
		},
		[]string{"scope", "outcome"},
	)

	submitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventdesk_submit_rejections_total",
			Help: "Event saves rejected by the form gate, by reason",
		},
		[]string{"reason"},
	)

	storeRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventdesk_store_refreshes_total",
			Help: "Event store refreshes, by outcome (backend, cache, stale)",
		},
		[]string{"outcome"},
	)

	storeEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventdesk_store_events",
			Help: "Events currently held in the store",
		},
	)

	backendWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventdesk_backend_writes_total",
			Help: "Create/update/delete round trips to the backend, by operation and status",
		},
		[]string{"operation", "status"},
	)
)

// TrackConflictQuery records one answered query.
func TrackConflictQuery(scope string, conflicts int) {
	outcome := "clear"
	if conflicts > 0 {
		outcome = "conflict"
	}
	conflictQueries.WithLabelValues(scope, outcome).Inc()
}

// TrackSubmitRejection records a gate rejection ("invalid_window", "room_conflict").
func TrackSubmitRejection(reason string) {
	submitRejections.WithLabelValues(reason).Inc()
}

// TrackRefresh records where the store's contents came from and its size.
func TrackRefresh(outcome string, size int) {
	storeRefreshes.WithLabelValues(outcome).Inc()
	storeEvents.Set(float64(size))
}

// SetStoreSize updates the store size gauge after a single write.
func SetStoreSize(size int) {
	storeEvents.Set(float64(size))
}

// TrackBackendWrite records a write round trip.
func TrackBackendWrite(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	backendWrites.WithLabelValues(operation, status).Inc()
}
