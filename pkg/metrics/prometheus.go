package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AllocationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobtrack_allocation_results_total",
			Help: "Per-assignment results of item and personnel allocation requests",
		},
		[]string{"kind", "status"},
	)

	InventoryAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobtrack_inventory_adjustments_total",
			Help: "Units moved in or out of item available quantity",
		},
		[]string{"direction"},
	)

	InventoryDrift = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobtrack_inventory_drift_items",
			Help: "Number of items whose available quantity disagrees with the allocation ledger at the last reconcile",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobtrack_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobtrack_outbox_messages_total",
			Help: "Project log records relayed to Kafka by result",
		},
		[]string{"result"},
	)
)

// RecordAdjustment counts a change to an item's available quantity.
func RecordAdjustment(delta int) {
	switch {
	case delta < 0:
		InventoryAdjustments.WithLabelValues("out").Add(float64(-delta))
	case delta > 0:
		InventoryAdjustments.WithLabelValues("in").Add(float64(delta))
	}
}
