// Package metrics exposes Prometheus counters and gauges for the admin
// protocol, slop queue depth, and partition transfers (C10), grounded on
// coordinator/internal/metrics/prometheus.go's promauto wiring.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every metric the node exports.
type Metrics struct {
	AdminRequestsTotal   *prometheus.CounterVec
	AdminRequestDuration *prometheus.HistogramVec
	AdminRequestErrors   *prometheus.CounterVec

	SlopQueueDepth *prometheus.GaugeVec

	PartitionTransferDuration *prometheus.HistogramVec
	PartitionTransfersTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers every metric against the default
// registry.
func NewMetrics() *Metrics {
	return &Metrics{
		AdminRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_admin_requests_total",
				Help: "Total number of admin protocol requests processed, by opcode and result.",
			},
			[]string{"opcode", "result"},
		),
		AdminRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ring_admin_request_duration_seconds",
				Help:    "Duration of admin protocol request handling.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"opcode"},
		),
		AdminRequestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_admin_request_errors_total",
				Help: "Total number of admin protocol requests that returned a non-OK wire code.",
			},
			[]string{"opcode", "error_code"},
		),
		SlopQueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ring_slop_queue_depth",
				Help: "Current number of queued slop entries, by store.",
			},
			[]string{"store"},
		),
		PartitionTransferDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ring_partition_transfer_duration_seconds",
				Help:    "Duration of a PUT_PARTITION_AS_STREAM transfer.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"store"},
		),
		PartitionTransfersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_partition_transfers_total",
				Help: "Total number of partition transfers, by store and result.",
			},
			[]string{"store", "result"},
		),
	}
}

// RecordAdminRequest records one admin protocol call and its outcome.
func (m *Metrics) RecordAdminRequest(opcode, result string, durationSeconds float64) {
	m.AdminRequestsTotal.WithLabelValues(opcode, result).Inc()
	m.AdminRequestDuration.WithLabelValues(opcode).Observe(durationSeconds)
}

// RecordAdminError records a non-OK wire response.
func (m *Metrics) RecordAdminError(opcode, errorCode string) {
	m.AdminRequestErrors.WithLabelValues(opcode, errorCode).Inc()
}

// SetSlopQueueDepth reports the current slop queue size for store.
func (m *Metrics) SetSlopQueueDepth(store string, depth int) {
	m.SlopQueueDepth.WithLabelValues(store).Set(float64(depth))
}

// RecordPartitionTransfer records one PUT_PARTITION_AS_STREAM transfer.
func (m *Metrics) RecordPartitionTransfer(store, result string, durationSeconds float64) {
	m.PartitionTransfersTotal.WithLabelValues(store, result).Inc()
	m.PartitionTransferDuration.WithLabelValues(store).Observe(durationSeconds)
}

// Handler returns the promhttp handler to mount at the configured metrics
// path.
func Handler() http.Handler {
	return promhttp.Handler()
}
