// Package metrics holds the Prometheus collectors for event delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery results recorded in DeliveriesTotal.
const (
	ResultSent     = "sent"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
	ResultConfigKO = "config_error"
)

// Backup run results recorded in BackupRunsTotal.
const (
	BackupOK      = "ok"
	BackupPartial = "partial"
	BackupFailed  = "failed"
)

var (
	// EmitsTotal counts envelopes accepted by the dispatcher.
	EmitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "switchboard_emits_total",
			Help: "Total number of events accepted for fan-out",
		},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_deliveries_total",
			Help: "Total number of per-channel delivery attempts by result",
		},
		[]string{"channel", "result"},
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchboard_delivery_duration_seconds",
			Help:    "Duration of transport sends in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	ConfigWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_config_writes_total",
			Help: "Total number of channel config writes by result",
		},
		[]string{"channel", "result"},
	)

	// WebsocketClients is the number of currently attached broadcast sockets.
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchboard_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)

	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_channel_panics_total",
			Help: "Total number of panics recovered from channel deliveries",
		},
		[]string{"channel"},
	)

	BackupRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_backup_runs_total",
			Help: "Total number of config backup runs by result",
		},
		[]string{"result"},
	)

	BackupWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_backup_destination_writes_total",
			Help: "Total number of backup writes per destination by result",
		},
		[]string{"destination", "result"},
	)

	BackupRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchboard_backup_records",
			Help: "Number of channel configs in the last export",
		},
	)

	// BackupLastSuccess is the unix time of the last run every destination accepted.
	BackupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchboard_backup_last_success_timestamp_seconds",
			Help: "Unix time of the last fully successful backup",
		},
	)
)
