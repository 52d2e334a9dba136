package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	ReadingsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "envmonitor_readings_ingested_total",
			Help: "Total number of sensor readings received from the broker",
		},
	)

	PayloadParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "envmonitor_payload_parse_errors_total",
			Help: "Total number of inbound payloads dropped as unparseable",
		},
	)

	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envmonitor_alerts_raised_total",
			Help: "Total number of alerts produced by threshold evaluation",
		},
		[]string{"alert_type"},
	)

	// Store metrics
	StoreWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envmonitor_store_write_errors_total",
			Help: "Total number of failed store writes",
		},
		[]string{"table"},
	)

	RowsPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envmonitor_rows_purged_total",
			Help: "Total number of rows deleted by the retention sweep",
		},
		[]string{"table"},
	)

	// Intake notification metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envmonitor_alert_notifications_total",
			Help: "Total number of alert intake notifications by outcome",
		},
		[]string{"status"}, // status: ok, error, breaker_open
	)

	// Fan-out metrics
	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "envmonitor_live_subscribers",
			Help: "Number of currently connected WebSocket subscribers",
		},
	)

	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "envmonitor_broadcasts_total",
			Help: "Total number of alert broadcasts",
		},
	)

	BroadcastSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "envmonitor_broadcast_send_failures_total",
			Help: "Total number of subscribers dropped during a broadcast pass",
		},
	)
)
