package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_scans_total",
			Help: "Total number of schedule scans by outcome",
		},
		[]string{"outcome"},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "notification_scan_duration_seconds",
			Help: "Duration of a schedule scan in seconds",
		},
	)

	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatches_total",
			Help: "Notifications handled by the dispatcher by channel and status",
		},
		[]string{"channel", "status"},
	)

	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notification_publish_duration_seconds",
			Help: "Time spent writing a notification to the queue",
		},
		[]string{"topic"},
	)

	WorkerDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_worker_deliveries_total",
			Help: "Worker delivery attempts by channel and outcome (ok, retry, dlq, bad_message)",
		},
		[]string{"channel", "outcome"},
	)

	WorkerDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notification_worker_delivery_duration_seconds",
			Help: "Time to deliver a notification through its channel",
		},
		[]string{"channel"},
	)
)
