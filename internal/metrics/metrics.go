// Package metrics provides Prometheus metrics for backup and restore passes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TaskOutcomes counts dump and restore tasks by result.
	TaskOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pgbackuper_tasks_total",
		Help: "Total number of per-database dump and restore tasks",
	}, []string{"kind", "status"})

	// PassDuration tracks how long whole passes take.
	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pgbackuper_pass_duration_seconds",
		Help:    "Duration of backup and restore passes in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
	}, []string{"kind"})

	// DumpSize tracks the size of the last dump per database.
	DumpSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pgbackuper_dump_size_bytes",
		Help: "Size of the last dump file in bytes",
	}, []string{"database"})

	// Notifications counts notification deliveries by result.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pgbackuper_notifications_total",
		Help: "Total number of notification attempts",
	}, []string{"status"})

	// LastBackupTimestamp tracks when the last backup pass without failures finished.
	LastBackupTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pgbackuper_last_success_timestamp",
		Help: "Unix timestamp of the last backup pass without failures",
	})
)

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordTask records the result of one dump or restore task.
func RecordTask(kind string, success bool) {
	TaskOutcomes.WithLabelValues(kind, status(success)).Inc()
}

// RecordNotification records a notification attempt.
func RecordNotification(success bool) {
	Notifications.WithLabelValues(status(success)).Inc()
}
