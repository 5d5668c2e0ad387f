package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var CleanupItemsDeleted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sitesweep_cleanup_items_deleted_total",
		Help: "Number of rows deleted per cleanup subtask.",
	},
	[]string{"subtask"},
)

var CleanupItemsSkipped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sitesweep_cleanup_items_skipped_total",
		Help: "Number of items a cleanup subtask left alone on purpose.",
	},
	[]string{"subtask"},
)

var CleanupBytesFreed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sitesweep_cleanup_bytes_freed_total",
		Help: "Estimated bytes reclaimed per cleanup subtask.",
	},
	[]string{"subtask"},
)

var CleanupTaskRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sitesweep_cleanup_task_runs_total",
		Help: "Cleanup task executions by task and outcome.",
	},
	[]string{"task", "status"},
)

var CleanupTaskDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "sitesweep_cleanup_task_duration_seconds",
		Buckets: []float64{
			0.5,
			1,
			5,
			15,
			30,
			60,
			120,
			300,
		},
	},
	[]string{"subtask"},
)

var LockContention = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sitesweep_lock_contention_total",
		Help: "Lock acquisition attempts rejected because the lock was held.",
	},
	[]string{"lock"},
)

var RateLimitEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sitesweep_rate_limit_events_total",
		Help: "Rate limiter decisions by state.",
	},
	[]string{"state"},
)

var TotalRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sitesweep_http_requests_total",
		Help: "Number of HTTP requests.",
	},
	[]string{"path", "code", "method"},
)

var HttpDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "sitesweep_http_request_duration_seconds",
		Buckets: []float64{
			0.1,
			0.25,
			0.5,
			1,
			3,
			5,
			10,
		},
	},
	[]string{"path", "code", "method"},
)

func RegisterAll() {
	prometheus.MustRegister(CleanupItemsDeleted)
	prometheus.MustRegister(CleanupItemsSkipped)
	prometheus.MustRegister(CleanupBytesFreed)
	prometheus.MustRegister(CleanupTaskRuns)
	prometheus.MustRegister(LockContention)
	prometheus.MustRegister(RateLimitEvents)
	prometheus.MustRegister(TotalRequests)
}
