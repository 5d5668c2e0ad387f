package service

import (
	"time"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/metrics"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/utils"
	log "github.com/sirupsen/logrus"
)

// MonitoringService records operational events. All methods are
// fire-and-forget so a slow metrics backend never blocks cleanup work.
type MonitoringService interface {
	AddTaskRun(task string, status string)
	AddItemsDeleted(task string, count int)
	AddItemsSkipped(task string, count int)
	AddBytesFreed(task string, bytes int64)
	AddTaskDuration(task string, elapsed time.Duration)
	AddLockContention(lockName string)
	AddRateLimitEvent(actor string, allowed bool)
}

func NewMonitoringService() MonitoringService {
	return &monitoringServiceImpl{}
}

type monitoringServiceImpl struct{}

func (m *monitoringServiceImpl) AddTaskRun(task string, status string) {
	utils.SafeAsync(func() {
		metrics.CleanupTaskRuns.WithLabelValues(task, status).Inc()
	})
}

func (m *monitoringServiceImpl) AddItemsDeleted(task string, count int) {
	if count <= 0 {
		return
	}
	utils.SafeAsync(func() {
		metrics.CleanupItemsDeleted.WithLabelValues(task).Add(float64(count))
	})
}

func (m *monitoringServiceImpl) AddItemsSkipped(task string, count int) {
	if count <= 0 {
		return
	}
	utils.SafeAsync(func() {
		metrics.CleanupItemsSkipped.WithLabelValues(task).Add(float64(count))
	})
}

func (m *monitoringServiceImpl) AddBytesFreed(task string, bytes int64) {
	if bytes <= 0 {
		return
	}
	utils.SafeAsync(func() {
		metrics.CleanupBytesFreed.WithLabelValues(task).Add(float64(bytes))
	})
}

func (m *monitoringServiceImpl) AddTaskDuration(task string, elapsed time.Duration) {
	utils.SafeAsync(func() {
		metrics.CleanupTaskDuration.WithLabelValues(task).Observe(elapsed.Seconds())
	})
}

func (m *monitoringServiceImpl) AddLockContention(lockName string) {
	utils.SafeAsync(func() {
		metrics.LockContention.WithLabelValues(lockName).Inc()
		log.Debugf("Lock contention on %s", lockName)
	})
}

func (m *monitoringServiceImpl) AddRateLimitEvent(actor string, allowed bool) {
	utils.SafeAsync(func() {
		outcome := "allowed"
		if !allowed {
			outcome = "rejected"
		}
		metrics.RateLimitEvents.WithLabelValues(outcome).Inc()
	})
}
