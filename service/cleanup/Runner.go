package cleanup

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/repository"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/service"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/service/cleanup/logger"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
)

const (
	taskName = "database cleanup"

	lockLeaseSeconds     = 120
	lockHeartbeatSeconds = 30

	safeModeEnvVar        = "SITESWEEP_SAFE_MODE"
	updateContextTimeout  = 10 * time.Second
	maxErrorMessageLength = 1000
)

// Runner is the cleanup orchestrator. Each invocation is time-boxed:
// subtasks run in a fixed order with a budget check between them, and an
// exhausted budget persists a resume point instead of failing. Safe mode
// is checked once, before any subtask runs, and turns the whole invocation
// into a preview.
type Runner struct {
	progressRepo    repository.ProgressRepository
	scanHistoryRepo repository.ScanHistoryRepository
	lockService     service.LockService
	monitoring      service.MonitoringService
	optimizer       service.OptimizerService
	subtasks        map[string]Subtask
	config          runConfig
	now             func() time.Time
}

func NewRunner(
	progressRepo repository.ProgressRepository,
	scanHistoryRepo repository.ScanHistoryRepository,
	lockService service.LockService,
	monitoring service.MonitoringService,
	optimizer service.OptimizerService,
	subtasks []Subtask,
	config runConfig,
) *Runner {
	byName := make(map[string]Subtask, len(subtasks))
	for _, t := range subtasks {
		byName[t.Name()] = t
	}
	return &Runner{
		progressRepo:    progressRepo,
		scanHistoryRepo: scanHistoryRepo,
		lockService:     lockService,
		monitoring:      monitoring,
		optimizer:       optimizer,
		subtasks:        byName,
		config:          config,
		now:             time.Now,
	}
}

// Run executes one cleanup invocation. A held lock or a failure to acquire
// it returns a nil result, not an error: another instance is doing the work.
func (r *Runner) Run(options view.CleanupOptions) (result *view.CleanupResult, err error) {
	runId := uuid.New().String()
	startedAt := r.now()
	budget := r.computeBudget(options)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runCtx = context.WithValue(runCtx, "taskName", taskName)
	runCtx = context.WithValue(runCtx, "runId", runId)

	defer func() {
		if p := recover(); p != nil {
			logger.Errorf(runCtx, "Cleanup task failed with panic: %v", p)
			r.monitoring.AddTaskRun(taskName, string(statusError))
			err = fmt.Errorf("cleanup task failed with panic: %v", p)
		}
	}()

	logger.Infof(runCtx, "Starting cleanup task, time budget %v", budget)

	if !r.acquireLock(runCtx, cancel) {
		r.monitoring.AddTaskRun(taskName, string(statusSkipped))
		return nil, nil
	}
	defer r.releaseLock(runCtx)

	enabled := r.enabledSubtasks(options)

	if r.isSafeMode(options) {
		return r.runPreview(runCtx, enabled, startedAt)
	}

	return r.runCleanup(runCtx, enabled, options, startedAt, budget)
}

// computeBudget returns the wall-clock time the subtask loop may consume:
// the lesser of the configured hint and the fixed default, minus a safety
// buffer so progress persistence fits inside the window.
func (r *Runner) computeBudget(options view.CleanupOptions) time.Duration {
	hint := r.config.executionTimeHint
	if options.TimeBudgetSeconds != nil && *options.TimeBudgetSeconds > 0 {
		hint = *options.TimeBudgetSeconds
	}
	seconds := r.config.defaultBudget
	if hint > 0 && hint < seconds {
		seconds = hint
	}
	seconds -= r.config.budgetSafetyBuffer
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func (r *Runner) isSafeMode(options view.CleanupOptions) bool {
	if options.SafeMode != nil {
		return *options.SafeMode
	}
	if r.config.safeMode {
		return true
	}
	return os.Getenv(safeModeEnvVar) != ""
}

func (r *Runner) enabledSubtasks(options view.CleanupOptions) []Subtask {
	var enabled []Subtask
	for _, name := range SubtaskOrder {
		subtask, known := r.subtasks[name]
		if !known {
			continue
		}
		on := true
		if r.config.taskEnabled != nil {
			on = r.config.taskEnabled[name]
		}
		if override, ok := options.Tasks[name]; ok {
			on = override
		}
		if !on {
			continue
		}
		enabled = append(enabled, subtask)
	}
	return enabled
}

func (r *Runner) runPreview(ctx context.Context, subtasks []Subtask, startedAt time.Time) (*view.CleanupResult, error) {
	result := &view.CleanupResult{
		Success:     true,
		PreviewOnly: true,
		Preview:     make(map[string]int),
	}
	for _, subtask := range subtasks {
		count, err := subtask.Preview(ctx)
		if err != nil {
			logger.Warnf(ctx, "Preview of %s failed: %v", subtask.Name(), err)
			if result.Errors == nil {
				result.Errors = make(map[string]string)
			}
			result.Errors[subtask.Name()] = formatErrorMessage(err.Error())
			continue
		}
		result.Preview[subtask.Name()] = count
		result.WouldDelete += count
	}
	result.ElapsedTime = r.now().Sub(startedAt).Seconds()
	r.monitoring.AddTaskRun(taskName, string(statusPreview))
	logger.Infof(ctx, "Safe mode preview complete: %d items would be deleted", result.WouldDelete)
	return result, nil
}

func (r *Runner) runCleanup(ctx context.Context, subtasks []Subtask, options view.CleanupOptions, startedAt time.Time, budget time.Duration) (*view.CleanupResult, error) {
	progress := r.loadProgress(ctx)

	result := &view.CleanupResult{
		ItemsCleaned: progress.TotalItems,
		BytesFreed:   progress.TotalBytes,
		Errors:       progress.Errors,
	}
	if result.Errors == nil {
		result.Errors = make(map[string]string)
	}

	for _, subtask := range subtasks {
		if progress.IsCompleted(subtask.Name()) {
			logger.Debugf(ctx, "Skipping %s: already completed in a previous invocation", subtask.Name())
			continue
		}
		// The budget check happens only here, at subtask boundaries. A
		// started subtask always runs to completion or failure.
		if r.now().Sub(startedAt) >= budget {
			return r.interrupt(ctx, progress, result, startedAt)
		}

		r.runSubtask(ctx, subtask, progress, result)
	}

	if r.optimizationEnabled(options) && len(result.Errors) == 0 && r.now().Sub(startedAt) < budget {
		r.runOptimization(ctx)
	}

	updateCtx, updateCancel := r.contextForUpdate(ctx)
	defer updateCancel()
	if err := r.progressRepo.DeleteProgress(updateCtx); err != nil {
		logger.Errorf(ctx, "Failed to clear task progress: %v", err)
	}

	result.Success = len(result.Errors) == 0
	result.ElapsedTime = r.now().Sub(startedAt).Seconds()
	r.recordRun(ctx, result, statusOf(result))
	logger.Infof(ctx, "Cleanup task finished: %d items, %d bytes, %d errors",
		result.ItemsCleaned, result.BytesFreed, len(result.Errors))
	return result, nil
}

func (r *Runner) runSubtask(ctx context.Context, subtask Subtask, progress *view.TaskProgress, result *view.CleanupResult) {
	subtaskStart := r.now()
	subtaskResult, err := runRecovered(ctx, subtask)
	r.monitoring.AddTaskDuration(subtask.Name(), r.now().Sub(subtaskStart))

	result.ItemsCleaned += subtaskResult.Items
	result.BytesFreed += subtaskResult.Bytes
	progress.TotalItems += subtaskResult.Items
	progress.TotalBytes += subtaskResult.Bytes

	if err != nil {
		logger.Warnf(ctx, "Subtask %s failed: %v", subtask.Name(), err)
		result.Errors[subtask.Name()] = formatErrorMessage(err.Error())
		progress.Errors = result.Errors
	}
	// Failed subtasks count as completed too: retrying them within the
	// same progress cycle would repeat the same failure.
	progress.CompletedTasks = append(progress.CompletedTasks, subtask.Name())

	r.monitoring.AddItemsDeleted(subtask.Name(), subtaskResult.Items)
	r.monitoring.AddBytesFreed(subtask.Name(), subtaskResult.Bytes)
	logger.Debugf(ctx, "Subtask %s deleted %d items (%d bytes)", subtask.Name(), subtaskResult.Items, subtaskResult.Bytes)
}

func runRecovered(ctx context.Context, subtask Subtask) (result SubtaskResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("subtask panicked: %v", p)
		}
	}()
	return subtask.Run(ctx)
}

func (r *Runner) interrupt(ctx context.Context, progress *view.TaskProgress, result *view.CleanupResult, startedAt time.Time) (*view.CleanupResult, error) {
	progress.InterruptedAt = r.now()
	updateCtx, updateCancel := r.contextForUpdate(ctx)
	defer updateCancel()
	if err := r.progressRepo.SaveProgress(updateCtx, progress); err != nil {
		logger.Errorf(ctx, "Failed to persist task progress: %v", err)
		return result, fmt.Errorf("failed to persist task progress: %w", err)
	}

	result.Success = true
	result.WasInterrupted = true
	result.ElapsedTime = r.now().Sub(startedAt).Seconds()
	r.recordRun(ctx, result, statusInterrupted)
	logger.Infof(ctx, "Time budget exhausted after %d subtasks, progress persisted for next invocation",
		len(progress.CompletedTasks))
	return result, nil
}

func (r *Runner) runOptimization(ctx context.Context) {
	logger.Debug(ctx, "Running table optimization")
	optimized, err := r.optimizer.OptimizeAllTables(ctx, func(current, total int, tableName string) {
		logger.Tracef(ctx, "Optimizing table %d/%d: %s", current, total, tableName)
	})
	if err != nil {
		logger.Warnf(ctx, "Table optimization failed: %v", err)
		return
	}
	logger.Infof(ctx, "Optimized %d tables, reclaimed %d bytes", optimized.Optimized, optimized.BytesSaved)
}

func (r *Runner) loadProgress(ctx context.Context) *view.TaskProgress {
	progress, err := r.progressRepo.GetProgress(ctx)
	if err != nil {
		logger.Warnf(ctx, "Failed to load task progress, starting fresh: %v", err)
	}
	if progress == nil {
		progress = &view.TaskProgress{}
	}
	return progress
}

func (r *Runner) acquireLock(ctx context.Context, cancel context.CancelFunc) bool {
	lockOptions := service.LockOptions{
		LeaseSeconds:             lockLeaseSeconds,
		HeartbeatIntervalSeconds: lockHeartbeatSeconds,
		NotifyOnLoss:             true,
	}

	acquired, lockLostCh, err := r.lockService.AcquireLock(ctx, r.config.lockName, lockOptions)
	if err != nil {
		logger.Errorf(ctx, "Failed to acquire lock: %v", err)
		return false
	}
	if !acquired {
		logger.Info(ctx, "Cleanup skipped - lock is held by another instance")
		return false
	}

	if lockLostCh != nil {
		go func() {
			event, ok := <-lockLostCh
			if !ok {
				return
			}
			logger.Warnf(ctx, "Lock %s lost: %s. Canceling cleanup task", event.LockName, event.Reason)
			cancel()
		}()
	}
	return true
}

func (r *Runner) releaseLock(ctx context.Context) {
	releaseCtx, releaseCancel := r.contextForUpdate(ctx)
	defer releaseCancel()
	if err := r.lockService.ReleaseLock(releaseCtx, r.config.lockName); err != nil {
		logger.Errorf(ctx, "Failed to release lock: %v", err)
	}
}

func (r *Runner) optimizationEnabled(options view.CleanupOptions) bool {
	if options.OptimizeTables != nil {
		return *options.OptimizeTables
	}
	return r.config.optimizeTables
}

// contextForUpdate returns a context usable for persistence even after the
// run context was canceled.
func (r *Runner) contextForUpdate(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() != nil {
		return context.WithTimeout(context.Background(), updateContextTimeout)
	}
	return ctx, func() {}
}

func (r *Runner) recordRun(ctx context.Context, result *view.CleanupResult, status runStatus) {
	r.monitoring.AddTaskRun(taskName, string(status))

	var details strings.Builder
	details.WriteString(string(status))
	for name, message := range result.Errors {
		details.WriteString("; ")
		details.WriteString(name)
		details.WriteString(": ")
		details.WriteString(message)
	}
	storeCtx, storeCancel := r.contextForUpdate(ctx)
	defer storeCancel()
	err := r.scanHistoryRepo.StoreEntry(storeCtx, entity.ScanHistoryEntity{
		ScanType:     taskName,
		ItemsFound:   result.ItemsCleaned,
		ItemsCleaned: result.ItemsCleaned,
		BytesFreed:   result.BytesFreed,
		Details:      formatErrorMessage(details.String()),
		CreatedAt:    r.now(),
	})
	if err != nil {
		logger.Errorf(ctx, "Failed to record cleanup run in scan history: %v", err)
	}
}

func statusOf(result *view.CleanupResult) runStatus {
	if len(result.Errors) > 0 {
		return statusError
	}
	return statusComplete
}

func formatErrorMessage(message string) string {
	runes := []rune(message)
	if len(runes) > maxErrorMessageLength {
		return string(runes[:maxErrorMessageLength-3]) + "..."
	}
	return message
}
