package cleanup

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/config"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/repository"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/service"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
	log "github.com/sirupsen/logrus"
)

const (
	sharedLockName = "cleanup_task_lock"

	// Default and buffer for the per-invocation time budget. These bound
	// how long a single run may hold the shared lock before checkpointing.
	defaultBudgetSeconds      = 30
	budgetSafetyBufferSeconds = 2
)

// CleanupService owns the scheduled cleanup task: it builds the subtask
// list from configuration, registers the cron schedule, and exposes the
// manual trigger used by the REST surface.
type CleanupService interface {
	Start() error
	Stop()
	// RunNow triggers one cleanup invocation with the given overrides.
	// Returns (nil, nil) when the lock is held elsewhere.
	RunNow(options view.CleanupOptions) (*view.CleanupResult, error)
	ListScanHistory(ctx context.Context, limit int) ([]view.ScanHistoryEntry, error)
}

type cleanupServiceImpl struct {
	runner          *Runner
	scanHistoryRepo repository.ScanHistoryRepository
	schedule        string
	cron            *cron.Cron
}

func NewCleanupService(
	cfg config.CleanupConfig,
	progressRepo repository.ProgressRepository,
	scanHistoryRepo repository.ScanHistoryRepository,
	lockService service.LockService,
	monitoring service.MonitoringService,
	revisionsService service.RevisionsService,
	transientsService service.TransientsService,
	orphanedDataService service.OrphanedDataService,
	trashService service.TrashService,
	optimizerService service.OptimizerService,
	analyzerService service.AnalyzerService,
) CleanupService {
	// Every subtask is constructed regardless of configuration: the
	// config only sets the default enablement, so a per-invocation
	// override can switch a disabled subtask on.
	subtasks := []Subtask{
		NewRevisionsSubtask(revisionsService, cfg.RevisionsToKeep, cfg.RevisionsForce),
		NewTransientsSubtask(transientsService),
		NewOrphanedDataSubtask(orphanedDataService),
		NewSpamCommentsSubtask(trashService, analyzerService),
		NewTrashSubtask(trashService, analyzerService, cfg.AutoCleanTrashDays),
		NewAutoDraftsSubtask(trashService, analyzerService),
	}

	runner := NewRunner(progressRepo, scanHistoryRepo, lockService, monitoring, optimizerService, subtasks, runConfig{
		lockName:           sharedLockName,
		defaultBudget:      defaultBudgetSeconds,
		budgetSafetyBuffer: budgetSafetyBufferSeconds,
		executionTimeHint:  cfg.ExecutionTimeHintSeconds,
		optimizeTables:     cfg.OptimizeTables,
		safeMode:           cfg.SafeMode,
		taskEnabled: map[string]bool{
			SubtaskRevisions:    cfg.RevisionsEnabled,
			SubtaskTransients:   cfg.TransientsEnabled,
			SubtaskOrphanedData: cfg.OrphanedDataEnabled,
			SubtaskSpamComments: cfg.SpamCommentsEnabled,
			SubtaskTrash:        cfg.TrashEnabled,
			SubtaskAutoDrafts:   cfg.AutoDraftsEnabled,
		},
	})

	return &cleanupServiceImpl{
		runner:          runner,
		scanHistoryRepo: scanHistoryRepo,
		schedule:        cfg.Schedule,
		cron:            cron.New(),
	}
}

func (c *cleanupServiceImpl) Start() error {
	_, err := c.cron.AddFunc(c.schedule, func() {
		if _, err := c.runner.Run(view.CleanupOptions{}); err != nil {
			log.Errorf("Scheduled cleanup run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	c.cron.Start()
	log.Infof("Cleanup task scheduled with cron expression '%s'", c.schedule)
	return nil
}

func (c *cleanupServiceImpl) Stop() {
	c.cron.Stop()
}

func (c *cleanupServiceImpl) RunNow(options view.CleanupOptions) (*view.CleanupResult, error) {
	return c.runner.Run(options)
}

func (c *cleanupServiceImpl) ListScanHistory(ctx context.Context, limit int) ([]view.ScanHistoryEntry, error) {
	entries, err := c.scanHistoryRepo.ListEntries(ctx, limit)
	if err != nil {
		return nil, err
	}
	views := make([]view.ScanHistoryEntry, 0, len(entries))
	for _, e := range entries {
		views = append(views, view.ScanHistoryEntry{
			ScanType:     e.ScanType,
			ItemsFound:   e.ItemsFound,
			ItemsCleaned: e.ItemsCleaned,
			BytesFreed:   e.BytesFreed,
			Details:      e.Details,
			CreatedAt:    e.CreatedAt,
		})
	}
	return views, nil
}
