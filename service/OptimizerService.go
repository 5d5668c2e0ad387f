package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/exception"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/repository"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
	log "github.com/sirupsen/logrus"
)

// largeTableThresholdBytes marks tables whose optimization will lock rows
// long enough to matter on a live site.
const largeTableThresholdBytes = 100 * 1024 * 1024

// repairableEngines lists the storage engines REPAIR TABLE supports.
// InnoDB recovers through its redo log instead and rejects REPAIR.
var repairableEngines = map[string]bool{
	"myisam": true,
	"aria":   true,
	"csv":    true,
}

// rebuildEngines lists the engines OPTIMIZE TABLE can rebuild. Engines
// without rebuild support (MEMORY, CSV) get ANALYZE TABLE instead, which
// refreshes index statistics without touching the data.
var rebuildEngines = map[string]bool{
	"innodb":  true,
	"myisam":  true,
	"aria":    true,
	"archive": true,
}

type OptimizerService interface {
	// ListOptimizableTables reports only tables with nonzero reclaimable
	// overhead.
	ListOptimizableTables(ctx context.Context) ([]view.TableOptimizationInfo, error)
	// OptimizeTable defragments one table. InnoDB tables are rebuilt via
	// OPTIMIZE (which MySQL maps to recreate+analyze); the saved bytes are
	// measured from information_schema before and after.
	OptimizeTable(ctx context.Context, tableName string) (*view.OptimizationResult, error)
	OptimizeAllTables(ctx context.Context, progress view.OptimizeProgressCallback) (*view.BulkOptimizationResult, error)
	AnalyzeTable(ctx context.Context, tableName string) error
	RepairTable(ctx context.Context, tableName string) (*view.OptimizationResult, error)
}

type optimizerServiceImpl struct {
	statsRepo  repository.StatsRepository
	tablesRepo repository.TablesRepository
}

func NewOptimizerService(statsRepo repository.StatsRepository, tablesRepo repository.TablesRepository) OptimizerService {
	return &optimizerServiceImpl{
		statsRepo:  statsRepo,
		tablesRepo: tablesRepo,
	}
}

func (s *optimizerServiceImpl) ListOptimizableTables(ctx context.Context) ([]view.TableOptimizationInfo, error) {
	tables, err := s.statsRepo.GetPrefixedTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	infos := make([]view.TableOptimizationInfo, 0, len(tables))
	for _, t := range tables {
		if t.DataFree <= 0 {
			continue
		}
		infos = append(infos, view.TableOptimizationInfo{
			Name:      t.Name,
			Engine:    t.Engine,
			SizeBytes: t.SizeBytes,
			Overhead:  t.DataFree,
			IsLarge:   t.SizeBytes >= largeTableThresholdBytes,
		})
	}
	return infos, nil
}

func (s *optimizerServiceImpl) OptimizeTable(ctx context.Context, tableName string) (*view.OptimizationResult, error) {
	before, err := s.statsRepo.GetTableInfo(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read table info for %s: %w", tableName, err)
	}
	if before == nil {
		return nil, fmt.Errorf("table %s not found", tableName)
	}

	result := &view.OptimizationResult{TableName: tableName, SizeBefore: before.SizeBytes}
	if err := s.runMaintenance(ctx, tableName, before.Engine); err != nil {
		result.Message = err.Error()
		return result, err
	}

	after, err := s.statsRepo.GetTableInfo(ctx, tableName)
	if err != nil || after == nil {
		// The optimization itself succeeded; report it with the stale size.
		log.Warnf("Failed to re-read size of %s after optimization: %v", tableName, err)
		result.Success = true
		result.SizeAfter = before.SizeBytes
		return result, nil
	}

	result.Success = true
	result.SizeAfter = after.SizeBytes
	if saved := before.SizeBytes - after.SizeBytes; saved > 0 {
		result.BytesSaved = saved
	}
	return result, nil
}

// OptimizeAllTables takes its before sizes from the table listing and
// re-reads all after sizes in one batched catalog query, so a bulk run
// costs two information_schema round trips regardless of table count.
func (s *optimizerServiceImpl) OptimizeAllTables(ctx context.Context, progress view.OptimizeProgressCallback) (*view.BulkOptimizationResult, error) {
	tables, err := s.statsRepo.GetPrefixedTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	result := &view.BulkOptimizationResult{}
	var maintained []string
	for i, t := range tables {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if progress != nil {
			progress(i+1, len(tables), t.Name)
		}
		entry := view.OptimizationResult{TableName: t.Name, SizeBefore: t.SizeBytes, SizeAfter: t.SizeBytes}
		if err := s.runMaintenance(ctx, t.Name, t.Engine); err != nil {
			log.Errorf("Failed to optimize table %s: %v", t.Name, err)
			entry.Message = err.Error()
			result.Tables = append(result.Tables, entry)
			result.Failed++
			continue
		}
		entry.Success = true
		result.Tables = append(result.Tables, entry)
		result.Optimized++
		maintained = append(maintained, t.Name)
	}

	sizesAfter, err := s.statsRepo.GetTableSizes(ctx, maintained)
	if err != nil {
		// The maintenance itself succeeded; report it with the stale sizes.
		log.Warnf("Failed to re-read table sizes after optimization: %v", err)
		return result, nil
	}
	for i := range result.Tables {
		entry := &result.Tables[i]
		after, ok := sizesAfter[entry.TableName]
		if !entry.Success || !ok {
			continue
		}
		entry.SizeAfter = after
		if saved := entry.SizeBefore - after; saved > 0 {
			entry.BytesSaved = saved
			result.BytesSaved += saved
		}
	}
	return result, nil
}

func (s *optimizerServiceImpl) AnalyzeTable(ctx context.Context, tableName string) error {
	return s.tablesRepo.AnalyzeTable(ctx, tableName)
}

func (s *optimizerServiceImpl) runMaintenance(ctx context.Context, tableName string, engine string) error {
	if rebuildEngines[strings.ToLower(engine)] {
		return s.tablesRepo.OptimizeTable(ctx, tableName)
	}
	return s.tablesRepo.AnalyzeTable(ctx, tableName)
}

func (s *optimizerServiceImpl) RepairTable(ctx context.Context, tableName string) (*view.OptimizationResult, error) {
	info, err := s.statsRepo.GetTableInfo(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read table info for %s: %w", tableName, err)
	}
	if info == nil {
		return nil, fmt.Errorf("table %s not found", tableName)
	}
	if !repairableEngines[strings.ToLower(info.Engine)] {
		return nil, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.RepairNotSupported,
			Message: exception.RepairNotSupportedMsg,
			Params:  map[string]interface{}{"engine": info.Engine},
		}
	}

	result := &view.OptimizationResult{TableName: tableName, SizeBefore: info.SizeBytes, SizeAfter: info.SizeBytes}
	if err := s.tablesRepo.RepairTable(ctx, tableName); err != nil {
		result.Message = err.Error()
		return result, err
	}
	result.Success = true
	return result, nil
}
