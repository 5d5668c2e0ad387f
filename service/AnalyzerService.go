package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shaj13/libcache"
	_ "github.com/shaj13/libcache/lru"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/repository"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
)

const statsCacheTTL = 5 * time.Minute

// Average on-disk row sizes used to estimate reclaimable space. These are
// deliberately rough; OPTIMIZE TABLE is the only exact answer and the
// estimate only feeds a report.
var avgRowSizeBytes = map[view.BloatType]int64{
	view.BloatRevisions:           2048,
	view.BloatAutoDrafts:          1024,
	view.BloatTrashedPosts:        2048,
	view.BloatSpamComments:        512,
	view.BloatTrashedComments:     512,
	view.BloatExpiredTransients:   1024,
	view.BloatOrphanedPostmeta:    256,
	view.BloatOrphanedCommentmeta: 256,
	view.BloatOrphanedTermmeta:    256,
	view.BloatOrphanedUsermeta:    256,
}

// AnalyzerService produces a read-only picture of database bloat. It never
// deletes anything, so it is safe to call regardless of safe mode.
type AnalyzerService interface {
	GetDatabaseStats(ctx context.Context) (*view.DatabaseStats, error)
	GetBloatSummary(ctx context.Context) (view.BloatSummary, error)
	GetTableSizes(ctx context.Context) ([]view.TableSize, error)
}

type analyzerServiceImpl struct {
	statsRepo        repository.StatsRepository
	revisionsRepo    repository.RevisionsRepository
	transientsRepo   repository.TransientsRepository
	orphanedDataRepo repository.OrphanedDataRepository
	trashRepo        repository.TrashRepository
	cache            libcache.Cache
}

func NewAnalyzerService(
	statsRepo repository.StatsRepository,
	revisionsRepo repository.RevisionsRepository,
	transientsRepo repository.TransientsRepository,
	orphanedDataRepo repository.OrphanedDataRepository,
	trashRepo repository.TrashRepository,
) AnalyzerService {
	cache := libcache.LRU.New(32)
	cache.RegisterOnExpired(func(key, _ interface{}) {
		cache.Delete(key)
	})
	return &analyzerServiceImpl{
		statsRepo:        statsRepo,
		revisionsRepo:    revisionsRepo,
		transientsRepo:   transientsRepo,
		orphanedDataRepo: orphanedDataRepo,
		trashRepo:        trashRepo,
		cache:            cache,
	}
}

func (s *analyzerServiceImpl) GetDatabaseStats(ctx context.Context) (*view.DatabaseStats, error) {
	const cacheKey = "database_stats"
	if v, ok := s.cache.Load(cacheKey); ok {
		stats := v.(view.DatabaseStats)
		return &stats, nil
	}

	databaseSize, err := s.statsRepo.GetDatabaseSize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read database size: %w", err)
	}
	totalOverhead, err := s.statsRepo.GetTotalOverhead(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read total overhead: %w", err)
	}
	tableSizes, err := s.GetTableSizes(ctx)
	if err != nil {
		return nil, err
	}
	bloat, err := s.GetBloatSummary(ctx)
	if err != nil {
		return nil, err
	}

	stats := view.DatabaseStats{
		DatabaseSize:              databaseSize,
		TotalOverhead:             totalOverhead,
		TableSizes:                tableSizes,
		Bloat:                     bloat,
		EstimatedReclaimableSpace: estimateReclaimableSpace(bloat, totalOverhead),
	}
	s.cache.StoreWithTTL(cacheKey, stats, statsCacheTTL)
	return &stats, nil
}

func (s *analyzerServiceImpl) GetTableSizes(ctx context.Context) ([]view.TableSize, error) {
	const cacheKey = "table_sizes"
	if v, ok := s.cache.Load(cacheKey); ok {
		return v.([]view.TableSize), nil
	}

	tables, err := s.statsRepo.GetPrefixedTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	sizes := make([]view.TableSize, 0, len(tables))
	for _, t := range tables {
		sizes = append(sizes, view.TableSize{
			TableName: t.Name,
			Engine:    t.Engine,
			RowCount:  t.RowCount,
			SizeBytes: t.SizeBytes,
			Overhead:  t.DataFree,
		})
	}
	s.cache.StoreWithTTL(cacheKey, sizes, statsCacheTTL)
	return sizes, nil
}

func (s *analyzerServiceImpl) GetBloatSummary(ctx context.Context) (view.BloatSummary, error) {
	const cacheKey = "bloat_summary"
	if v, ok := s.cache.Load(cacheKey); ok {
		return v.(view.BloatSummary), nil
	}

	summary := make(view.BloatSummary)

	revisions, err := s.revisionsRepo.CountRevisions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count revisions: %w", err)
	}
	summary[view.BloatRevisions] = revisions

	autoDrafts, err := s.trashRepo.CountAutoDrafts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count auto-drafts: %w", err)
	}
	summary[view.BloatAutoDrafts] = autoDrafts

	trashedPosts, err := s.trashRepo.CountTrashedPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count trashed posts: %w", err)
	}
	summary[view.BloatTrashedPosts] = trashedPosts

	spamComments, err := s.trashRepo.CountSpamComments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count spam comments: %w", err)
	}
	summary[view.BloatSpamComments] = spamComments

	trashedComments, err := s.trashRepo.CountTrashedComments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count trashed comments: %w", err)
	}
	summary[view.BloatTrashedComments] = trashedComments

	// Timeout rows are the cheap proxy for expired transients: a full
	// expiry scan would parse every timeout value.
	expiredTransients, err := s.transientsRepo.CountTimeoutRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count transient timeout rows: %w", err)
	}
	summary[view.BloatExpiredTransients] = expiredTransients

	for bloatType, metaType := range map[view.BloatType]view.MetaType{
		view.BloatOrphanedPostmeta:    view.MetaPost,
		view.BloatOrphanedCommentmeta: view.MetaComment,
		view.BloatOrphanedTermmeta:    view.MetaTerm,
		view.BloatOrphanedUsermeta:    view.MetaUser,
	} {
		count, err := s.orphanedDataRepo.CountOrphanedMeta(ctx, metaType)
		if err != nil {
			return nil, fmt.Errorf("failed to count orphaned %s meta: %w", metaType, err)
		}
		summary[bloatType] = count
	}

	s.cache.StoreWithTTL(cacheKey, summary, statsCacheTTL)
	return summary, nil
}

func estimateReclaimableSpace(bloat view.BloatSummary, totalOverhead int64) int64 {
	estimate := totalOverhead
	for bloatType, count := range bloat {
		estimate += avgRowSizeBytes[bloatType] * int64(count)
	}
	return estimate
}
