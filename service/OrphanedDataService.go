package service

import (
	"context"
	"fmt"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/repository"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
	log "github.com/sirupsen/logrus"
)

const (
	orphanBatchSize = 1000
	// orphanCallCeiling caps the rows removed per call so one invocation
	// never monopolizes the task runner's time budget.
	orphanCallCeiling = 10000
)

// OrphanedDataService removes meta and relationship rows whose parent row
// is gone. Deletion happens in single-statement batches, so rows that gain
// a parent between fetch and delete are left alone.
type OrphanedDataService interface {
	CountOrphanedMeta(ctx context.Context, metaType view.MetaType) (int, error)
	DeleteOrphanedMeta(ctx context.Context, metaType view.MetaType) (*view.OrphanCleanupResult, error)
	CountOrphanedRelationships(ctx context.Context) (int, error)
	DeleteOrphanedRelationships(ctx context.Context) (*view.OrphanCleanupResult, error)
	DeleteAllOrphanedData(ctx context.Context) (*view.OrphanCleanupResult, error)
	// ListOrphanedData samples up to limit orphaned rows per table
	// without deleting anything.
	ListOrphanedData(ctx context.Context, limit int) (*view.OrphanedDataListing, error)
}

type orphanedDataServiceImpl struct {
	orphanedDataRepo repository.OrphanedDataRepository
}

func NewOrphanedDataService(orphanedDataRepo repository.OrphanedDataRepository) OrphanedDataService {
	return &orphanedDataServiceImpl{orphanedDataRepo: orphanedDataRepo}
}

func (s *orphanedDataServiceImpl) CountOrphanedMeta(ctx context.Context, metaType view.MetaType) (int, error) {
	return s.orphanedDataRepo.CountOrphanedMeta(ctx, metaType)
}

func (s *orphanedDataServiceImpl) CountOrphanedRelationships(ctx context.Context) (int, error) {
	return s.orphanedDataRepo.CountOrphanedRelationships(ctx)
}

func (s *orphanedDataServiceImpl) DeleteOrphanedMeta(ctx context.Context, metaType view.MetaType) (*view.OrphanCleanupResult, error) {
	result := &view.OrphanCleanupResult{}
	err := s.deleteInBatches(ctx, result, func(ctx context.Context) (int64, error) {
		return s.orphanedDataRepo.DeleteOrphanedMetaBatch(ctx, metaType, orphanBatchSize)
	})
	if err != nil {
		return result, fmt.Errorf("failed to delete orphaned %s: %w", metaType, err)
	}
	return result, nil
}

func (s *orphanedDataServiceImpl) DeleteOrphanedRelationships(ctx context.Context) (*view.OrphanCleanupResult, error) {
	result := &view.OrphanCleanupResult{}
	err := s.deleteInBatches(ctx, result, func(ctx context.Context) (int64, error) {
		return s.orphanedDataRepo.DeleteOrphanedRelationshipsByPostBatch(ctx, orphanBatchSize)
	})
	if err != nil {
		return result, fmt.Errorf("failed to delete relationships with missing posts: %w", err)
	}
	err = s.deleteInBatches(ctx, result, func(ctx context.Context) (int64, error) {
		return s.orphanedDataRepo.DeleteOrphanedRelationshipsByTermBatch(ctx, orphanBatchSize)
	})
	if err != nil {
		return result, fmt.Errorf("failed to delete relationships with missing terms: %w", err)
	}
	return result, nil
}

func (s *orphanedDataServiceImpl) DeleteAllOrphanedData(ctx context.Context) (*view.OrphanCleanupResult, error) {
	total := &view.OrphanCleanupResult{}
	for _, metaType := range []view.MetaType{view.MetaPost, view.MetaComment, view.MetaTerm, view.MetaUser} {
		result, err := s.DeleteOrphanedMeta(ctx, metaType)
		total.Deleted += result.Deleted
		if err != nil {
			return total, err
		}
	}
	result, err := s.DeleteOrphanedRelationships(ctx)
	total.Deleted += result.Deleted
	if err != nil {
		return total, err
	}
	return total, nil
}

func (s *orphanedDataServiceImpl) ListOrphanedData(ctx context.Context, limit int) (*view.OrphanedDataListing, error) {
	if limit <= 0 {
		limit = orphanBatchSize
	}
	listing := &view.OrphanedDataListing{Meta: make(map[view.MetaType][]int64)}
	for _, metaType := range []view.MetaType{view.MetaPost, view.MetaComment, view.MetaTerm, view.MetaUser} {
		ids, err := s.orphanedDataRepo.FindOrphanedMeta(ctx, metaType, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to find orphaned %s: %w", metaType, err)
		}
		if len(ids) > 0 {
			listing.Meta[metaType] = ids
		}
	}
	relationships, err := s.orphanedDataRepo.FindOrphanedRelationships(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned relationships: %w", err)
	}
	listing.Relationships = relationships
	return listing, nil
}

func (s *orphanedDataServiceImpl) deleteInBatches(ctx context.Context, result *view.OrphanCleanupResult, deleteBatch func(ctx context.Context) (int64, error)) error {
	for result.Deleted < orphanCallCeiling {
		if err := ctx.Err(); err != nil {
			return err
		}
		affected, err := deleteBatch(ctx)
		if err != nil {
			return err
		}
		result.Deleted += affected
		if affected < orphanBatchSize {
			return nil
		}
	}
	log.Debugf("Orphan cleanup reached per-call ceiling of %d rows", orphanCallCeiling)
	return nil
}
