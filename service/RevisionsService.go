package service

import (
	"context"
	"fmt"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/repository"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
	log "github.com/sirupsen/logrus"
)

// Revisions of posts in these statuses are kept: deleting them could lose
// the only history of unpublished work.
var protectedPostStatuses = map[string]bool{
	"draft":      true,
	"pending":    true,
	"auto-draft": true,
	"future":     true,
}

// sizeOverheadFactor converts raw character lengths into an estimate of
// bytes freed on disk, accounting for index and row overhead.
const sizeOverheadFactor = 1.5

type RevisionsService interface {
	CountRevisions(ctx context.Context) (int, error)
	// DeleteRevisionsForPost deletes the post's revisions beyond the
	// keepCount newest. Posts in protected statuses are skipped entirely
	// unless force is set. A missing parent post is skipped, never
	// treated as an error; the orphaned data cleaner owns that case.
	DeleteRevisionsForPost(ctx context.Context, postId int64, keepCount int, force bool) (*view.RevisionCleanupResult, error)
	DeleteAllRevisions(ctx context.Context, keepCount int, force bool) (*view.BulkRevisionCleanupResult, error)
}

// revisionsTask is the subtask name skipped posts are recorded under.
const revisionsTask = "revisions"

type revisionsServiceImpl struct {
	revisionsRepo repository.RevisionsRepository
	monitoring    MonitoringService
}

func NewRevisionsService(revisionsRepo repository.RevisionsRepository, monitoring MonitoringService) RevisionsService {
	return &revisionsServiceImpl{revisionsRepo: revisionsRepo, monitoring: monitoring}
}

func (s *revisionsServiceImpl) CountRevisions(ctx context.Context) (int, error) {
	return s.revisionsRepo.CountRevisions(ctx)
}

func (s *revisionsServiceImpl) DeleteRevisionsForPost(ctx context.Context, postId int64, keepCount int, force bool) (*view.RevisionCleanupResult, error) {
	if postId <= 0 {
		return nil, fmt.Errorf("post id must be positive, got %d", postId)
	}
	if keepCount < 0 {
		keepCount = 0
	}

	status, found, err := s.revisionsRepo.GetPostStatus(ctx, postId)
	if err != nil {
		return nil, fmt.Errorf("failed to get status for post %d: %w", postId, err)
	}
	if !found {
		s.monitoring.AddItemsSkipped(revisionsTask, 1)
		return &view.RevisionCleanupResult{Skipped: view.SkippedPostNotFound}, nil
	}
	if !force && protectedPostStatuses[status] {
		log.Debugf("Skipping revisions of post %d: status %s is protected", postId, status)
		s.monitoring.AddItemsSkipped(revisionsTask, 1)
		return &view.RevisionCleanupResult{Skipped: view.SkippedUnpublishedPost}, nil
	}

	revisions, err := s.revisionsRepo.GetRevisions(ctx, postId)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions of post %d: %w", postId, err)
	}
	if len(revisions) <= keepCount {
		return &view.RevisionCleanupResult{}, nil
	}

	result := &view.RevisionCleanupResult{}
	// Revisions arrive newest-first, so everything past keepCount goes.
	for _, revision := range revisions[keepCount:] {
		if err := s.revisionsRepo.DeleteRevision(ctx, revision.Id); err != nil {
			return result, fmt.Errorf("failed to delete revision %d: %w", revision.Id, err)
		}
		result.Deleted++
		result.BytesFreed += int64(float64(revision.RawSize) * sizeOverheadFactor)
	}
	return result, nil
}

func (s *revisionsServiceImpl) DeleteAllRevisions(ctx context.Context, keepCount int, force bool) (*view.BulkRevisionCleanupResult, error) {
	postIds, err := s.revisionsRepo.GetPostIdsWithRevisions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts with revisions: %w", err)
	}

	result := &view.BulkRevisionCleanupResult{}
	for _, postId := range postIds {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		postResult, err := s.DeleteRevisionsForPost(ctx, postId, keepCount, force)
		if err != nil {
			return result, err
		}
		if postResult.Skipped != "" {
			result.SkippedPosts++
			continue
		}
		result.Deleted += postResult.Deleted
		result.BytesFreed += postResult.BytesFreed
	}
	return result, nil
}
