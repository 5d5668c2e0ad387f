package service

import (
	"context"
	"fmt"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/repository"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
	log "github.com/sirupsen/logrus"
)

const trashChunkSize = 100

var trashedPostTypes = []string{"post", "page"}

// TrashService permanently removes content already marked as disposable:
// trashed posts, spam and trashed comments, stale auto-drafts. One bad row
// is counted and skipped so the rest of the chunk still gets cleaned.
type TrashService interface {
	// DeleteTrashedPosts removes trashed posts whose last modification is
	// older than olderThanDays. Zero means no age filter.
	DeleteTrashedPosts(ctx context.Context, olderThanDays int) (*view.TrashCleanupResult, error)
	DeleteSpamComments(ctx context.Context) (*view.TrashCleanupResult, error)
	DeleteTrashedComments(ctx context.Context, olderThanDays int) (*view.TrashCleanupResult, error)
	DeleteAutoDrafts(ctx context.Context) (*view.TrashCleanupResult, error)
	EmptyAllTrash(ctx context.Context, olderThanDays int) (*view.TrashCleanupResult, error)
}

type trashServiceImpl struct {
	trashRepo repository.TrashRepository
}

func NewTrashService(trashRepo repository.TrashRepository) TrashService {
	return &trashServiceImpl{trashRepo: trashRepo}
}

func (s *trashServiceImpl) DeleteTrashedPosts(ctx context.Context, olderThanDays int) (*view.TrashCleanupResult, error) {
	return s.deleteInChunks(ctx,
		func(ctx context.Context) ([]int64, error) {
			return s.trashRepo.GetTrashedPostIds(ctx, trashedPostTypes, olderThanDays, trashChunkSize)
		},
		s.trashRepo.DeletePost,
		"trashed post")
}

func (s *trashServiceImpl) DeleteSpamComments(ctx context.Context) (*view.TrashCleanupResult, error) {
	return s.deleteInChunks(ctx,
		func(ctx context.Context) ([]int64, error) {
			return s.trashRepo.GetCommentIds(ctx, "spam", 0, trashChunkSize)
		},
		s.trashRepo.DeleteComment,
		"spam comment")
}

func (s *trashServiceImpl) DeleteTrashedComments(ctx context.Context, olderThanDays int) (*view.TrashCleanupResult, error) {
	return s.deleteInChunks(ctx,
		func(ctx context.Context) ([]int64, error) {
			return s.trashRepo.GetCommentIds(ctx, "trash", olderThanDays, trashChunkSize)
		},
		s.trashRepo.DeleteComment,
		"trashed comment")
}

func (s *trashServiceImpl) DeleteAutoDrafts(ctx context.Context) (*view.TrashCleanupResult, error) {
	return s.deleteInChunks(ctx,
		func(ctx context.Context) ([]int64, error) {
			return s.trashRepo.GetAutoDraftIds(ctx, trashChunkSize)
		},
		s.trashRepo.DeletePost,
		"auto-draft")
}

func (s *trashServiceImpl) EmptyAllTrash(ctx context.Context, olderThanDays int) (*view.TrashCleanupResult, error) {
	total := &view.TrashCleanupResult{}
	steps := []func(ctx context.Context) (*view.TrashCleanupResult, error){
		func(ctx context.Context) (*view.TrashCleanupResult, error) {
			return s.DeleteTrashedPosts(ctx, olderThanDays)
		},
		s.DeleteSpamComments,
		func(ctx context.Context) (*view.TrashCleanupResult, error) {
			return s.DeleteTrashedComments(ctx, olderThanDays)
		},
		s.DeleteAutoDrafts,
	}
	for _, step := range steps {
		result, err := step(ctx)
		if result != nil {
			total.Deleted += result.Deleted
			total.Errors += result.Errors
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *trashServiceImpl) deleteInChunks(
	ctx context.Context,
	fetch func(ctx context.Context) ([]int64, error),
	deleteOne func(ctx context.Context, id int64) error,
	kind string,
) (*view.TrashCleanupResult, error) {
	result := &view.TrashCleanupResult{}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		ids, err := fetch(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to fetch %s ids: %w", kind, err)
		}
		if len(ids) == 0 {
			return result, nil
		}

		deletedThisChunk := 0
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := deleteOne(ctx, id); err != nil {
				log.Errorf("Failed to delete %s %d: %v", kind, id, err)
				result.Errors++
				continue
			}
			result.Deleted++
			deletedThisChunk++
		}
		// A chunk where nothing got deleted would refetch the same failing
		// ids indefinitely.
		if deletedThisChunk == 0 || len(ids) < trashChunkSize {
			return result, nil
		}
	}
}
