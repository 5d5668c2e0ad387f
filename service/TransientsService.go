package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/repository"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
	log "github.com/sirupsen/logrus"
)

const transientBatchSize = 500

type TransientsService interface {
	ListExpiredTransients(ctx context.Context, limit int) ([]view.TransientInfo, error)
	DeleteExpiredTransients(ctx context.Context) (*view.TransientCleanupResult, error)
	DeleteAllTransients(ctx context.Context) (*view.TransientCleanupResult, error)
}

type transientsServiceImpl struct {
	transientsRepo      repository.TransientsRepository
	externalObjectCache bool
	excludePrefixes     []string
}

func NewTransientsService(transientsRepo repository.TransientsRepository, externalObjectCache bool, excludePrefixes []string) TransientsService {
	return &transientsServiceImpl{
		transientsRepo:      transientsRepo,
		externalObjectCache: externalObjectCache,
		excludePrefixes:     excludePrefixes,
	}
}

func (s *transientsServiceImpl) ListExpiredTransients(ctx context.Context, limit int) ([]view.TransientInfo, error) {
	if s.externalObjectCache {
		return nil, nil
	}
	if limit <= 0 {
		limit = transientBatchSize
	}
	transients, err := s.transientsRepo.GetExpiredTransients(ctx, time.Now().Unix(), s.excludePrefixes, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired transients: %w", err)
	}
	infos := make([]view.TransientInfo, 0, len(transients))
	for _, t := range transients {
		infos = append(infos, view.TransientInfo{
			Name:            t.Name,
			IsSiteTransient: t.IsSiteTransient,
			SizeBytes:       t.SizeBytes,
			ExpiredAt:       time.Unix(t.ExpiresAt, 0),
		})
	}
	return infos, nil
}

func (s *transientsServiceImpl) DeleteExpiredTransients(ctx context.Context) (*view.TransientCleanupResult, error) {
	return s.deleteTransients(ctx, func(ctx context.Context) ([]entity.TransientEntity, error) {
		return s.transientsRepo.GetExpiredTransients(ctx, time.Now().Unix(), s.excludePrefixes, transientBatchSize)
	})
}

func (s *transientsServiceImpl) DeleteAllTransients(ctx context.Context) (*view.TransientCleanupResult, error) {
	return s.deleteTransients(ctx, func(ctx context.Context) ([]entity.TransientEntity, error) {
		return s.transientsRepo.GetAllTransients(ctx, s.excludePrefixes, transientBatchSize)
	})
}

func (s *transientsServiceImpl) deleteTransients(ctx context.Context, fetch func(ctx context.Context) ([]entity.TransientEntity, error)) (*view.TransientCleanupResult, error) {
	result := &view.TransientCleanupResult{}
	if s.externalObjectCache {
		// Transients live in the object cache, not the database. Touching
		// the options rows here would desynchronize the two.
		log.Debug("External object cache configured, skipping transient cleanup")
		return result, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		transients, err := fetch(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to fetch transients: %w", err)
		}
		if len(transients) == 0 {
			return result, nil
		}

		for _, t := range transients {
			affected, err := s.transientsRepo.DeleteTransient(ctx, t.Name, t.IsSiteTransient)
			if err != nil {
				return result, fmt.Errorf("failed to delete transient %s: %w", t.Name, err)
			}
			if affected > 0 {
				result.Deleted++
				result.BytesFreed += t.SizeBytes
			}
		}
		if len(transients) < transientBatchSize {
			return result, nil
		}
	}
}
