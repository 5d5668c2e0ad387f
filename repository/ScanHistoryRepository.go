package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
)

// ScanHistoryRepository writes the append-only audit trail. There is no
// update or delete on purpose; pruning old entries is an external concern.
type ScanHistoryRepository interface {
	StoreEntry(ctx context.Context, entry entity.ScanHistoryEntity) error
	ListEntries(ctx context.Context, limit int) ([]entity.ScanHistoryEntity, error)
}

type scanHistoryRepositoryImpl struct {
	cp db.ConnectionProvider
}

func NewScanHistoryRepository(cp db.ConnectionProvider) ScanHistoryRepository {
	return &scanHistoryRepositoryImpl{cp: cp}
}

func (r *scanHistoryRepositoryImpl) StoreEntry(ctx context.Context, entry entity.ScanHistoryEntity) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.cp.GetConnection().NewInsert().Model(&entry).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store scan history entry: %w", err)
	}
	return nil
}

func (r *scanHistoryRepositoryImpl) ListEntries(ctx context.Context, limit int) ([]entity.ScanHistoryEntity, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []entity.ScanHistoryEntity
	err := r.cp.GetConnection().NewSelect().Model(&entries).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan history: %w", err)
	}
	return entries, nil
}
