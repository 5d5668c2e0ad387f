package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
)

type RateLimitRepository interface {
	// IncrementWindow bumps the counter for the actor's current window and
	// returns the count after the increment.
	IncrementWindow(ctx context.Context, actor string, windowStart time.Time) (int, error)
	GetWindowCount(ctx context.Context, actor string, windowStart time.Time) (int, error)
	PurgeExpired(ctx context.Context, olderThan time.Time) (int, error)
}

type rateLimitRepositoryImpl struct {
	cp db.ConnectionProvider
}

func NewRateLimitRepository(cp db.ConnectionProvider) RateLimitRepository {
	return &rateLimitRepositoryImpl{cp: cp}
}

func (r *rateLimitRepositoryImpl) IncrementWindow(ctx context.Context, actor string, windowStart time.Time) (int, error) {
	conn := r.cp.GetConnection()
	// Single atomic upsert. The follow-up read may observe increments from
	// concurrent requests, which only makes the limiter stricter.
	_, err := conn.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (actor, window_start, request_count)
		VALUES (?, ?, 1)
		ON DUPLICATE KEY UPDATE request_count = request_count + 1`,
		db.QuoteIdent(db.RateLimitTable)),
		actor, windowStart)
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit window: %w", err)
	}
	return r.GetWindowCount(ctx, actor, windowStart)
}

func (r *rateLimitRepositoryImpl) GetWindowCount(ctx context.Context, actor string, windowStart time.Time) (int, error) {
	ent := new(entity.RateLimitEntity)
	err := r.cp.GetConnection().NewSelect().Model(ent).
		Where("actor = ?", actor).
		Where("window_start = ?", windowStart).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read rate limit window: %w", err)
	}
	return ent.RequestCount, nil
}

func (r *rateLimitRepositoryImpl) PurgeExpired(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := r.cp.GetConnection().NewDelete().
		Model((*entity.RateLimitEntity)(nil)).
		Where("window_start < ?", olderThan).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge rate limit windows: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
