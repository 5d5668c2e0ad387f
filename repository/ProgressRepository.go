package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
)

const progressOptionName = "sitesweep_task_progress"

// ProgressRepository persists the scheduled task's resume point as a single
// options-table row. The orchestrator is the only reader and writer.
type ProgressRepository interface {
	GetProgress(ctx context.Context) (*view.TaskProgress, error)
	SaveProgress(ctx context.Context, progress *view.TaskProgress) error
	DeleteProgress(ctx context.Context) error
}

type progressRepositoryImpl struct {
	cp     db.ConnectionProvider
	tables *db.Tables
}

func NewProgressRepository(cp db.ConnectionProvider, tables *db.Tables) ProgressRepository {
	return &progressRepositoryImpl{cp: cp, tables: tables}
}

func (r *progressRepositoryImpl) GetProgress(ctx context.Context) (*view.TaskProgress, error) {
	var raw string
	err := r.cp.GetConnection().NewRaw(
		fmt.Sprintf("SELECT option_value FROM %s WHERE option_name = ?", db.QuoteIdent(r.tables.Options())),
		progressOptionName,
	).Scan(ctx, &raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load task progress: %w", err)
	}

	var progress view.TaskProgress
	if err := json.Unmarshal([]byte(raw), &progress); err != nil {
		return nil, fmt.Errorf("failed to decode task progress: %w", err)
	}
	return &progress, nil
}

func (r *progressRepositoryImpl) SaveProgress(ctx context.Context, progress *view.TaskProgress) error {
	raw, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to encode task progress: %w", err)
	}

	_, err = r.cp.GetConnection().ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (option_name, option_value, autoload) VALUES (?, ?, 'no')
			ON DUPLICATE KEY UPDATE option_value = VALUES(option_value)`, db.QuoteIdent(r.tables.Options())),
		progressOptionName, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to save task progress: %w", err)
	}
	return nil
}

func (r *progressRepositoryImpl) DeleteProgress(ctx context.Context) error {
	_, err := r.cp.GetConnection().ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE option_name = ?", db.QuoteIdent(r.tables.Options())),
		progressOptionName,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task progress: %w", err)
	}
	return nil
}
