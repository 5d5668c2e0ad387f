package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/utils"
)

// StatsRepository reads size and fragmentation figures from the engine's
// table metadata catalog, always filtered to the current schema.
type StatsRepository interface {
	GetDatabaseSize(ctx context.Context) (int64, error)
	GetTotalOverhead(ctx context.Context) (int64, error)
	GetPrefixedTables(ctx context.Context) ([]entity.TableInfoEntity, error)
	GetTableInfo(ctx context.Context, tableName string) (*entity.TableInfoEntity, error)
	GetTableSizes(ctx context.Context, tableNames []string) (map[string]int64, error)
}

type statsRepositoryImpl struct {
	cp     db.ConnectionProvider
	tables *db.Tables
}

func NewStatsRepository(cp db.ConnectionProvider, tables *db.Tables) StatsRepository {
	return &statsRepositoryImpl{cp: cp, tables: tables}
}

func (r *statsRepositoryImpl) GetDatabaseSize(ctx context.Context) (int64, error) {
	var size int64
	err := r.cp.GetConnection().NewRaw(`
		SELECT COALESCE(SUM(data_length + index_length), 0)
		FROM information_schema.TABLES
		WHERE table_schema = DATABASE()`).Scan(ctx, &size)
	if err != nil {
		return 0, fmt.Errorf("failed to get database size: %w", err)
	}
	return size, nil
}

func (r *statsRepositoryImpl) GetTotalOverhead(ctx context.Context) (int64, error) {
	var overhead int64
	err := r.cp.GetConnection().NewRaw(`
		SELECT COALESCE(SUM(data_free), 0)
		FROM information_schema.TABLES
		WHERE table_schema = DATABASE() AND table_name LIKE ?`,
		utils.LikeEscaped(r.tables.Prefix())+"%").Scan(ctx, &overhead)
	if err != nil {
		return 0, fmt.Errorf("failed to get total overhead: %w", err)
	}
	return overhead, nil
}

func (r *statsRepositoryImpl) GetPrefixedTables(ctx context.Context) ([]entity.TableInfoEntity, error) {
	var tables []entity.TableInfoEntity
	err := r.cp.GetConnection().NewRaw(`
		SELECT table_name,
		       COALESCE(engine, '') AS engine,
		       COALESCE(table_rows, 0) AS table_rows,
		       COALESCE(data_length + index_length, 0) AS size_bytes,
		       COALESCE(data_free, 0) AS data_free
		FROM information_schema.TABLES
		WHERE table_schema = DATABASE() AND table_name LIKE ?
		ORDER BY table_name`,
		utils.LikeEscaped(r.tables.Prefix())+"%").Scan(ctx, &tables)
	if err != nil {
		return nil, fmt.Errorf("failed to list prefixed tables: %w", err)
	}
	return tables, nil
}

func (r *statsRepositoryImpl) GetTableInfo(ctx context.Context, tableName string) (*entity.TableInfoEntity, error) {
	var tables []entity.TableInfoEntity
	err := r.cp.GetConnection().NewRaw(`
		SELECT table_name,
		       COALESCE(engine, '') AS engine,
		       COALESCE(table_rows, 0) AS table_rows,
		       COALESCE(data_length + index_length, 0) AS size_bytes,
		       COALESCE(data_free, 0) AS data_free
		FROM information_schema.TABLES
		WHERE table_schema = DATABASE() AND table_name = ?`,
		tableName).Scan(ctx, &tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table info: %w", err)
	}
	if len(tables) == 0 {
		return nil, nil
	}
	return &tables[0], nil
}

// GetTableSizes loads the sizes of all requested tables in one catalog query.
// The optimizer calls it before and after a bulk run instead of issuing one
// info query per table.
func (r *statsRepositoryImpl) GetTableSizes(ctx context.Context, tableNames []string) (map[string]int64, error) {
	sizes := make(map[string]int64, len(tableNames))
	if len(tableNames) == 0 {
		return sizes, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tableNames)), ", ")
	args := make([]interface{}, 0, len(tableNames))
	for _, name := range tableNames {
		args = append(args, name)
	}

	var rows []entity.TableInfoEntity
	err := r.cp.GetConnection().NewRaw(fmt.Sprintf(`
		SELECT table_name,
		       COALESCE(data_length + index_length, 0) AS size_bytes
		FROM information_schema.TABLES
		WHERE table_schema = DATABASE() AND table_name IN (%s)`, placeholders),
		args...).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to batch-load table sizes: %w", err)
	}

	for _, row := range rows {
		sizes[row.Name] = row.SizeBytes
	}
	return sizes, nil
}
