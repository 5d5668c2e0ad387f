package repository

import (
	"context"
	"fmt"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
)

// TablesRepository runs DDL and maintenance statements. Table names cannot
// be bound as parameters, so every method validates and quotes the
// identifier before building the statement.
type TablesRepository interface {
	TableExists(ctx context.Context, tableName string) (bool, error)
	DropTable(ctx context.Context, tableName string) error
	OptimizeTable(ctx context.Context, tableName string) error
	AnalyzeTable(ctx context.Context, tableName string) error
	RepairTable(ctx context.Context, tableName string) error
}

type tablesRepositoryImpl struct {
	cp db.ConnectionProvider
}

func NewTablesRepository(cp db.ConnectionProvider) TablesRepository {
	return &tablesRepositoryImpl{cp: cp}
}

func (r *tablesRepositoryImpl) TableExists(ctx context.Context, tableName string) (bool, error) {
	var count int
	err := r.cp.GetConnection().NewRaw(`
		SELECT COUNT(*) FROM information_schema.TABLES
		WHERE table_schema = DATABASE() AND table_name = ?`,
		tableName).Scan(ctx, &count)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return count > 0, nil
}

func (r *tablesRepositoryImpl) DropTable(ctx context.Context, tableName string) error {
	if !db.ValidTableName(tableName) {
		return fmt.Errorf("invalid table name: %q", tableName)
	}
	_, err := r.cp.GetConnection().ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", db.QuoteIdent(tableName)))
	if err != nil {
		return fmt.Errorf("DROP TABLE %s failed: %w", tableName, err)
	}
	return nil
}

func (r *tablesRepositoryImpl) OptimizeTable(ctx context.Context, tableName string) error {
	return r.runMaintenanceStatement(ctx, "OPTIMIZE TABLE", tableName)
}

func (r *tablesRepositoryImpl) AnalyzeTable(ctx context.Context, tableName string) error {
	return r.runMaintenanceStatement(ctx, "ANALYZE TABLE", tableName)
}

func (r *tablesRepositoryImpl) RepairTable(ctx context.Context, tableName string) error {
	return r.runMaintenanceStatement(ctx, "REPAIR TABLE", tableName)
}

// OPTIMIZE, ANALYZE and REPAIR return a result set instead of an OK
// packet, so they must go through QueryContext and the rows drained.
func (r *tablesRepositoryImpl) runMaintenanceStatement(ctx context.Context, verb string, tableName string) error {
	if !db.ValidTableName(tableName) {
		return fmt.Errorf("invalid table name: %q", tableName)
	}
	rows, err := r.cp.GetConnection().QueryContext(ctx, fmt.Sprintf("%s %s", verb, db.QuoteIdent(tableName)))
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", verb, tableName, err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}
