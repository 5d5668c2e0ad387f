package service

import (
	"context"
	"testing"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/crypto"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/exception"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret-0123456789"

type fakeStatsRepository struct {
	tables         []entity.TableInfoEntity
	afterSizes     map[string]int64
	tableInfoCalls int
	batchSizeCalls int
}

func (f *fakeStatsRepository) GetDatabaseSize(ctx context.Context) (int64, error)  { return 0, nil }
func (f *fakeStatsRepository) GetTotalOverhead(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeStatsRepository) GetPrefixedTables(ctx context.Context) ([]entity.TableInfoEntity, error) {
	return f.tables, nil
}

func (f *fakeStatsRepository) GetTableInfo(ctx context.Context, tableName string) (*entity.TableInfoEntity, error) {
	f.tableInfoCalls++
	for _, t := range f.tables {
		if t.Name == tableName {
			info := t
			return &info, nil
		}
	}
	return nil, nil
}

func (f *fakeStatsRepository) GetTableSizes(ctx context.Context, tableNames []string) (map[string]int64, error) {
	f.batchSizeCalls++
	sizes := make(map[string]int64)
	for _, name := range tableNames {
		if after, ok := f.afterSizes[name]; ok {
			sizes[name] = after
			continue
		}
		for _, t := range f.tables {
			if t.Name == name {
				sizes[name] = t.SizeBytes
			}
		}
	}
	return sizes, nil
}

type fakeTablesRepository struct {
	dropped     []string
	optimized   []string
	analyzed    []string
	repaired    []string
	optimizeErr map[string]error
}

func (f *fakeTablesRepository) TableExists(ctx context.Context, tableName string) (bool, error) {
	return true, nil
}

func (f *fakeTablesRepository) DropTable(ctx context.Context, tableName string) error {
	f.dropped = append(f.dropped, tableName)
	return nil
}

func (f *fakeTablesRepository) OptimizeTable(ctx context.Context, tableName string) error {
	if err := f.optimizeErr[tableName]; err != nil {
		return err
	}
	f.optimized = append(f.optimized, tableName)
	return nil
}

func (f *fakeTablesRepository) AnalyzeTable(ctx context.Context, tableName string) error {
	f.analyzed = append(f.analyzed, tableName)
	return nil
}

func (f *fakeTablesRepository) RepairTable(ctx context.Context, tableName string) error {
	f.repaired = append(f.repaired, tableName)
	return nil
}

type fakeScanHistoryRepository struct {
	entries []entity.ScanHistoryEntity
}

func (f *fakeScanHistoryRepository) StoreEntry(ctx context.Context, entry entity.ScanHistoryEntity) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeScanHistoryRepository) ListEntries(ctx context.Context, limit int) ([]entity.ScanHistoryEntity, error) {
	return f.entries, nil
}

type fakeLockService struct {
	held map[string]bool
}

func (f *fakeLockService) AcquireLock(ctx context.Context, lockName string, options LockOptions) (bool, <-chan LockLostEvent, error) {
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	if f.held[lockName] {
		return false, nil, nil
	}
	f.held[lockName] = true
	return true, nil, nil
}

func (f *fakeLockService) ReleaseLock(ctx context.Context, lockName string) error {
	delete(f.held, lockName)
	return nil
}

func newOrphanedTablesFixture(activePlugins []string, tables ...entity.TableInfoEntity) (OrphanedTablesService, *fakeTablesRepository, *fakeScanHistoryRepository) {
	statsRepo := &fakeStatsRepository{tables: tables}
	tablesRepo := &fakeTablesRepository{}
	historyRepo := &fakeScanHistoryRepository{}
	svc := NewOrphanedTablesService(
		statsRepo, tablesRepo, historyRepo, &fakeLockService{},
		db.NewTables("wp_", false), activePlugins, testSecret,
	)
	return svc, tablesRepo, historyRepo
}

func TestListOrphanedTablesExcludesCoreAndActivePluginTables(t *testing.T) {
	svc, _, _ := newOrphanedTablesFixture(
		[]string{"woocommerce"},
		entity.TableInfoEntity{Name: "wp_posts", SizeBytes: 100},
		entity.TableInfoEntity{Name: "wp_wc_orders", SizeBytes: 200},
		entity.TableInfoEntity{Name: "wp_old_plugin_data", SizeBytes: 300},
	)

	orphaned, err := svc.ListOrphanedTables(context.Background())

	assert.NoError(t, err)
	assert.Len(t, orphaned, 1)
	assert.Equal(t, "wp_old_plugin_data", orphaned[0].Name)
	assert.NotEmpty(t, orphaned[0].ConfirmationHash)
}

func TestListOrphanedTablesFlagsDeactivatedPluginTables(t *testing.T) {
	// WooCommerce inactive: its tables must surface as orphaned with a
	// potential owner hint.
	svc, _, _ := newOrphanedTablesFixture(
		nil,
		entity.TableInfoEntity{Name: "wp_wc_orders", SizeBytes: 200},
	)

	orphaned, err := svc.ListOrphanedTables(context.Background())

	assert.NoError(t, err)
	assert.Len(t, orphaned, 1)
	assert.Equal(t, "woocommerce", orphaned[0].PotentialOwner)
}

func TestListOrphanedTablesMarksSharedPrefixes(t *testing.T) {
	svc, _, _ := newOrphanedTablesFixture(
		nil,
		entity.TableInfoEntity{Name: "wp_actionscheduler_actions", SizeBytes: 100},
	)

	orphaned, err := svc.ListOrphanedTables(context.Background())

	assert.NoError(t, err)
	assert.Len(t, orphaned, 1)
	assert.True(t, orphaned[0].IsShared)
	assert.NotEmpty(t, orphaned[0].Warning)
}

func TestRegisteredTablesAreNotOrphaned(t *testing.T) {
	svc, _, _ := newOrphanedTablesFixture(
		nil,
		entity.TableInfoEntity{Name: "wp_custom_data", SizeBytes: 100},
	)
	assert.NoError(t, svc.RegisterOwnership("wp_custom_data", "my-plugin"))

	orphaned, err := svc.ListOrphanedTables(context.Background())

	assert.NoError(t, err)
	assert.Empty(t, orphaned)
}

func TestDeleteOrphanedTableRejectsBadConfirmationHash(t *testing.T) {
	svc, tablesRepo, _ := newOrphanedTablesFixture(
		nil,
		entity.TableInfoEntity{Name: "wp_old_plugin_data", SizeBytes: 100},
	)

	_, err := svc.DeleteOrphanedTable(context.Background(), "wp_old_plugin_data", "wrong")

	assert.Error(t, err)
	customErr, ok := err.(*exception.CustomError)
	assert.True(t, ok)
	assert.Equal(t, exception.InvalidConfirmationHash, customErr.Code)
	assert.Empty(t, tablesRepo.dropped)
}

func TestDeleteOrphanedTableRejectsForeignPrefix(t *testing.T) {
	svc, tablesRepo, _ := newOrphanedTablesFixture(nil)

	_, err := svc.DeleteOrphanedTable(context.Background(), "mysql_system_table",
		crypto.TableDeletionToken("mysql_system_table", testSecret))

	assert.Error(t, err)
	customErr, ok := err.(*exception.CustomError)
	assert.True(t, ok)
	assert.Equal(t, exception.TableNotPrefixed, customErr.Code)
	assert.Empty(t, tablesRepo.dropped)
}

func TestDeleteOrphanedTableRefusesCoreTable(t *testing.T) {
	svc, tablesRepo, _ := newOrphanedTablesFixture(
		nil,
		entity.TableInfoEntity{Name: "wp_posts", SizeBytes: 100},
	)

	_, err := svc.DeleteOrphanedTable(context.Background(), "wp_posts",
		crypto.TableDeletionToken("wp_posts", testSecret))

	assert.Error(t, err)
	customErr, ok := err.(*exception.CustomError)
	assert.True(t, ok)
	assert.Equal(t, exception.TableNotOrphaned, customErr.Code)
	assert.Empty(t, tablesRepo.dropped)
}

func TestDeleteOrphanedTableDropsAndRecordsHistory(t *testing.T) {
	svc, tablesRepo, historyRepo := newOrphanedTablesFixture(
		nil,
		entity.TableInfoEntity{Name: "wp_old_plugin_data", SizeBytes: 12345},
	)

	result, err := svc.DeleteOrphanedTable(context.Background(), "wp_old_plugin_data",
		crypto.TableDeletionToken("wp_old_plugin_data", testSecret))

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(12345), result.BytesFreed)
	assert.Equal(t, []string{"wp_old_plugin_data"}, tablesRepo.dropped)
	assert.Len(t, historyRepo.entries, 1)
	assert.Equal(t, "orphaned_table_drop", historyRepo.entries[0].ScanType)
}
