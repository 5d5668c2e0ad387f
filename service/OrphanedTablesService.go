package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/crypto"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/exception"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/repository"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
	log "github.com/sirupsen/logrus"
)

const tableDropLockLeaseSeconds = 30

// pluginTablePrefixes maps plugin slugs to the table name prefixes (after
// the installation prefix) those plugins are known to create. The list is
// heuristic; an unknown prefix simply reports no potential owner.
var pluginTablePrefixes = map[string][]string{
	"woocommerce":        {"wc_", "woocommerce_"},
	"yoast-seo":          {"yoast_"},
	"wordpress-seo":      {"yoast_"},
	"wpforms":            {"wpforms_"},
	"gravityforms":       {"gf_", "rg_"},
	"elementor":          {"e_"},
	"wp-mail-smtp":       {"wpmailsmtp_"},
	"redirection":        {"redirection_"},
	"wp-statistics":      {"statistics_"},
	"contact-form-7":     {"cf7_"},
	"mailpoet":           {"mailpoet_"},
	"buddypress":         {"bp_"},
	"easy-digital-downloads": {"edd_"},
}

// sharedTablePrefixes name tables several plugins write to. Dropping one
// breaks more than the plugin that created it, so they are flagged.
var sharedTablePrefixes = []string{
	"actionscheduler_",
	"options_backup",
}

type OrphanedTablesService interface {
	// ListOrphanedTables reports prefixed tables that are neither core
	// WordPress tables, nor registered, nor attributable to an active
	// plugin. Each entry carries the confirmation hash required to drop it.
	ListOrphanedTables(ctx context.Context) ([]view.OrphanedTableInfo, error)
	// RegisterOwnership marks a table as owned so later scans skip it.
	RegisterOwnership(tableName string, owner string) error
	// DeleteOrphanedTable drops the named table. The confirmation hash
	// must match and the table must still be orphaned at drop time.
	DeleteOrphanedTable(ctx context.Context, tableName string, confirmationHash string) (*view.TableDeletionResult, error)
}

type orphanedTablesServiceImpl struct {
	statsRepo       repository.StatsRepository
	tablesRepo      repository.TablesRepository
	scanHistoryRepo repository.ScanHistoryRepository
	lockService     LockService
	tables          *db.Tables
	activePlugins   []string
	secret          string

	mu         sync.RWMutex
	registered map[string]string
}

func NewOrphanedTablesService(
	statsRepo repository.StatsRepository,
	tablesRepo repository.TablesRepository,
	scanHistoryRepo repository.ScanHistoryRepository,
	lockService LockService,
	tables *db.Tables,
	activePlugins []string,
	confirmationSecret string,
) OrphanedTablesService {
	return &orphanedTablesServiceImpl{
		statsRepo:       statsRepo,
		tablesRepo:      tablesRepo,
		scanHistoryRepo: scanHistoryRepo,
		lockService:     lockService,
		tables:          tables,
		activePlugins:   activePlugins,
		secret:          confirmationSecret,
		registered:      make(map[string]string),
	}
}

func (s *orphanedTablesServiceImpl) ListOrphanedTables(ctx context.Context) ([]view.OrphanedTableInfo, error) {
	allTables, err := s.statsRepo.GetPrefixedTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	core := s.tables.CoreTables()
	activePrefixes := s.activePluginPrefixes()

	var orphaned []view.OrphanedTableInfo
	for _, t := range allTables {
		if core[t.Name] {
			continue
		}
		if s.isRegistered(t.Name) {
			continue
		}
		suffix := s.tables.StripPrefix(t.Name)
		if s.ownedByActivePlugin(suffix, activePrefixes) {
			continue
		}

		info := view.OrphanedTableInfo{
			Name:             t.Name,
			SizeBytes:        t.SizeBytes,
			RowCount:         t.RowCount,
			ConfirmationHash: crypto.TableDeletionToken(t.Name, s.secret),
			PotentialOwner:   s.potentialOwner(suffix),
		}
		if shared := sharedPrefixOf(suffix); shared != "" {
			info.IsShared = true
			info.Warning = fmt.Sprintf("tables with prefix %s are written by multiple plugins, dropping may break unrelated functionality", shared)
		}
		orphaned = append(orphaned, info)
	}

	sort.Slice(orphaned, func(i, j int) bool {
		return orphaned[i].SizeBytes > orphaned[j].SizeBytes
	})
	return orphaned, nil
}

func (s *orphanedTablesServiceImpl) RegisterOwnership(tableName string, owner string) error {
	if !db.ValidTableName(tableName) {
		return &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidTableName,
			Message: exception.InvalidTableNameMsg,
			Params:  map[string]interface{}{"table": tableName},
		}
	}
	if owner == "" {
		return &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidParameter,
			Message: exception.InvalidParameterMsg,
			Params:  map[string]interface{}{"param": "owner"},
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered[tableName] = owner
	log.Infof("Table %s registered as owned by %s", tableName, owner)
	return nil
}

func (s *orphanedTablesServiceImpl) DeleteOrphanedTable(ctx context.Context, tableName string, confirmationHash string) (*view.TableDeletionResult, error) {
	if err := s.validateDeleteRequest(tableName, confirmationHash); err != nil {
		return nil, err
	}

	lockName := "drop_table_" + tableName
	acquired, _, err := s.lockService.AcquireLock(ctx, lockName, LockOptions{
		LeaseSeconds: tableDropLockLeaseSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire table drop lock: %w", err)
	}
	if !acquired {
		return nil, &exception.CustomError{
			Status:  http.StatusConflict,
			Code:    exception.LockAlreadyHeld,
			Message: exception.LockAlreadyHeldMsg,
			Params:  map[string]interface{}{"operation": "drop " + tableName},
		}
	}
	defer func() {
		if err := s.lockService.ReleaseLock(context.Background(), lockName); err != nil {
			log.Warnf("Failed to release table drop lock %s: %v", lockName, err)
		}
	}()

	// The orphan check is repeated under the lock. A plugin activated
	// between listing and deletion makes the table non-orphaned again.
	stillOrphaned, sizeBytes, err := s.isCurrentlyOrphaned(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if !stillOrphaned {
		return nil, &exception.CustomError{
			Status:  http.StatusConflict,
			Code:    exception.TableNotOrphaned,
			Message: exception.TableNotOrphanedMsg,
			Params:  map[string]interface{}{"table": tableName},
		}
	}

	if err := s.tablesRepo.DropTable(ctx, tableName); err != nil {
		return nil, fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}
	log.Infof("Dropped orphaned table %s, freed approximately %d bytes", tableName, sizeBytes)

	historyErr := s.scanHistoryRepo.StoreEntry(ctx, entity.ScanHistoryEntity{
		ScanType:     "orphaned_table_drop",
		ItemsFound:   1,
		ItemsCleaned: 1,
		BytesFreed:   sizeBytes,
		Details:      tableName,
		CreatedAt:    time.Now(),
	})
	if historyErr != nil {
		log.Warnf("Failed to record table drop in scan history: %v", historyErr)
	}

	return &view.TableDeletionResult{
		Success:    true,
		TableName:  tableName,
		BytesFreed: sizeBytes,
	}, nil
}

func (s *orphanedTablesServiceImpl) validateDeleteRequest(tableName string, confirmationHash string) error {
	if !db.ValidTableName(tableName) {
		return &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidTableName,
			Message: exception.InvalidTableNameMsg,
			Params:  map[string]interface{}{"table": tableName},
		}
	}
	if !s.tables.HasPrefix(tableName) {
		return &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.TableNotPrefixed,
			Message: exception.TableNotPrefixedMsg,
			Params:  map[string]interface{}{"table": tableName},
		}
	}
	if !crypto.VerifyTableDeletionToken(tableName, s.secret, confirmationHash) {
		return &exception.CustomError{
			Status:  http.StatusForbidden,
			Code:    exception.InvalidConfirmationHash,
			Message: exception.InvalidConfirmationHashMsg,
			Params:  map[string]interface{}{"table": tableName},
		}
	}
	return nil
}

func (s *orphanedTablesServiceImpl) isCurrentlyOrphaned(ctx context.Context, tableName string) (bool, int64, error) {
	info, err := s.statsRepo.GetTableInfo(ctx, tableName)
	if err != nil {
		return false, 0, fmt.Errorf("failed to read table info for %s: %w", tableName, err)
	}
	if info == nil {
		return false, 0, &exception.CustomError{
			Status:  http.StatusNotFound,
			Code:    exception.InvalidParameter,
			Message: exception.InvalidParameterMsg,
			Params:  map[string]interface{}{"param": "tableName"},
		}
	}
	if s.tables.CoreTables()[tableName] || s.isRegistered(tableName) {
		return false, info.SizeBytes, nil
	}
	suffix := s.tables.StripPrefix(tableName)
	if s.ownedByActivePlugin(suffix, s.activePluginPrefixes()) {
		return false, info.SizeBytes, nil
	}
	return true, info.SizeBytes, nil
}

func (s *orphanedTablesServiceImpl) isRegistered(tableName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registered[tableName]
	return ok
}

func (s *orphanedTablesServiceImpl) activePluginPrefixes() []string {
	var prefixes []string
	for _, plugin := range s.activePlugins {
		prefixes = append(prefixes, pluginTablePrefixes[plugin]...)
	}
	return prefixes
}

func (s *orphanedTablesServiceImpl) ownedByActivePlugin(suffix string, activePrefixes []string) bool {
	for _, prefix := range activePrefixes {
		if strings.HasPrefix(suffix, prefix) {
			return true
		}
	}
	return false
}

// potentialOwner reverses the plugin prefix map to suggest which inactive
// plugin most likely created the table.
func (s *orphanedTablesServiceImpl) potentialOwner(suffix string) string {
	for plugin, prefixes := range pluginTablePrefixes {
		for _, prefix := range prefixes {
			if strings.HasPrefix(suffix, prefix) {
				return plugin
			}
		}
	}
	return ""
}

func sharedPrefixOf(suffix string) string {
	for _, prefix := range sharedTablePrefixes {
		if strings.HasPrefix(suffix, prefix) {
			return prefix
		}
	}
	return ""
}
