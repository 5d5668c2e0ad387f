package repository

import (
	"context"
	"fmt"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/utils"
)

const (
	transientPrefix            = "_transient_"
	transientTimeoutPrefix     = "_transient_timeout_"
	siteTransientPrefix        = "_site_transient_"
	siteTransientTimeoutPrefix = "_site_transient_timeout_"
)

// TransientsRepository reads and deletes transient rows. Every logical
// transient is a pair of correlated rows: the value row and the timeout row.
// On multisite, site transients live in the network sitemeta table instead
// of the options table.
type TransientsRepository interface {
	CountTimeoutRows(ctx context.Context) (int, error)
	// GetExpiredTransients and GetAllTransients filter excludePrefixes in
	// SQL, so a batch full of excluded names can never stall the caller's
	// fetch loop.
	GetExpiredTransients(ctx context.Context, now int64, excludePrefixes []string, limit int) ([]entity.TransientEntity, error)
	GetAllTransients(ctx context.Context, excludePrefixes []string, limit int) ([]entity.TransientEntity, error)
	// DeleteTransient removes the value and timeout rows of one transient.
	// A zero affected-rows result means another process got there first,
	// which is not an error.
	DeleteTransient(ctx context.Context, name string, siteTransient bool) (int64, error)
}

type transientsRepositoryImpl struct {
	cp            db.ConnectionProvider
	tables        *db.Tables
	networkSiteId int64
}

func NewTransientsRepository(cp db.ConnectionProvider, tables *db.Tables, networkSiteId int64) TransientsRepository {
	return &transientsRepositoryImpl{cp: cp, tables: tables, networkSiteId: networkSiteId}
}

func (r *transientsRepositoryImpl) CountTimeoutRows(ctx context.Context) (int, error) {
	options := db.QuoteIdent(r.tables.Options())

	var count int
	err := r.cp.GetConnection().NewRaw(
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE option_name LIKE ?", options),
		utils.LikeEscaped(transientTimeoutPrefix)+"%").Scan(ctx, &count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transient timeout rows: %w", err)
	}

	var siteCount int
	if r.tables.SiteTransientsInOptions() {
		err = r.cp.GetConnection().NewRaw(
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE option_name LIKE ?", options),
			utils.LikeEscaped(siteTransientTimeoutPrefix)+"%").Scan(ctx, &siteCount)
	} else {
		err = r.cp.GetConnection().NewRaw(
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE site_id = ? AND meta_key LIKE ?", db.QuoteIdent(r.tables.Sitemeta())),
			r.networkSiteId, utils.LikeEscaped(siteTransientTimeoutPrefix)+"%").Scan(ctx, &siteCount)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count site transient timeout rows: %w", err)
	}

	return count + siteCount, nil
}

func (r *transientsRepositoryImpl) GetExpiredTransients(ctx context.Context, now int64, excludePrefixes []string, limit int) ([]entity.TransientEntity, error) {
	return r.collectTransients(ctx, &now, excludePrefixes, limit)
}

func (r *transientsRepositoryImpl) GetAllTransients(ctx context.Context, excludePrefixes []string, limit int) ([]entity.TransientEntity, error) {
	return r.collectTransients(ctx, nil, excludePrefixes, limit)
}

func (r *transientsRepositoryImpl) collectTransients(ctx context.Context, expiredBefore *int64, excludePrefixes []string, limit int) ([]entity.TransientEntity, error) {
	regular, err := r.optionsTransients(ctx, transientTimeoutPrefix, transientPrefix, expiredBefore, excludePrefixes, limit)
	if err != nil {
		return nil, err
	}

	remaining := limit - len(regular)
	if remaining <= 0 {
		return regular, nil
	}

	var site []entity.TransientEntity
	if r.tables.SiteTransientsInOptions() {
		site, err = r.optionsTransients(ctx, siteTransientTimeoutPrefix, siteTransientPrefix, expiredBefore, excludePrefixes, remaining)
	} else {
		site, err = r.sitemetaTransients(ctx, expiredBefore, excludePrefixes, remaining)
	}
	if err != nil {
		return nil, err
	}
	for i := range site {
		site[i].IsSiteTransient = true
	}

	return append(regular, site...), nil
}

func (r *transientsRepositoryImpl) optionsTransients(ctx context.Context, timeoutPrefix, valuePrefix string, expiredBefore *int64, excludePrefixes []string, limit int) ([]entity.TransientEntity, error) {
	options := db.QuoteIdent(r.tables.Options())

	query := fmt.Sprintf(`
		SELECT SUBSTRING(t.option_name, %d) AS name,
		       CAST(t.option_value AS UNSIGNED) AS expires_at,
		       CHAR_LENGTH(t.option_value) + COALESCE(CHAR_LENGTH(v.option_value), 0) AS size_bytes
		FROM %s t
		LEFT JOIN %s v ON v.option_name = CONCAT('%s', SUBSTRING(t.option_name, %d))
		WHERE t.option_name LIKE ?`,
		len(timeoutPrefix)+1, options, options, valuePrefix, len(timeoutPrefix)+1)

	args := []interface{}{utils.LikeEscaped(timeoutPrefix) + "%"}
	for _, prefix := range excludePrefixes {
		query += " AND t.option_name NOT LIKE ?"
		args = append(args, utils.LikeEscaped(timeoutPrefix+prefix)+"%")
	}
	if expiredBefore != nil {
		query += " AND CAST(t.option_value AS UNSIGNED) < ?"
		args = append(args, *expiredBefore)
	}
	query += " ORDER BY t.option_id LIMIT ?"
	args = append(args, limit)

	var transients []entity.TransientEntity
	err := r.cp.GetConnection().NewRaw(query, args...).Scan(ctx, &transients)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transients: %w", err)
	}
	return transients, nil
}

func (r *transientsRepositoryImpl) sitemetaTransients(ctx context.Context, expiredBefore *int64, excludePrefixes []string, limit int) ([]entity.TransientEntity, error) {
	sitemeta := db.QuoteIdent(r.tables.Sitemeta())

	query := fmt.Sprintf(`
		SELECT SUBSTRING(t.meta_key, %d) AS name,
		       CAST(t.meta_value AS UNSIGNED) AS expires_at,
		       CHAR_LENGTH(t.meta_value) + COALESCE(CHAR_LENGTH(v.meta_value), 0) AS size_bytes
		FROM %s t
		LEFT JOIN %s v ON v.site_id = t.site_id
		     AND v.meta_key = CONCAT('%s', SUBSTRING(t.meta_key, %d))
		WHERE t.site_id = ? AND t.meta_key LIKE ?`,
		len(siteTransientTimeoutPrefix)+1, sitemeta, sitemeta, siteTransientPrefix, len(siteTransientTimeoutPrefix)+1)

	args := []interface{}{r.networkSiteId, utils.LikeEscaped(siteTransientTimeoutPrefix) + "%"}
	for _, prefix := range excludePrefixes {
		query += " AND t.meta_key NOT LIKE ?"
		args = append(args, utils.LikeEscaped(siteTransientTimeoutPrefix+prefix)+"%")
	}
	if expiredBefore != nil {
		query += " AND CAST(t.meta_value AS UNSIGNED) < ?"
		args = append(args, *expiredBefore)
	}
	query += " ORDER BY t.meta_id LIMIT ?"
	args = append(args, limit)

	var transients []entity.TransientEntity
	err := r.cp.GetConnection().NewRaw(query, args...).Scan(ctx, &transients)
	if err != nil {
		return nil, fmt.Errorf("failed to scan site transients: %w", err)
	}
	return transients, nil
}

func (r *transientsRepositoryImpl) DeleteTransient(ctx context.Context, name string, siteTransient bool) (int64, error) {
	if siteTransient && !r.tables.SiteTransientsInOptions() {
		res, err := r.cp.GetConnection().ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE site_id = ? AND meta_key IN (?, ?)", db.QuoteIdent(r.tables.Sitemeta())),
			r.networkSiteId, siteTransientPrefix+name, siteTransientTimeoutPrefix+name)
		if err != nil {
			return 0, fmt.Errorf("failed to delete site transient %s: %w", name, err)
		}
		return res.RowsAffected()
	}

	valuePrefix, timeoutPrefix := transientPrefix, transientTimeoutPrefix
	if siteTransient {
		valuePrefix, timeoutPrefix = siteTransientPrefix, siteTransientTimeoutPrefix
	}

	res, err := r.cp.GetConnection().ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE option_name IN (?, ?)", db.QuoteIdent(r.tables.Options())),
		valuePrefix+name, timeoutPrefix+name)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transient %s: %w", name, err)
	}
	return res.RowsAffected()
}
