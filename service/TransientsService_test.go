package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
	"github.com/stretchr/testify/assert"
)

type fakeTransientsRepository struct {
	transients []entity.TransientEntity
	deleted    []string
}

func (f *fakeTransientsRepository) CountTimeoutRows(ctx context.Context) (int, error) {
	return len(f.transients), nil
}

func excludedName(name string, excludePrefixes []string) bool {
	for _, prefix := range excludePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (f *fakeTransientsRepository) GetExpiredTransients(ctx context.Context, now int64, excludePrefixes []string, limit int) ([]entity.TransientEntity, error) {
	var expired []entity.TransientEntity
	for _, t := range f.transients {
		if t.ExpiresAt < now && !excludedName(t.Name, excludePrefixes) {
			expired = append(expired, t)
		}
		if len(expired) == limit {
			break
		}
	}
	return expired, nil
}

func (f *fakeTransientsRepository) GetAllTransients(ctx context.Context, excludePrefixes []string, limit int) ([]entity.TransientEntity, error) {
	var all []entity.TransientEntity
	for _, t := range f.transients {
		if excludedName(t.Name, excludePrefixes) {
			continue
		}
		all = append(all, t)
		if len(all) == limit {
			break
		}
	}
	return all, nil
}

func (f *fakeTransientsRepository) DeleteTransient(ctx context.Context, name string, siteTransient bool) (int64, error) {
	var kept []entity.TransientEntity
	affected := int64(0)
	for _, t := range f.transients {
		if t.Name == name && t.IsSiteTransient == siteTransient {
			affected = 2
			continue
		}
		kept = append(kept, t)
	}
	f.transients = kept
	if affected > 0 {
		f.deleted = append(f.deleted, name)
	}
	return affected, nil
}

func TestDeleteExpiredTransients(t *testing.T) {
	repo := &fakeTransientsRepository{transients: []entity.TransientEntity{
		{Name: "old_feed", ExpiresAt: 1, SizeBytes: 100},
		{Name: "fresh_feed", ExpiresAt: 1<<62 - 1, SizeBytes: 100},
	}}
	svc := NewTransientsService(repo, false, nil)

	result, err := svc.DeleteExpiredTransients(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, int64(100), result.BytesFreed)
	assert.Equal(t, []string{"old_feed"}, repo.deleted)
}

func TestDeleteTransientsExternalObjectCacheIsNoop(t *testing.T) {
	repo := &fakeTransientsRepository{transients: []entity.TransientEntity{
		{Name: "old_feed", ExpiresAt: 1},
	}}
	svc := NewTransientsService(repo, true, nil)

	result, err := svc.DeleteAllTransients(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Deleted)
	assert.Empty(t, repo.deleted)
}

func TestDeleteTransientsHonorsExclusionPrefixes(t *testing.T) {
	repo := &fakeTransientsRepository{transients: []entity.TransientEntity{
		{Name: "wc_session_abc", ExpiresAt: 1, SizeBytes: 10},
		{Name: "old_feed", ExpiresAt: 1, SizeBytes: 10},
	}}
	svc := NewTransientsService(repo, false, []string{"wc_session_"})

	result, err := svc.DeleteExpiredTransients(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, []string{"old_feed"}, repo.deleted)
}

func TestDeleteExpiredTransientsNotStalledByExcludedRows(t *testing.T) {
	// A full fetch batch of excluded names must not hide expired
	// transients ordered after them.
	repo := &fakeTransientsRepository{}
	for i := 0; i < transientBatchSize; i++ {
		repo.transients = append(repo.transients, entity.TransientEntity{
			Name:      fmt.Sprintf("wc_session_%d", i),
			ExpiresAt: 1,
			SizeBytes: 10,
		})
	}
	repo.transients = append(repo.transients, entity.TransientEntity{Name: "stale_cache", ExpiresAt: 1, SizeBytes: 25})
	svc := NewTransientsService(repo, false, []string{"wc_session_"})

	result, err := svc.DeleteExpiredTransients(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, int64(25), result.BytesFreed)
	assert.Equal(t, []string{"stale_cache"}, repo.deleted)
}

func TestListExpiredTransientsFiltersExcluded(t *testing.T) {
	repo := &fakeTransientsRepository{transients: []entity.TransientEntity{
		{Name: "wc_session_abc", ExpiresAt: 1},
		{Name: "old_feed", ExpiresAt: 1},
	}}
	svc := NewTransientsService(repo, false, []string{"wc_session_"})

	infos, err := svc.ListExpiredTransients(context.Background(), 10)

	assert.NoError(t, err)
	assert.Len(t, infos, 1)
	assert.Equal(t, "old_feed", infos[0].Name)
}
