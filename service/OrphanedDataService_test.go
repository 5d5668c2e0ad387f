package service

import (
	"context"
	"testing"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
	"github.com/stretchr/testify/assert"
)

type fakeOrphanedDataRepository struct {
	orphanedMeta      map[view.MetaType]int64
	orphanedByPost    int64
	orphanedByTerm    int64
	metaIds           map[view.MetaType][]int64
	relationshipRefs  []view.RelationshipRef
	metaBatchCalls    int
	relationshipCalls int
}

func newFakeOrphanedDataRepository() *fakeOrphanedDataRepository {
	return &fakeOrphanedDataRepository{orphanedMeta: make(map[view.MetaType]int64)}
}

func (f *fakeOrphanedDataRepository) CountOrphanedMeta(ctx context.Context, metaType view.MetaType) (int, error) {
	return int(f.orphanedMeta[metaType]), nil
}

func (f *fakeOrphanedDataRepository) FindOrphanedMeta(ctx context.Context, metaType view.MetaType, limit int) ([]int64, error) {
	ids := f.metaIds[metaType]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeOrphanedDataRepository) DeleteOrphanedMetaBatch(ctx context.Context, metaType view.MetaType, batchSize int) (int64, error) {
	f.metaBatchCalls++
	affected := f.orphanedMeta[metaType]
	if affected > int64(batchSize) {
		affected = int64(batchSize)
	}
	f.orphanedMeta[metaType] -= affected
	return affected, nil
}

func (f *fakeOrphanedDataRepository) CountOrphanedRelationships(ctx context.Context) (int, error) {
	return int(f.orphanedByPost + f.orphanedByTerm), nil
}

func (f *fakeOrphanedDataRepository) FindOrphanedRelationships(ctx context.Context, limit int) ([]view.RelationshipRef, error) {
	refs := f.relationshipRefs
	if len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

func (f *fakeOrphanedDataRepository) DeleteOrphanedRelationshipsByPostBatch(ctx context.Context, batchSize int) (int64, error) {
	f.relationshipCalls++
	affected := f.orphanedByPost
	if affected > int64(batchSize) {
		affected = int64(batchSize)
	}
	f.orphanedByPost -= affected
	return affected, nil
}

func (f *fakeOrphanedDataRepository) DeleteOrphanedRelationshipsByTermBatch(ctx context.Context, batchSize int) (int64, error) {
	f.relationshipCalls++
	affected := f.orphanedByTerm
	if affected > int64(batchSize) {
		affected = int64(batchSize)
	}
	f.orphanedByTerm -= affected
	return affected, nil
}

func TestDeleteOrphanedMetaBatchesUntilDrained(t *testing.T) {
	repo := newFakeOrphanedDataRepository()
	repo.orphanedMeta[view.MetaPost] = 2500
	service := NewOrphanedDataService(repo)

	result, err := service.DeleteOrphanedMeta(context.Background(), view.MetaPost)

	assert.NoError(t, err)
	assert.Equal(t, int64(2500), result.Deleted)
	// 1000, 1000, 500: the short batch ends the loop.
	assert.Equal(t, 3, repo.metaBatchCalls)
	assert.Equal(t, int64(0), repo.orphanedMeta[view.MetaPost])
}

func TestDeleteOrphanedMetaHonorsCallCeiling(t *testing.T) {
	repo := newFakeOrphanedDataRepository()
	repo.orphanedMeta[view.MetaComment] = 25000
	service := NewOrphanedDataService(repo)

	result, err := service.DeleteOrphanedMeta(context.Background(), view.MetaComment)

	assert.NoError(t, err)
	assert.Equal(t, int64(orphanCallCeiling), result.Deleted)
	assert.Equal(t, int64(15000), repo.orphanedMeta[view.MetaComment])
}

func TestDeleteOrphanedRelationshipsCoversPostAndTermSides(t *testing.T) {
	repo := newFakeOrphanedDataRepository()
	repo.orphanedByPost = 120
	repo.orphanedByTerm = 80
	service := NewOrphanedDataService(repo)

	result, err := service.DeleteOrphanedRelationships(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(200), result.Deleted)
	assert.Equal(t, int64(0), repo.orphanedByPost)
	assert.Equal(t, int64(0), repo.orphanedByTerm)
}

func TestDeleteAllOrphanedDataCoversEveryMetaType(t *testing.T) {
	repo := newFakeOrphanedDataRepository()
	repo.orphanedMeta[view.MetaPost] = 10
	repo.orphanedMeta[view.MetaComment] = 20
	repo.orphanedMeta[view.MetaTerm] = 30
	repo.orphanedMeta[view.MetaUser] = 40
	repo.orphanedByPost = 5
	service := NewOrphanedDataService(repo)

	result, err := service.DeleteAllOrphanedData(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(105), result.Deleted)
}

func TestDeleteOrphanedMetaStopsOnCanceledContext(t *testing.T) {
	repo := newFakeOrphanedDataRepository()
	repo.orphanedMeta[view.MetaPost] = 5000
	service := NewOrphanedDataService(repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := service.DeleteOrphanedMeta(ctx, view.MetaPost)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, repo.metaBatchCalls)
}

func TestListOrphanedDataSamplesWithoutDeleting(t *testing.T) {
	repo := newFakeOrphanedDataRepository()
	repo.metaIds = map[view.MetaType][]int64{
		view.MetaPost: {101, 102, 103},
		view.MetaUser: {201},
	}
	repo.relationshipRefs = []view.RelationshipRef{
		{ObjectId: 55, TermTaxonomyId: 9},
	}
	service := NewOrphanedDataService(repo)

	listing, err := service.ListOrphanedData(context.Background(), 2)

	assert.NoError(t, err)
	assert.Equal(t, []int64{101, 102}, listing.Meta[view.MetaPost])
	assert.Equal(t, []int64{201}, listing.Meta[view.MetaUser])
	assert.NotContains(t, listing.Meta, view.MetaComment)
	assert.Equal(t, repo.relationshipRefs, listing.Relationships)
	assert.Equal(t, 0, repo.metaBatchCalls)
	assert.Equal(t, 0, repo.relationshipCalls)
}
