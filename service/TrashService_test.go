package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTrashRepository struct {
	trashedPosts    []int64
	spamComments    []int64
	trashedComments []int64
	autoDrafts      []int64
	undeletable     map[int64]bool
	deletedPosts    []int64
	deletedComments []int64
}

func newFakeTrashRepository() *fakeTrashRepository {
	return &fakeTrashRepository{undeletable: make(map[int64]bool)}
}

func (f *fakeTrashRepository) CountTrashedPosts(ctx context.Context) (int, error) {
	return len(f.trashedPosts), nil
}

func (f *fakeTrashRepository) CountSpamComments(ctx context.Context) (int, error) {
	return len(f.spamComments), nil
}

func (f *fakeTrashRepository) CountTrashedComments(ctx context.Context) (int, error) {
	return len(f.trashedComments), nil
}

func (f *fakeTrashRepository) CountAutoDrafts(ctx context.Context) (int, error) {
	return len(f.autoDrafts), nil
}

func firstIds(ids []int64, limit int) []int64 {
	if len(ids) > limit {
		return ids[:limit]
	}
	return ids
}

func (f *fakeTrashRepository) GetTrashedPostIds(ctx context.Context, postTypes []string, olderThanDays int, limit int) ([]int64, error) {
	return firstIds(f.trashedPosts, limit), nil
}

func (f *fakeTrashRepository) GetCommentIds(ctx context.Context, status string, olderThanDays int, limit int) ([]int64, error) {
	if status == "spam" {
		return firstIds(f.spamComments, limit), nil
	}
	return firstIds(f.trashedComments, limit), nil
}

func (f *fakeTrashRepository) GetAutoDraftIds(ctx context.Context, limit int) ([]int64, error) {
	return firstIds(f.autoDrafts, limit), nil
}

func removeId(ids []int64, id int64) []int64 {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

func (f *fakeTrashRepository) DeletePost(ctx context.Context, postId int64) error {
	if f.undeletable[postId] {
		return errors.New("foreign key constraint fails")
	}
	f.trashedPosts = removeId(f.trashedPosts, postId)
	f.autoDrafts = removeId(f.autoDrafts, postId)
	f.deletedPosts = append(f.deletedPosts, postId)
	return nil
}

func (f *fakeTrashRepository) DeleteComment(ctx context.Context, commentId int64) error {
	if f.undeletable[commentId] {
		return errors.New("foreign key constraint fails")
	}
	f.spamComments = removeId(f.spamComments, commentId)
	f.trashedComments = removeId(f.trashedComments, commentId)
	f.deletedComments = append(f.deletedComments, commentId)
	return nil
}

func TestDeleteTrashedPostsRemovesAll(t *testing.T) {
	repo := newFakeTrashRepository()
	repo.trashedPosts = []int64{1, 2, 3}
	service := NewTrashService(repo)

	result, err := service.DeleteTrashedPosts(context.Background(), 0)

	assert.NoError(t, err)
	assert.Equal(t, 3, result.Deleted)
	assert.Equal(t, 0, result.Errors)
	assert.Empty(t, repo.trashedPosts)
}

func TestDeleteTrashedPostsCountsFailedRows(t *testing.T) {
	repo := newFakeTrashRepository()
	repo.trashedPosts = []int64{1, 2, 3}
	repo.undeletable[2] = true
	service := NewTrashService(repo)

	result, err := service.DeleteTrashedPosts(context.Background(), 0)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, []int64{2}, repo.trashedPosts)
}

func TestDeleteSpamCommentsLeavesTrashedComments(t *testing.T) {
	repo := newFakeTrashRepository()
	repo.spamComments = []int64{10, 11}
	repo.trashedComments = []int64{20}
	service := NewTrashService(repo)

	result, err := service.DeleteSpamComments(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)
	assert.Empty(t, repo.spamComments)
	assert.Equal(t, []int64{20}, repo.trashedComments)
}

func TestEmptyAllTrashAggregatesSteps(t *testing.T) {
	repo := newFakeTrashRepository()
	repo.trashedPosts = []int64{1, 2}
	repo.spamComments = []int64{10}
	repo.trashedComments = []int64{20}
	repo.autoDrafts = []int64{30, 31, 32}
	service := NewTrashService(repo)

	result, err := service.EmptyAllTrash(context.Background(), 30)

	assert.NoError(t, err)
	assert.Equal(t, 7, result.Deleted)
	assert.Empty(t, repo.trashedPosts)
	assert.Empty(t, repo.spamComments)
	assert.Empty(t, repo.trashedComments)
	assert.Empty(t, repo.autoDrafts)
}

func TestDeleteTrashedPostsStopsWhenNothingDeletable(t *testing.T) {
	repo := newFakeTrashRepository()
	// A full chunk of undeletable rows must not refetch forever.
	for i := int64(1); i <= int64(trashChunkSize); i++ {
		repo.trashedPosts = append(repo.trashedPosts, i)
		repo.undeletable[i] = true
	}
	service := NewTrashService(repo)

	result, err := service.DeleteTrashedPosts(context.Background(), 0)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Deleted)
	assert.Equal(t, trashChunkSize, result.Errors)
}
