package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
)

type RevisionsRepository interface {
	CountRevisions(ctx context.Context) (int, error)
	// GetRevisions returns the revisions of a post newest-first, each with a
	// raw content size (content, title, excerpt, slug and meta lengths).
	GetRevisions(ctx context.Context, postId int64) ([]entity.RevisionEntity, error)
	// GetPostStatus returns the parent post status; found=false when the
	// post row no longer exists.
	GetPostStatus(ctx context.Context, postId int64) (string, bool, error)
	GetPostIdsWithRevisions(ctx context.Context) ([]int64, error)
	// DeleteRevision removes the revision row together with its meta.
	DeleteRevision(ctx context.Context, revisionId int64) error
}

type revisionsRepositoryImpl struct {
	cp     db.ConnectionProvider
	tables *db.Tables
}

func NewRevisionsRepository(cp db.ConnectionProvider, tables *db.Tables) RevisionsRepository {
	return &revisionsRepositoryImpl{cp: cp, tables: tables}
}

func (r *revisionsRepositoryImpl) CountRevisions(ctx context.Context) (int, error) {
	var count int
	err := r.cp.GetConnection().NewRaw(
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE post_type = 'revision'", db.QuoteIdent(r.tables.Posts())),
	).Scan(ctx, &count)
	if err != nil {
		return 0, fmt.Errorf("failed to count revisions: %w", err)
	}
	return count, nil
}

func (r *revisionsRepositoryImpl) GetRevisions(ctx context.Context, postId int64) ([]entity.RevisionEntity, error) {
	posts := db.QuoteIdent(r.tables.Posts())
	postmeta := db.QuoteIdent(r.tables.Postmeta())

	var revisions []entity.RevisionEntity
	err := r.cp.GetConnection().NewRaw(fmt.Sprintf(`
		SELECT p.ID AS id,
		       p.post_parent AS post_parent,
		       CHAR_LENGTH(p.post_content) + CHAR_LENGTH(p.post_title) +
		       CHAR_LENGTH(p.post_excerpt) + CHAR_LENGTH(p.post_name) +
		       COALESCE((SELECT SUM(CHAR_LENGTH(pm.meta_key) + CHAR_LENGTH(COALESCE(pm.meta_value, '')))
		                 FROM %s pm WHERE pm.post_id = p.ID), 0) AS raw_size
		FROM %s p
		WHERE p.post_parent = ? AND p.post_type = 'revision'
		ORDER BY p.post_date DESC, p.ID DESC`, postmeta, posts),
		postId).Scan(ctx, &revisions)
	if err != nil {
		return nil, fmt.Errorf("failed to load revisions for post %d: %w", postId, err)
	}
	return revisions, nil
}

func (r *revisionsRepositoryImpl) GetPostStatus(ctx context.Context, postId int64) (string, bool, error) {
	var status string
	err := r.cp.GetConnection().NewRaw(
		fmt.Sprintf("SELECT post_status FROM %s WHERE ID = ?", db.QuoteIdent(r.tables.Posts())),
		postId).Scan(ctx, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get post status: %w", err)
	}
	return status, true, nil
}

func (r *revisionsRepositoryImpl) GetPostIdsWithRevisions(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.cp.GetConnection().NewRaw(fmt.Sprintf(`
		SELECT DISTINCT post_parent FROM %s
		WHERE post_type = 'revision' AND post_parent > 0
		ORDER BY post_parent`, db.QuoteIdent(r.tables.Posts())),
	).Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts with revisions: %w", err)
	}
	return ids, nil
}

func (r *revisionsRepositoryImpl) DeleteRevision(ctx context.Context, revisionId int64) error {
	conn := r.cp.GetConnection()

	_, err := conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE post_id = ?", db.QuoteIdent(r.tables.Postmeta())),
		revisionId)
	if err != nil {
		return fmt.Errorf("failed to delete revision meta: %w", err)
	}

	_, err = conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE ID = ? AND post_type = 'revision'", db.QuoteIdent(r.tables.Posts())),
		revisionId)
	if err != nil {
		return fmt.Errorf("failed to delete revision: %w", err)
	}
	return nil
}
