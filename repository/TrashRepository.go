package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
)

const autoDraftRetentionDays = 7

// TrashRepository handles trashed and spam content. Deletion goes through
// the cascading DeletePost/DeleteComment primitives so that dependent rows
// (meta, comments of a post, term relationships) are removed as well, the
// same way the platform's own delete would.
type TrashRepository interface {
	CountTrashedPosts(ctx context.Context) (int, error)
	CountSpamComments(ctx context.Context) (int, error)
	CountTrashedComments(ctx context.Context) (int, error)
	CountAutoDrafts(ctx context.Context) (int, error)

	GetTrashedPostIds(ctx context.Context, postTypes []string, olderThanDays int, limit int) ([]int64, error)
	GetCommentIds(ctx context.Context, status string, olderThanDays int, limit int) ([]int64, error)
	GetAutoDraftIds(ctx context.Context, limit int) ([]int64, error)

	DeletePost(ctx context.Context, postId int64) error
	DeleteComment(ctx context.Context, commentId int64) error
}

type trashRepositoryImpl struct {
	cp     db.ConnectionProvider
	tables *db.Tables
}

func NewTrashRepository(cp db.ConnectionProvider, tables *db.Tables) TrashRepository {
	return &trashRepositoryImpl{cp: cp, tables: tables}
}

func (r *trashRepositoryImpl) CountTrashedPosts(ctx context.Context) (int, error) {
	return r.scalarCount(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE post_status = 'trash'", db.QuoteIdent(r.tables.Posts())))
}

func (r *trashRepositoryImpl) CountSpamComments(ctx context.Context) (int, error) {
	return r.scalarCount(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE comment_approved = 'spam'", db.QuoteIdent(r.tables.Comments())))
}

func (r *trashRepositoryImpl) CountTrashedComments(ctx context.Context) (int, error) {
	return r.scalarCount(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE comment_approved = 'trash'", db.QuoteIdent(r.tables.Comments())))
}

func (r *trashRepositoryImpl) CountAutoDrafts(ctx context.Context) (int, error) {
	return r.scalarCount(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE post_status = 'auto-draft'", db.QuoteIdent(r.tables.Posts())))
}

func (r *trashRepositoryImpl) scalarCount(ctx context.Context, query string, args ...interface{}) (int, error) {
	var count int
	err := r.cp.GetConnection().NewRaw(query, args...).Scan(ctx, &count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}

func (r *trashRepositoryImpl) GetTrashedPostIds(ctx context.Context, postTypes []string, olderThanDays int, limit int) ([]int64, error) {
	query := fmt.Sprintf("SELECT ID FROM %s WHERE post_status = 'trash'", db.QuoteIdent(r.tables.Posts()))
	var args []interface{}

	if len(postTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(postTypes)), ", ")
		query += fmt.Sprintf(" AND post_type IN (%s)", placeholders)
		for _, t := range postTypes {
			args = append(args, t)
		}
	}
	if olderThanDays > 0 {
		query += " AND post_modified < NOW() - INTERVAL ? DAY"
		args = append(args, olderThanDays)
	}
	query += " ORDER BY ID LIMIT ?"
	args = append(args, limit)

	var ids []int64
	err := r.cp.GetConnection().NewRaw(query, args...).Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list trashed posts: %w", err)
	}
	return ids, nil
}

func (r *trashRepositoryImpl) GetCommentIds(ctx context.Context, status string, olderThanDays int, limit int) ([]int64, error) {
	query := fmt.Sprintf("SELECT comment_ID FROM %s WHERE comment_approved = ?", db.QuoteIdent(r.tables.Comments()))
	args := []interface{}{status}

	if olderThanDays > 0 {
		query += " AND comment_date < NOW() - INTERVAL ? DAY"
		args = append(args, olderThanDays)
	}
	query += " ORDER BY comment_ID LIMIT ?"
	args = append(args, limit)

	var ids []int64
	err := r.cp.GetConnection().NewRaw(query, args...).Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s comments: %w", status, err)
	}
	return ids, nil
}

func (r *trashRepositoryImpl) GetAutoDraftIds(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	err := r.cp.GetConnection().NewRaw(fmt.Sprintf(`
		SELECT ID FROM %s
		WHERE post_status = 'auto-draft' AND post_modified < NOW() - INTERVAL ? DAY
		ORDER BY ID LIMIT ?`, db.QuoteIdent(r.tables.Posts())),
		autoDraftRetentionDays, limit).Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list auto-drafts: %w", err)
	}
	return ids, nil
}

func (r *trashRepositoryImpl) DeletePost(ctx context.Context, postId int64) error {
	conn := r.cp.GetConnection()
	posts := db.QuoteIdent(r.tables.Posts())
	comments := db.QuoteIdent(r.tables.Comments())

	// Meta of the post's comments first, then the comments, then the post's
	// own dependents, then the post row.
	_, err := conn.ExecContext(ctx, fmt.Sprintf(`
		DELETE cm FROM %s cm
		JOIN %s c ON c.comment_ID = cm.comment_id
		WHERE c.comment_post_ID = ?`, db.QuoteIdent(r.tables.Commentmeta()), comments),
		postId)
	if err != nil {
		return fmt.Errorf("failed to delete comment meta of post %d: %w", postId, err)
	}

	_, err = conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE comment_post_ID = ?", comments), postId)
	if err != nil {
		return fmt.Errorf("failed to delete comments of post %d: %w", postId, err)
	}

	_, err = conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE object_id = ?", db.QuoteIdent(r.tables.TermRelationships())), postId)
	if err != nil {
		return fmt.Errorf("failed to delete term relationships of post %d: %w", postId, err)
	}

	_, err = conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE post_id = ?", db.QuoteIdent(r.tables.Postmeta())), postId)
	if err != nil {
		return fmt.Errorf("failed to delete meta of post %d: %w", postId, err)
	}

	// Child revisions go with the parent.
	_, err = conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE post_parent = ? AND post_type = 'revision'", posts), postId)
	if err != nil {
		return fmt.Errorf("failed to delete revisions of post %d: %w", postId, err)
	}

	_, err = conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE ID = ?", posts), postId)
	if err != nil {
		return fmt.Errorf("failed to delete post %d: %w", postId, err)
	}
	return nil
}

func (r *trashRepositoryImpl) DeleteComment(ctx context.Context, commentId int64) error {
	conn := r.cp.GetConnection()

	_, err := conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE comment_id = ?", db.QuoteIdent(r.tables.Commentmeta())), commentId)
	if err != nil {
		return fmt.Errorf("failed to delete meta of comment %d: %w", commentId, err)
	}

	_, err = conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE comment_ID = ?", db.QuoteIdent(r.tables.Comments())), commentId)
	if err != nil {
		return fmt.Errorf("failed to delete comment %d: %w", commentId, err)
	}
	return nil
}
