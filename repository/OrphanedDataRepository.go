package repository

import (
	"context"
	"fmt"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
)

// OrphanedDataRepository locates and removes meta and relationship rows
// whose parent record no longer exists.
//
// Deletions are single-statement joined DELETEs, so orphan status is
// re-evaluated by the engine at delete time; there is no window between a
// "find IDs" step and a "delete by ID" step in which a parent could be
// recreated. MySQL does not allow LIMIT on a multi-table DELETE, so batching
// is done through a derived table of candidate keys and the orphan condition
// is repeated against the outer row.
type OrphanedDataRepository interface {
	CountOrphanedMeta(ctx context.Context, metaType view.MetaType) (int, error)
	FindOrphanedMeta(ctx context.Context, metaType view.MetaType, limit int) ([]int64, error)
	DeleteOrphanedMetaBatch(ctx context.Context, metaType view.MetaType, batchSize int) (int64, error)

	CountOrphanedRelationships(ctx context.Context) (int, error)
	FindOrphanedRelationships(ctx context.Context, limit int) ([]view.RelationshipRef, error)
	DeleteOrphanedRelationshipsByPostBatch(ctx context.Context, batchSize int) (int64, error)
	DeleteOrphanedRelationshipsByTermBatch(ctx context.Context, batchSize int) (int64, error)
}

type orphanedDataRepositoryImpl struct {
	cp     db.ConnectionProvider
	tables *db.Tables
}

func NewOrphanedDataRepository(cp db.ConnectionProvider, tables *db.Tables) OrphanedDataRepository {
	return &orphanedDataRepositoryImpl{cp: cp, tables: tables}
}

type metaJoin struct {
	metaTable    string
	keyColumn    string
	fkColumn     string
	parentTable  string
	parentColumn string
}

func (r *orphanedDataRepositoryImpl) joinFor(metaType view.MetaType) (metaJoin, error) {
	switch metaType {
	case view.MetaPost:
		return metaJoin{r.tables.Postmeta(), "meta_id", "post_id", r.tables.Posts(), "ID"}, nil
	case view.MetaComment:
		return metaJoin{r.tables.Commentmeta(), "meta_id", "comment_id", r.tables.Comments(), "comment_ID"}, nil
	case view.MetaTerm:
		return metaJoin{r.tables.Termmeta(), "meta_id", "term_id", r.tables.Terms(), "term_id"}, nil
	case view.MetaUser:
		return metaJoin{r.tables.Usermeta(), "umeta_id", "user_id", r.tables.Users(), "ID"}, nil
	default:
		return metaJoin{}, fmt.Errorf("unknown meta type: %s", metaType)
	}
}

func (r *orphanedDataRepositoryImpl) CountOrphanedMeta(ctx context.Context, metaType view.MetaType) (int, error) {
	j, err := r.joinFor(metaType)
	if err != nil {
		return 0, err
	}

	var count int
	err = r.cp.GetConnection().NewRaw(fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s m
		LEFT JOIN %s p ON p.%s = m.%s
		WHERE p.%s IS NULL`,
		db.QuoteIdent(j.metaTable), db.QuoteIdent(j.parentTable),
		j.parentColumn, j.fkColumn, j.parentColumn)).Scan(ctx, &count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orphaned %s: %w", metaType, err)
	}
	return count, nil
}

func (r *orphanedDataRepositoryImpl) FindOrphanedMeta(ctx context.Context, metaType view.MetaType, limit int) ([]int64, error) {
	j, err := r.joinFor(metaType)
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = r.cp.GetConnection().NewRaw(fmt.Sprintf(`
		SELECT m.%s
		FROM %s m
		LEFT JOIN %s p ON p.%s = m.%s
		WHERE p.%s IS NULL
		ORDER BY m.%s
		LIMIT ?`,
		j.keyColumn, db.QuoteIdent(j.metaTable), db.QuoteIdent(j.parentTable),
		j.parentColumn, j.fkColumn, j.parentColumn, j.keyColumn),
		limit).Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned %s: %w", metaType, err)
	}
	return ids, nil
}

func (r *orphanedDataRepositoryImpl) DeleteOrphanedMetaBatch(ctx context.Context, metaType view.MetaType, batchSize int) (int64, error) {
	j, err := r.joinFor(metaType)
	if err != nil {
		return 0, err
	}

	meta := db.QuoteIdent(j.metaTable)
	parent := db.QuoteIdent(j.parentTable)

	res, err := r.cp.GetConnection().ExecContext(ctx, fmt.Sprintf(`
		DELETE m FROM %s m
		JOIN (
			SELECT m2.%s
			FROM %s m2
			LEFT JOIN %s p2 ON p2.%s = m2.%s
			WHERE p2.%s IS NULL
			ORDER BY m2.%s
			LIMIT ?
		) batch ON batch.%s = m.%s
		LEFT JOIN %s p ON p.%s = m.%s
		WHERE p.%s IS NULL`,
		meta,
		j.keyColumn, meta, parent, j.parentColumn, j.fkColumn, j.parentColumn, j.keyColumn,
		j.keyColumn, j.keyColumn,
		parent, j.parentColumn, j.fkColumn, j.parentColumn),
		batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphaned %s batch: %w", metaType, err)
	}
	return res.RowsAffected()
}

func (r *orphanedDataRepositoryImpl) CountOrphanedRelationships(ctx context.Context) (int, error) {
	tr := db.QuoteIdent(r.tables.TermRelationships())
	posts := db.QuoteIdent(r.tables.Posts())
	tt := db.QuoteIdent(r.tables.TermTaxonomy())

	// Two independent failure modes; a row orphaned both ways must still be
	// counted once.
	var count int
	err := r.cp.GetConnection().NewRaw(fmt.Sprintf(`
		SELECT COUNT(*) FROM (
			SELECT tr.object_id, tr.term_taxonomy_id
			FROM %s tr
			LEFT JOIN %s p ON p.ID = tr.object_id
			WHERE p.ID IS NULL
			UNION
			SELECT tr.object_id, tr.term_taxonomy_id
			FROM %s tr
			LEFT JOIN %s tt ON tt.term_taxonomy_id = tr.term_taxonomy_id
			WHERE tt.term_taxonomy_id IS NULL
		) orphaned`, tr, posts, tr, tt)).Scan(ctx, &count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orphaned relationships: %w", err)
	}
	return count, nil
}

func (r *orphanedDataRepositoryImpl) FindOrphanedRelationships(ctx context.Context, limit int) ([]view.RelationshipRef, error) {
	tr := db.QuoteIdent(r.tables.TermRelationships())
	posts := db.QuoteIdent(r.tables.Posts())
	tt := db.QuoteIdent(r.tables.TermTaxonomy())

	var rows []struct {
		ObjectId       int64 `bun:"object_id"`
		TermTaxonomyId int64 `bun:"term_taxonomy_id"`
	}
	err := r.cp.GetConnection().NewRaw(fmt.Sprintf(`
		SELECT object_id, term_taxonomy_id FROM (
			SELECT tr.object_id, tr.term_taxonomy_id
			FROM %s tr
			LEFT JOIN %s p ON p.ID = tr.object_id
			WHERE p.ID IS NULL
			UNION
			SELECT tr.object_id, tr.term_taxonomy_id
			FROM %s tr
			LEFT JOIN %s tt ON tt.term_taxonomy_id = tr.term_taxonomy_id
			WHERE tt.term_taxonomy_id IS NULL
		) orphaned
		ORDER BY object_id, term_taxonomy_id
		LIMIT ?`, tr, posts, tr, tt),
		limit).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned relationships: %w", err)
	}

	refs := make([]view.RelationshipRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, view.RelationshipRef{ObjectId: row.ObjectId, TermTaxonomyId: row.TermTaxonomyId})
	}
	return refs, nil
}

func (r *orphanedDataRepositoryImpl) DeleteOrphanedRelationshipsByPostBatch(ctx context.Context, batchSize int) (int64, error) {
	tr := db.QuoteIdent(r.tables.TermRelationships())
	posts := db.QuoteIdent(r.tables.Posts())

	res, err := r.cp.GetConnection().ExecContext(ctx, fmt.Sprintf(`
		DELETE tr FROM %s tr
		JOIN (
			SELECT tr2.object_id, tr2.term_taxonomy_id
			FROM %s tr2
			LEFT JOIN %s p2 ON p2.ID = tr2.object_id
			WHERE p2.ID IS NULL
			ORDER BY tr2.object_id, tr2.term_taxonomy_id
			LIMIT ?
		) batch ON batch.object_id = tr.object_id AND batch.term_taxonomy_id = tr.term_taxonomy_id
		LEFT JOIN %s p ON p.ID = tr.object_id
		WHERE p.ID IS NULL`, tr, tr, posts, posts),
		batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to delete relationships with missing post: %w", err)
	}
	return res.RowsAffected()
}

func (r *orphanedDataRepositoryImpl) DeleteOrphanedRelationshipsByTermBatch(ctx context.Context, batchSize int) (int64, error) {
	tr := db.QuoteIdent(r.tables.TermRelationships())
	tt := db.QuoteIdent(r.tables.TermTaxonomy())

	res, err := r.cp.GetConnection().ExecContext(ctx, fmt.Sprintf(`
		DELETE tr FROM %s tr
		JOIN (
			SELECT tr2.object_id, tr2.term_taxonomy_id
			FROM %s tr2
			LEFT JOIN %s tt2 ON tt2.term_taxonomy_id = tr2.term_taxonomy_id
			WHERE tt2.term_taxonomy_id IS NULL
			ORDER BY tr2.object_id, tr2.term_taxonomy_id
			LIMIT ?
		) batch ON batch.object_id = tr.object_id AND batch.term_taxonomy_id = tr.term_taxonomy_id
		LEFT JOIN %s tt ON tt.term_taxonomy_id = tr.term_taxonomy_id
		WHERE tt.term_taxonomy_id IS NULL`, tr, tr, tt, tt),
		batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to delete relationships with missing term: %w", err)
	}
	return res.RowsAffected()
}
