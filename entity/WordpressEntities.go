package entity

import "time"

// Scan targets for raw queries against WordPress tables. The table names are
// resolved dynamically through db.Tables, so these are plain structs rather
// than bun models.

type RevisionEntity struct {
	Id         int64 `bun:"id"`
	PostParent int64 `bun:"post_parent"`
	RawSize    int64 `bun:"raw_size"`
}

type TransientEntity struct {
	Name            string `bun:"name"`
	ExpiresAt       int64  `bun:"expires_at"`
	SizeBytes       int64  `bun:"size_bytes"`
	IsSiteTransient bool   `bun:"-"`
}

type TableInfoEntity struct {
	Name      string `bun:"table_name"`
	Engine    string `bun:"engine"`
	RowCount  int64  `bun:"table_rows"`
	SizeBytes int64  `bun:"size_bytes"`
	DataFree  int64  `bun:"data_free"`
}

type CommentEntity struct {
	Id   int64     `bun:"comment_id"`
	Date time.Time `bun:"comment_date"`
}
