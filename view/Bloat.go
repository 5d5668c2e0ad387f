package view

type BloatType string

const (
	BloatRevisions           BloatType = "revisions"
	BloatAutoDrafts          BloatType = "auto_drafts"
	BloatTrashedPosts        BloatType = "trashed_posts"
	BloatSpamComments        BloatType = "spam_comments"
	BloatTrashedComments     BloatType = "trashed_comments"
	BloatExpiredTransients   BloatType = "expired_transients"
	BloatOrphanedPostmeta    BloatType = "orphaned_postmeta"
	BloatOrphanedCommentmeta BloatType = "orphaned_commentmeta"
	BloatOrphanedTermmeta    BloatType = "orphaned_termmeta"
	BloatOrphanedUsermeta    BloatType = "orphaned_usermeta"
)

type BloatSummary map[BloatType]int

type TableSize struct {
	TableName string `json:"tableName"`
	Engine    string `json:"engine"`
	RowCount  int64  `json:"rowCount"`
	SizeBytes int64  `json:"sizeBytes"`
	Overhead  int64  `json:"overhead"`
}

type DatabaseStats struct {
	DatabaseSize              int64        `json:"databaseSize"`
	TotalOverhead             int64        `json:"totalOverhead"`
	TableSizes                []TableSize  `json:"tableSizes"`
	Bloat                     BloatSummary `json:"bloat"`
	EstimatedReclaimableSpace int64        `json:"estimatedReclaimableSpace"`
}
