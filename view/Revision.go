package view

const (
	SkippedPostNotFound    = "post_not_found"
	SkippedUnpublishedPost = "unpublished_post"
)

type RevisionCleanupResult struct {
	Deleted    int    `json:"deleted"`
	BytesFreed int64  `json:"bytesFreed"`
	Skipped    string `json:"skipped,omitempty"`
}

type BulkRevisionCleanupResult struct {
	Deleted      int   `json:"deleted"`
	BytesFreed   int64 `json:"bytesFreed"`
	SkippedPosts int   `json:"skippedPosts"`
}
