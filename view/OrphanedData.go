package view

type MetaType string

const (
	MetaPost    MetaType = "postmeta"
	MetaComment MetaType = "commentmeta"
	MetaTerm    MetaType = "termmeta"
	MetaUser    MetaType = "usermeta"
)

type OrphanCleanupResult struct {
	Deleted int64 `json:"deleted"`
}

type RelationshipRef struct {
	ObjectId       int64 `json:"objectId"`
	TermTaxonomyId int64 `json:"termTaxonomyId"`
}

// OrphanedDataListing samples orphaned rows for inspection before a
// cleanup run. Meta holds row ids per meta table.
type OrphanedDataListing struct {
	Meta          map[MetaType][]int64 `json:"meta"`
	Relationships []RelationshipRef    `json:"relationships"`
}

type TrashCleanupResult struct {
	Deleted int `json:"deleted"`
	Errors  int `json:"errors"`
}
