package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// ScanHistoryEntity rows are append-only; nothing in this service updates
// or deletes them.
type ScanHistoryEntity struct {
	bun.BaseModel `bun:"table:sitesweep_scan_history"`

	Id           int64     `bun:"id,pk,autoincrement"`
	ScanType     string    `bun:"scan_type,notnull"`
	ItemsFound   int       `bun:"items_found,notnull"`
	ItemsCleaned int       `bun:"items_cleaned,notnull"`
	BytesFreed   int64     `bun:"bytes_freed,notnull"`
	Details      string    `bun:"details"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}
