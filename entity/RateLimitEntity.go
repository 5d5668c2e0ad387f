package entity

import (
	"time"

	"github.com/uptrace/bun"
)

type RateLimitEntity struct {
	bun.BaseModel `bun:"table:sitesweep_rate_limit"`

	Actor        string    `bun:"actor,pk"`
	WindowStart  time.Time `bun:"window_start,pk"`
	RequestCount int       `bun:"request_count,notnull"`
}
