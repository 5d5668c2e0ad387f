package entity

import (
	"time"

	"github.com/uptrace/bun"
)

type LockEntity struct {
	bun.BaseModel `bun:"table:sitesweep_locks"`

	Name       string    `bun:"name,pk"`
	InstanceId string    `bun:"instance_id,notnull"`
	AcquiredAt time.Time `bun:"acquired_at,notnull"`
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	Version    int64     `bun:"version,notnull,default:1"`
}
