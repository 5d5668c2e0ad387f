package view

import "time"

type TransientInfo struct {
	Name            string    `json:"name"`
	IsSiteTransient bool      `json:"isSiteTransient"`
	SizeBytes       int64     `json:"sizeBytes"`
	ExpiredAt       time.Time `json:"expiredAt"`
}

type TransientCleanupResult struct {
	Deleted    int   `json:"deleted"`
	BytesFreed int64 `json:"bytesFreed"`
}
