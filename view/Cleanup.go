package view

import "time"

type CleanupResult struct {
	Success        bool              `json:"success"`
	ItemsCleaned   int               `json:"itemsCleaned"`
	BytesFreed     int64             `json:"bytesFreed"`
	WasInterrupted bool              `json:"wasInterrupted"`
	Errors         map[string]string `json:"errors,omitempty"`
	ElapsedTime    float64           `json:"elapsedTime"`

	PreviewOnly bool           `json:"previewOnly,omitempty"`
	WouldDelete int            `json:"wouldDelete,omitempty"`
	Preview     map[string]int `json:"preview,omitempty"`
}

// CleanupOptions are per-invocation overrides for the scheduled task
// settings. Nil fields fall back to the configured values.
type CleanupOptions struct {
	SafeMode          *bool           `json:"safeMode,omitempty"`
	TimeBudgetSeconds *int            `json:"timeBudgetSeconds,omitempty"`
	OptimizeTables    *bool           `json:"optimizeTables,omitempty"`
	Tasks             map[string]bool `json:"tasks,omitempty"`
}

type TaskProgress struct {
	TotalItems     int               `json:"totalItems"`
	TotalBytes     int64             `json:"totalBytes"`
	CompletedTasks []string          `json:"completedTasks"`
	Errors         map[string]string `json:"errors,omitempty"`
	InterruptedAt  time.Time         `json:"interruptedAt"`
}

func (p *TaskProgress) IsCompleted(task string) bool {
	for _, t := range p.CompletedTasks {
		if t == task {
			return true
		}
	}
	return false
}

type ScanHistoryEntry struct {
	ScanType     string    `json:"scanType"`
	ItemsFound   int       `json:"itemsFound"`
	ItemsCleaned int       `json:"itemsCleaned"`
	BytesFreed   int64     `json:"bytesFreed"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
