package cleanup

import "context"

type runStatus string

const (
	statusComplete    runStatus = "complete"
	statusInterrupted runStatus = "interrupted"
	statusError       runStatus = "error"
	statusPreview     runStatus = "preview"
	statusSkipped     runStatus = "skipped"
)

// Subtask is one unit of cleanup work. Preview must be free of side
// effects; Run performs the actual deletions.
type Subtask interface {
	Name() string
	Preview(ctx context.Context) (int, error)
	Run(ctx context.Context) (SubtaskResult, error)
}

type SubtaskResult struct {
	Items int
	Bytes int64
}

type runConfig struct {
	lockName           string
	defaultBudget      int // seconds
	budgetSafetyBuffer int // seconds
	executionTimeHint  int // seconds
	optimizeTables     bool
	safeMode           bool
	// taskEnabled holds the configured default per subtask name. A nil
	// map enables everything. Per-invocation overrides win either way.
	taskEnabled map[string]bool
}
