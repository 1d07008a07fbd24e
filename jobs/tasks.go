package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDepreciationRun is the task type for the monthly depreciation batch.
	TaskDepreciationRun = "depreciation:run_monthly"
)

// DepreciationRunPayload selects what the batch processes. A zero TenantID
// fans out across every tenant with active assets; an empty AsOf defaults to
// the previous calendar month at handling time.
type DepreciationRunPayload struct {
	TenantID int64  `json:"tenant_id,omitempty"`
	AsOf     string `json:"as_of,omitempty"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// Month parses AsOf (YYYY-MM); the zero time signals "previous month".
func (p DepreciationRunPayload) Month() (time.Time, error) {
	if p.AsOf == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01", p.AsOf)
}

// NewDepreciationRunTask constructs an Asynq task.
func NewDepreciationRunTask(payload DepreciationRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDepreciationRun, data), nil
}
