// Package jobs contains the asynq task definitions and handlers for
// background report warm-up and the nightly write-off queue sweep.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the asynq queue all tasks run on.
	QueueDefault = "default"

	// TaskReportWarmup recomputes the write-off report into the cache.
	TaskReportWarmup = "writeoff:report_warmup"

	// TaskQueuedSweep bulk-bills orders that have sat in the write-off
	// queue past the configured age.
	TaskQueuedSweep = "portal:queued_sweep"
)

// QueuedSweepPayload parameterizes one sweep run.
type QueuedSweepPayload struct {
	OlderThanHours int `json:"older_than_hours"`
	BudgetUnits    int `json:"budget_units"`
}

// NewReportWarmupTask builds the warm-up task.
func NewReportWarmupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskReportWarmup, nil), nil
}

// NewQueuedSweepTask builds a sweep task.
func NewQueuedSweepTask(olderThanHours, budgetUnits int) (*asynq.Task, error) {
	payload, err := json.Marshal(QueuedSweepPayload{
		OlderThanHours: olderThanHours,
		BudgetUnits:    budgetUnits,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQueuedSweep, payload), nil
}
