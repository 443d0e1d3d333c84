package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardWarmup precomputes and caches dashboard totals.
	TaskDashboardWarmup = "dashboard:warmup"
)

// DashboardWarmupPayload selects the day to warm. An empty AsOf warms today.
type DashboardWarmupPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// NewDashboardWarmupTask constructs an Asynq task. asOf is a YYYY-MM-DD day or
// empty.
func NewDashboardWarmupTask(asOf string) (*asynq.Task, error) {
	if asOf != "" {
		if _, err := time.Parse(time.DateOnly, asOf); err != nil {
			return nil, fmt.Errorf("jobs: warmup day %q: %w", asOf, err)
		}
	}
	data, err := json.Marshal(DashboardWarmupPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, data, asynq.Queue(QueueDefault), asynq.Timeout(2*time.Minute)), nil
}
