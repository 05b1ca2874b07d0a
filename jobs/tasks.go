package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSummaryWarmup refreshes the cached supplier purchase summary.
	TaskSummaryWarmup = "purchasing:summary_warm"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "purchasing:idempotency_cleanup"
)

// SummaryWarmupPayload carries the trigger source for logging.
type SummaryWarmupPayload struct {
	Source string `json:"source"`
}

// NewSummaryWarmupTask builds a warm-up task.
func NewSummaryWarmupTask(source string) (*asynq.Task, error) {
	body, err := json.Marshal(SummaryWarmupPayload{Source: source})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryWarmup, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload sets how long processed keys are retained.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask builds a cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
