package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/petcare/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SummaryWarmer recomputes and caches the supplier purchase summary.
type SummaryWarmer interface {
	WarmSupplierSummary(ctx context.Context) (int, error)
}

// SummaryWarmupJob keeps the open-range supplier summary hot in Redis.
type SummaryWarmupJob struct {
	Warmer  SummaryWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewSummaryWarmupJob wires dependencies for the warm-up handler.
func NewSummaryWarmupJob(warmer SummaryWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SummaryWarmupJob {
	return &SummaryWarmupJob{Warmer: warmer, Logger: logger, Metrics: metrics, Timeout: 30 * time.Second}
}

// Handle processes TaskSummaryWarmup tasks.
func (j *SummaryWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Warmer == nil {
		return errors.New("summary warmup: handler not configured")
	}
	var payload SummaryWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("summary warmup: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Source == "" {
		payload.Source = "schedule"
	}

	tracker := j.metrics().Track(TaskSummaryWarmup)
	defer func() { err = tracker.End(err) }()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	logger := j.logger().With(slog.String("source", payload.Source))
	start := time.Now()
	rows, err := j.Warmer.WarmSupplierSummary(ctx)
	if err != nil {
		logger.Error("warm supplier summary", slog.Any("error", err))
		return err
	}
	logger.Info("supplier summary warmed", slog.Int("suppliers", rows), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *SummaryWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSummaryWarmup))
	}
	return slog.Default().With(slog.String("job", TaskSummaryWarmup))
}

func (j *SummaryWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
