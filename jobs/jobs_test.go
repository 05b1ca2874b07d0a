package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/petcare/internal/jobs"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWarmer struct {
	calls int
	rows  int
	err   error
}

func (f *fakeWarmer) WarmSupplierSummary(ctx context.Context) (int, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("expected deadline")
	}
	return f.rows, f.err
}

type fakeCleaner struct {
	retention time.Duration
	removed   int64
}

func (f *fakeCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	f.retention = olderThan
	return f.removed, nil
}

func TestSummaryWarmupJob(t *testing.T) {
	warmer := &fakeWarmer{rows: 4}
	job := NewSummaryWarmupJob(warmer, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewSummaryWarmupTask("manual")
	require.NoError(t, err)
	require.Equal(t, TaskSummaryWarmup, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, warmer.calls)

	warmer.err = errors.New("redis down")
	require.ErrorContains(t, job.Handle(context.Background(), task), "redis down")

	err = job.Handle(context.Background(), asynq.NewTask(TaskSummaryWarmup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, 2, warmer.calls)
}

func TestIdempotencyCleanupJobDefaultsRetention(t *testing.T) {
	cleaner := &fakeCleaner{removed: 12}
	job := NewIdempotencyCleanupJob(cleaner, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, DefaultIdempotencyRetention, cleaner.retention)

	task, err = NewIdempotencyCleanupTask(time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Hour, cleaner.retention)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestJobsHealth(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{"no inspector", nil, http.StatusOK, 0},
		{"queue info", fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3}}, http.StatusOK, 3},
		{"redis down", fakeInspector{err: errors.New("dial tcp")}, http.StatusServiceUnavailable, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Route("/jobs", NewHandler(tc.inspector, quietLogger()).MountRoutes)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
			require.Equal(t, tc.status, rr.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			require.Equal(t, tc.pending, body.Pending)
		})
	}
}
