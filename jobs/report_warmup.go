package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ericsoloffconsulting/service-inv-write-off/internal/jobs"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/writeoff"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReportWarmupJob recomputes the write-off report into the cache so the
// first page load after a cache expiry stays fast.
type ReportWarmupJob struct {
	Service *writeoff.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(svc *writeoff.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Service: svc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("report warmup: handler not configured")
	}
	tracker := j.metrics().Track(TaskReportWarmup)
	logger := j.logger()
	started := j.now()
	logger.Info("starting report warmup")

	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	report := j.Service.Report(runCtx, started)
	logger.Info("completed report warmup",
		slog.Int("rows", len(report.Rows)),
		slog.Bool("truncated", report.Truncated),
		slog.Duration("duration", time.Since(started)))
	return tracker.End(nil)
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
