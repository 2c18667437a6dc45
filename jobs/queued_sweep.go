package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp"
	jobmetrics "github.com/ericsoloffconsulting/service-inv-write-off/internal/jobs"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/portal"
)

// QueuedSweepJob auto-bills every order whose write-off queue stamp is
// older than the configured age. It runs through the same bulk service
// path as the portal, so the governance budget applies.
type QueuedSweepJob struct {
	Portal       *portal.Service
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
	DefaultAge   time.Duration
	DefaultUnits int
	clock        func() time.Time
}

// NewQueuedSweepJob wires dependencies for the sweep handler.
func NewQueuedSweepJob(svc *portal.Service, logger *slog.Logger, metrics *jobmetrics.Metrics, defaultAge time.Duration, defaultUnits int) *QueuedSweepJob {
	return &QueuedSweepJob{
		Portal:       svc,
		Logger:       logger,
		Metrics:      metrics,
		DefaultAge:   defaultAge,
		DefaultUnits: defaultUnits,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes queued-sweep tasks.
func (j *QueuedSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Portal == nil {
		return errors.New("queued sweep: handler not configured")
	}
	payload := QueuedSweepPayload{}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	age := j.DefaultAge
	if payload.OlderThanHours > 0 {
		age = time.Duration(payload.OlderThanHours) * time.Hour
	}
	units := j.DefaultUnits
	if payload.BudgetUnits > 0 {
		units = payload.BudgetUnits
	}

	tracker := j.metrics().Track(TaskQueuedSweep)
	logger := j.logger()
	cutoff := j.now().Add(-age)
	logger.Info("starting queued sweep", slog.Time("cutoff", cutoff))

	ids, err := j.Portal.QueuedOrderIDs(ctx, cutoff)
	if err != nil {
		logger.Error("load queued orders", slog.Any("error", err))
		return tracker.End(err)
	}
	if len(ids) == 0 {
		logger.Info("no queued orders past cutoff")
		return tracker.End(nil)
	}

	budget := erp.NewBudget(units)
	result := j.Portal.BulkAutoBill(ctx, ids, budget)
	logger.Info("completed queued sweep",
		slog.Int("candidates", len(ids)),
		slog.Int("billed", len(result.ProcessedIDs)),
		slog.Int("failed", len(result.FailedIDs)),
		slog.Bool("governance_stopped", result.GovernanceStopped),
		slog.Int("budget_remaining", budget.Remaining()))
	if result.GovernanceStopped {
		// Remaining orders stay queued and are picked up by the next run.
		logger.Warn("sweep stopped early on governance budget",
			slog.Int("remaining", len(ids)-result.Count))
	}
	return tracker.End(nil)
}

func (j *QueuedSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *QueuedSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskQueuedSweep))
	}
	return slog.Default().With(slog.String("job", TaskQueuedSweep))
}

func (j *QueuedSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
