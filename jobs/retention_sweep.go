package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/praetor-io/praetor/internal/audit"
	jobmetrics "github.com/praetor-io/praetor/internal/jobs"
)

// RetentionSweepJob removes audit entries that outlived their risk
// tier's retention window.
type RetentionSweepJob struct {
	Audit   *audit.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRetentionSweepJob initialises the sweep handler.
func NewRetentionSweepJob(auditSvc *audit.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *RetentionSweepJob {
	return &RetentionSweepJob{Audit: auditSvc, Logger: logger, Metrics: metrics}
}

// Handle executes one retention sweep.
func (j *RetentionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("retention sweep: handler not configured")
	}
	var payload RetentionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAuditRetentionSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("run_id", payload.RunID))
	logger.Info("starting retention sweep")

	result, err := j.Audit.Sweep(ctx)
	if err != nil {
		resultErr = err
		logger.Error("sweep failed", slog.Any("error", err))
		return resultErr
	}

	for tier, deleted := range result.Deleted {
		if deleted > 0 {
			logger.Info("swept expired entries",
				slog.String("tier", string(tier)),
				slog.Int64("deleted", deleted),
			)
		}
		j.metrics().AddSwept(string(tier), deleted)
	}
	logger.Info("completed retention sweep", slog.Int64("total_deleted", result.Total()))
	return resultErr
}

func (j *RetentionSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditRetentionSweep))
	}
	return slog.Default().With(slog.String("job", TaskAuditRetentionSweep))
}

func (j *RetentionSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
