package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/praetor-io/praetor/internal/anomaly"
	"github.com/praetor-io/praetor/internal/audit"
	jobmetrics "github.com/praetor-io/praetor/internal/jobs"
)

// AnomalyScanJob loads a bounded window of recent audit entries and
// runs the detector over it. Reports are logged and counted; alerting
// and lockouts stay with external consumers.
type AnomalyScanJob struct {
	Audit   *audit.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAnomalyScanJob initialises the anomaly scan handler.
func NewAnomalyScanJob(auditSvc *audit.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnomalyScanJob {
	return &AnomalyScanJob{
		Audit:   auditSvc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the anomaly scan logic.
func (j *AnomalyScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("anomaly scan: handler not configured")
	}
	var payload AnomalyScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowHours <= 0 {
		payload.WindowHours = 24
	}
	if payload.WindowLimit <= 0 {
		payload.WindowLimit = 5000
	}

	tracker := j.metrics().Track(TaskAuditAnomalyScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("run_id", payload.RunID),
		slog.Int("window_hours", payload.WindowHours),
		slog.Int("window_limit", payload.WindowLimit),
	)
	logger.Info("starting anomaly scan")

	now := j.now()
	window, err := j.loadWindow(ctx, now, payload)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	reports := anomaly.Detect(window, anomaly.Thresholds{
		FailedLogins: payload.FailedLoginThreshold,
		IPActivity:   payload.IPActivityThreshold,
	})
	for _, r := range reports {
		logger.Warn("audit anomaly detected",
			slog.String("rule", string(r.Type)),
			slog.String("severity", string(r.Severity)),
			slog.String("description", r.Description),
			slog.Int("entries", len(r.EntryIDs)),
		)
		j.metrics().AddAnomalies(string(r.Type), string(r.Severity), 1)
	}

	logger.Info("completed anomaly scan",
		slog.Int("window_entries", len(window)),
		slog.Int("reports", len(reports)),
	)
	return resultErr
}

// loadWindow fetches the newest entries inside the configured time
// window, capped at the window limit.
func (j *AnomalyScanJob) loadWindow(ctx context.Context, now time.Time, payload AnomalyScanPayload) ([]audit.Entry, error) {
	filter := audit.Filter{
		From: now.Add(-time.Duration(payload.WindowHours) * time.Hour),
		To:   now,
	}
	result, err := j.Audit.Query(ctx, filter, 1, payload.WindowLimit)
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

func (j *AnomalyScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditAnomalyScan))
	}
	return slog.Default().With(slog.String("job", TaskAuditAnomalyScan))
}

func (j *AnomalyScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AnomalyScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
