// Package jobs wires the asynq worker, cron scheduler, and the
// background handlers for audit retention sweeps and anomaly scans.
package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetentionSweep prunes audit entries past their
	// tier's retention window.
	TaskAuditRetentionSweep = "audit:retention_sweep"
	// TaskAuditAnomalyScan analyses a recent audit window for
	// suspicious patterns.
	TaskAuditAnomalyScan = "audit:anomaly_scan"
)

// RetentionSweepPayload carries the sweep run correlation id.
type RetentionSweepPayload struct {
	RunID string `json:"run_id"`
}

// NewRetentionSweepTask constructs a retention sweep task.
func NewRetentionSweepTask() (*asynq.Task, error) {
	data, err := json.Marshal(RetentionSweepPayload{RunID: uuid.NewString()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetentionSweep, data), nil
}

// AnomalyScanPayload bounds the window and tunes rule thresholds.
// Zero values fall back to configured defaults in the handler.
type AnomalyScanPayload struct {
	RunID                string `json:"run_id"`
	WindowHours          int    `json:"window_hours"`
	WindowLimit          int    `json:"window_limit"`
	FailedLoginThreshold int    `json:"failed_login_threshold"`
	IPActivityThreshold  int    `json:"ip_activity_threshold"`
}

// NewAnomalyScanTask constructs an anomaly scan task.
func NewAnomalyScanTask(windowHours, windowLimit, failedLoginThreshold, ipActivityThreshold int) (*asynq.Task, error) {
	data, err := json.Marshal(AnomalyScanPayload{
		RunID:                uuid.NewString(),
		WindowHours:          windowHours,
		WindowLimit:          windowLimit,
		FailedLoginThreshold: failedLoginThreshold,
		IPActivityThreshold:  ipActivityThreshold,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditAnomalyScan, data), nil
}
