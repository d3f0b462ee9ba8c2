// Package audit implements the append-only audit pipeline: risk
// classification, recording, querying, aggregate statistics, export,
// and tiered retention sweeps over immutable entries.
package audit

import (
	"errors"
	"time"
)

// Sentinel errors surfaced to callers. Denied permissions are never
// errors; these cover misuse of the pipeline itself.
var (
	// ErrValidation indicates a Record event missing required fields.
	ErrValidation = errors.New("audit: invalid event")
	// ErrInvalidFilter indicates a bad query/export filter.
	ErrInvalidFilter = errors.New("audit: invalid filter")
	// ErrUnsupportedFormat indicates an unknown export format.
	ErrUnsupportedFormat = errors.New("audit: unsupported export format")
)

// Result is the outcome of an audited action.
type Result string

// Audited outcomes.
const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// RiskTier classifies how sensitive an audited action is.
type RiskTier string

// Risk tiers, least to most sensitive.
const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Tiers lists all risk tiers.
func Tiers() []RiskTier {
	return []RiskTier{RiskLow, RiskMedium, RiskHigh}
}

// Details carries request metadata attached to an entry.
type Details struct {
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Entry is an immutable audit record. It is created once by the
// pipeline and only ever removed by a retention sweep.
type Entry struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	UserID       int64     `json:"user_id"`
	EnterpriseID int64     `json:"enterprise_id,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Details      Details   `json:"details"`
	Result       Result    `json:"result"`
	RiskTier     RiskTier  `json:"risk_tier"`
}

// RetentionPolicy maps a risk tier to its maximum age in days.
type RetentionPolicy map[RiskTier]int

// DefaultRetentionPolicy keeps high-risk entries a full year.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RiskHigh:   365,
		RiskMedium: 180,
		RiskLow:    90,
	}
}

// Cutoff returns the timestamp before which entries of the tier have
// outlived their retention window.
func (p RetentionPolicy) Cutoff(tier RiskTier, now time.Time) time.Time {
	days, ok := p[tier]
	if !ok {
		return time.Time{}
	}
	return now.AddDate(0, 0, -days)
}
