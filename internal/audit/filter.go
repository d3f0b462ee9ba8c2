package audit

import (
	"fmt"
	"time"
)

// Filter constrains queries, stats, and exports. Zero values mean the
// dimension is unconstrained.
type Filter struct {
	UserID       int64
	EnterpriseID int64
	Action       string
	ResourceType string
	ResourceID   string
	Result       Result
	RiskTier     RiskTier
	IPAddress    string
	From         time.Time
	To           time.Time
}

// Validate rejects inverted time ranges.
func (f Filter) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return fmt.Errorf("%w: time range inverted", ErrInvalidFilter)
	}
	return nil
}

// Matches reports whether the entry satisfies every constrained
// dimension.
func (f Filter) Matches(e Entry) bool {
	if f.UserID != 0 && e.UserID != f.UserID {
		return false
	}
	if f.EnterpriseID != 0 && e.EnterpriseID != f.EnterpriseID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	if f.Result != "" && e.Result != f.Result {
		return false
	}
	if f.RiskTier != "" && e.RiskTier != f.RiskTier {
		return false
	}
	if f.IPAddress != "" && e.Details.IPAddress != f.IPAddress {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}
