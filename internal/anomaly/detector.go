// Package anomaly analyses a bounded window of recent audit entries
// for suspicious behaviour patterns. Detection is a pure function:
// identical windows always yield an identical, order-stable report
// list. Enforcement and alerting belong to the callers.
package anomaly

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/praetor-io/praetor/internal/audit"
)

// ReportType tags the rule that produced a report.
type ReportType string

// Rule types, in evaluation order.
const (
	TypeFrequentFailedLogins ReportType = "frequent_failed_logins"
	TypeSuspiciousIPActivity ReportType = "suspicious_ip_activity"
	TypePrivilegeEscalation  ReportType = "privilege_escalation"
)

// Severity grades a report.
type Severity string

// Report severities.
const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Report is a transient finding referencing the triggering entries.
// The detector never persists reports.
type Report struct {
	Type        ReportType `json:"type"`
	Description string     `json:"description"`
	Severity    Severity   `json:"severity"`
	EntryIDs    []int64    `json:"entry_ids"`
}

// Thresholds tune the counting rules.
type Thresholds struct {
	// FailedLogins is the per-user (or per-ip) failed login count
	// that triggers a report.
	FailedLogins int
	// IPActivity is the per-ip total entry count that triggers a
	// report.
	IPActivity int
}

// DefaultThresholds returns the stock rule thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{FailedLogins: 5, IPActivity: 100}
}

// PrivilegeEscalationActions flag any occurrence in a window.
var PrivilegeEscalationActions = map[string]struct{}{
	"assign_role":      {},
	"revoke_role":      {},
	"change_role":      {},
	"grant_permission": {},
	"promote_user":     {},
}

// Detect evaluates every rule independently over the same window and
// returns reports in fixed rule order. Rules that match nothing
// produce no report.
func Detect(window []audit.Entry, t Thresholds) []Report {
	if t.FailedLogins <= 0 {
		t.FailedLogins = DefaultThresholds().FailedLogins
	}
	if t.IPActivity <= 0 {
		t.IPActivity = DefaultThresholds().IPActivity
	}

	var reports []Report
	reports = append(reports, detectFailedLogins(window, t.FailedLogins)...)
	reports = append(reports, detectIPActivity(window, t.IPActivity)...)
	reports = append(reports, detectPrivilegeEscalation(window)...)
	return reports
}

// detectFailedLogins groups failed login entries by user id, falling
// back to ip address when the user is unknown.
func detectFailedLogins(window []audit.Entry, threshold int) []Report {
	groups := make(map[string][]int64)
	for _, e := range window {
		if e.Action != "login" || e.Result != audit.ResultFailure {
			continue
		}
		key := "user:" + strconv.FormatInt(e.UserID, 10)
		if e.UserID == 0 {
			if e.Details.IPAddress == "" {
				continue
			}
			key = "ip:" + e.Details.IPAddress
		}
		groups[key] = append(groups[key], e.ID)
	}

	var reports []Report
	for _, key := range sortedKeys(groups) {
		ids := groups[key]
		if len(ids) < threshold {
			continue
		}
		reports = append(reports, Report{
			Type:        TypeFrequentFailedLogins,
			Description: fmt.Sprintf("%d failed logins for %s within the window", len(ids), key),
			Severity:    SeverityHigh,
			EntryIDs:    ids,
		})
	}
	return reports
}

// detectIPActivity flags addresses producing an outsized share of the
// window.
func detectIPActivity(window []audit.Entry, threshold int) []Report {
	groups := make(map[string][]int64)
	for _, e := range window {
		if e.Details.IPAddress == "" {
			continue
		}
		groups[e.Details.IPAddress] = append(groups[e.Details.IPAddress], e.ID)
	}

	var reports []Report
	for _, ip := range sortedKeys(groups) {
		ids := groups[ip]
		if len(ids) < threshold {
			continue
		}
		reports = append(reports, Report{
			Type:        TypeSuspiciousIPActivity,
			Description: fmt.Sprintf("%d audit entries from ip %s within the window", len(ids), ip),
			Severity:    SeverityMedium,
			EntryIDs:    ids,
		})
	}
	return reports
}

// detectPrivilegeEscalation aggregates every escalation-class entry
// into a single report.
func detectPrivilegeEscalation(window []audit.Entry) []Report {
	var ids []int64
	for _, e := range window {
		if _, ok := PrivilegeEscalationActions[e.Action]; ok {
			ids = append(ids, e.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return []Report{{
		Type:        TypePrivilegeEscalation,
		Description: fmt.Sprintf("%d privilege escalation actions within the window", len(ids)),
		Severity:    SeverityHigh,
		EntryIDs:    ids,
	}}
}

func sortedKeys(groups map[string][]int64) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
