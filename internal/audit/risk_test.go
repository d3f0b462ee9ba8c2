package audit

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		action string
		result Result
		want   RiskTier
	}{
		{"delete_user", ResultSuccess, RiskHigh},
		{"delete_user", ResultFailure, RiskHigh},
		{"assign_role", ResultSuccess, RiskHigh},
		{"export_audit", ResultSuccess, RiskHigh},
		{"login", ResultSuccess, RiskMedium},
		{"login", ResultFailure, RiskHigh},
		{"create_project", ResultSuccess, RiskMedium},
		{"update_workflow", ResultFailure, RiskHigh},
		{"view_dashboard", ResultSuccess, RiskLow},
		{"view_dashboard", ResultFailure, RiskMedium},
		{"", ResultSuccess, RiskLow},
	}
	for _, tc := range cases {
		if got := Classify(tc.action, tc.result); got != tc.want {
			t.Fatalf("Classify(%q, %q) = %q, want %q", tc.action, tc.result, got, tc.want)
		}
	}
}

func TestRetentionCutoff(t *testing.T) {
	policy := DefaultRetentionPolicy()
	now := mustParse(t, "2026-06-01T00:00:00Z")

	if got := policy.Cutoff(RiskLow, now); !got.Equal(now.AddDate(0, 0, -90)) {
		t.Fatalf("low cutoff = %v", got)
	}
	if got := policy.Cutoff(RiskHigh, now); !got.Equal(now.AddDate(0, 0, -365)) {
		t.Fatalf("high cutoff = %v", got)
	}
	if got := policy.Cutoff(RiskTier("unknown"), now); !got.IsZero() {
		t.Fatalf("unknown tier cutoff should be zero, got %v", got)
	}
}
