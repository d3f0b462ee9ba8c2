package audit

// HighRiskActions always classify as high regardless of outcome.
var HighRiskActions = map[string]struct{}{
	"delete_user":       {},
	"delete_enterprise": {},
	"delete_department": {},
	"delete_team":       {},
	"delete_project":    {},
	"delete_dataset":    {},
	"delete_workflow":   {},
	"assign_role":       {},
	"revoke_role":       {},
	"change_role":       {},
	"grant_permission":  {},
	"export_audit":      {},
	"export_data":       {},
}

// MediumRiskActions classify as medium on success.
var MediumRiskActions = map[string]struct{}{
	"create_user":       {},
	"create_enterprise": {},
	"create_department": {},
	"create_team":       {},
	"create_project":    {},
	"create_dataset":    {},
	"create_workflow":   {},
	"update_user":       {},
	"update_enterprise": {},
	"update_department": {},
	"update_team":       {},
	"update_project":    {},
	"update_dataset":    {},
	"update_workflow":   {},
	"invite_user":       {},
	"login":             {},
	"logout":            {},
}

// Classify maps (action, result) to a risk tier. A failed action is
// strictly more suspicious than a successful one, so failure escalates
// the base tier by one step; high stays high.
func Classify(action string, result Result) RiskTier {
	tier := RiskLow
	if _, ok := HighRiskActions[action]; ok {
		tier = RiskHigh
	} else if _, ok := MediumRiskActions[action]; ok {
		tier = RiskMedium
	}
	if result == ResultFailure {
		tier = escalate(tier)
	}
	return tier
}

func escalate(tier RiskTier) RiskTier {
	switch tier {
	case RiskLow:
		return RiskMedium
	case RiskMedium:
		return RiskHigh
	default:
		return RiskHigh
	}
}
