package authz

import "sort"

// Config tunes engine behaviour that is deployment policy rather than
// matrix data.
type Config struct {
	// AdminOnlyActions lists destructive capabilities the ownership
	// override never covers, regardless of who owns the resource.
	AdminOnlyActions []Capability
}

// DefaultConfig returns the stock admin-only destructive subset.
func DefaultConfig() Config {
	return Config{
		AdminOnlyActions: []Capability{
			{Resource: ResourceEnterprise, Action: ActionDelete},
			{Resource: ResourceEnterprise, Action: ActionManage},
			{Resource: ResourceDepartment, Action: ActionDelete},
			{Resource: ResourceUser, Action: ActionDelete},
		},
	}
}

// Engine evaluates access decisions against a capability matrix. It is
// pure and safe for unrestricted concurrent use.
type Engine struct {
	matrix    Matrix
	adminOnly map[Capability]struct{}
}

// NewEngine constructs an Engine from a matrix and config.
func NewEngine(matrix Matrix, cfg Config) *Engine {
	adminOnly := make(map[Capability]struct{}, len(cfg.AdminOnlyActions))
	for _, c := range cfg.AdminOnlyActions {
		adminOnly[c] = struct{}{}
	}
	return &Engine{matrix: matrix, adminOnly: adminOnly}
}

// rolePrecedence pins which granting role gets reported when several
// match. The allow/deny outcome never depends on it.
var rolePrecedence = map[string]int{
	RoleSuperAdmin:        0,
	RoleEnterpriseAdmin:   1,
	RoleDepartmentManager: 2,
	RoleTeamLeader:        3,
	RoleUser:              4,
}

// Evaluate decides whether the principal may perform action on a
// resource of the given type, in the given scoping context. The result
// is deterministic and independent of the order of the principal's
// role set.
func (e *Engine) Evaluate(p Principal, resource ResourceType, action Action, ctx ResourceContext) Decision {
	if p.HasRole(RoleSuperAdmin) {
		return Decision{Allowed: true, MatchedRole: RoleSuperAdmin, Reason: ReasonSuperAdmin}
	}
	if !KnownResourceType(resource) || !KnownAction(action) {
		return Decision{Reason: ReasonUnknownCapability}
	}

	granting := e.grantingRoles(p, resource, action)

	outOfScope := false
	for _, role := range granting {
		if e.inScope(p, role, ctx) {
			return Decision{Allowed: true, MatchedRole: role, Reason: ReasonRoleCapability}
		}
		outOfScope = true
	}

	if ctx.IsOwner {
		if _, blocked := e.adminOnly[Capability{Resource: resource, Action: action}]; !blocked {
			return Decision{Allowed: true, Reason: ReasonOwnership}
		}
	}

	if outOfScope {
		return Decision{Reason: ReasonOutOfScope}
	}
	return Decision{Reason: ReasonNoCapability}
}

// grantingRoles returns the principal's roles that hold the capability,
// deduplicated and ordered by precedence so the reported MatchedRole is
// stable.
func (e *Engine) grantingRoles(p Principal, resource ResourceType, action Action) []string {
	seen := make(map[string]struct{}, len(p.Roles))
	var roles []string
	for _, role := range p.Roles {
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		if e.matrix.Grants(role, resource, action) {
			roles = append(roles, role)
		}
	}
	sort.Slice(roles, func(i, j int) bool {
		pi, pj := precedence(roles[i]), precedence(roles[j])
		if pi != pj {
			return pi < pj
		}
		return roles[i] < roles[j]
	})
	return roles
}

func precedence(role string) int {
	if p, ok := rolePrecedence[role]; ok {
		return p
	}
	return len(rolePrecedence) + 1
}

// inScope checks the resource's scope ids against the principal's
// memberships. EnterpriseAdmin bypasses department and team scoping
// inside its own enterprise; enterprise mismatch always fails.
func (e *Engine) inScope(p Principal, role string, ctx ResourceContext) bool {
	if ctx.EnterpriseID != 0 && p.EnterpriseID != ctx.EnterpriseID {
		return false
	}
	crossScope := role == RoleEnterpriseAdmin
	if ctx.DepartmentID != 0 && !crossScope && p.DepartmentID != ctx.DepartmentID {
		return false
	}
	if ctx.TeamID != 0 && !crossScope && !p.InTeam(ctx.TeamID) {
		return false
	}
	return true
}
