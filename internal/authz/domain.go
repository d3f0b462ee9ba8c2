// Package authz implements the role-based permission core: a static
// capability matrix plus a pure decision function over resolved
// principals and resource scoping facts.
package authz

// Role names recognised by the capability matrix. Hierarchy is not
// encoded here; it emerges from which capabilities each role holds.
const (
	RoleSuperAdmin        = "SuperAdmin"
	RoleEnterpriseAdmin   = "EnterpriseAdmin"
	RoleDepartmentManager = "DepartmentManager"
	RoleTeamLeader        = "TeamLeader"
	RoleUser              = "User"
)

// ResourceType tags the kind of resource an action targets.
type ResourceType string

// Resource types managed by the platform.
const (
	ResourceEnterprise ResourceType = "Enterprise"
	ResourceUser       ResourceType = "User"
	ResourceTeam       ResourceType = "Team"
	ResourceDepartment ResourceType = "Department"
	ResourceProject    ResourceType = "Project"
	ResourceDataset    ResourceType = "Dataset"
	ResourceWorkflow   ResourceType = "Workflow"
)

// Action is the operation a principal attempts on a resource.
type Action string

// Permission actions.
const (
	ActionCreate Action = "Create"
	ActionRead   Action = "Read"
	ActionUpdate Action = "Update"
	ActionDelete Action = "Delete"
	ActionManage Action = "Manage"
)

// Principal describes the authenticated actor. It arrives fully
// resolved from the identity service; the engine never looks anything
// up.
type Principal struct {
	UserID       int64
	Roles        []string
	EnterpriseID int64
	DepartmentID int64
	TeamIDs      []int64
}

// HasRole reports whether the principal holds the named role.
func (p Principal) HasRole(name string) bool {
	for _, r := range p.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// InTeam reports whether the principal is a member of the team.
func (p Principal) InTeam(id int64) bool {
	for _, t := range p.TeamIDs {
		if t == id {
			return true
		}
	}
	return false
}

// ResourceContext carries scoping facts about the target resource,
// resolved by the owning service. Zero ids mean the resource is not
// scoped at that level.
type ResourceContext struct {
	EnterpriseID int64
	DepartmentID int64
	TeamID       int64
	IsOwner      bool
}

// Reason enumerates the cause behind a decision.
type Reason string

// Decision reasons.
const (
	ReasonSuperAdmin        Reason = "super-admin override"
	ReasonRoleCapability    Reason = "role capability"
	ReasonOwnership         Reason = "ownership override"
	ReasonNoCapability      Reason = "no capability"
	ReasonOutOfScope        Reason = "out of scope"
	ReasonUnknownCapability Reason = "unknown capability"
)

// Decision is the immutable outcome of a single evaluation.
type Decision struct {
	Allowed     bool
	MatchedRole string
	Reason      Reason
}
