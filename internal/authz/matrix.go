package authz

// Capability pairs a resource type with a permitted action.
type Capability struct {
	Resource ResourceType
	Action   Action
}

// Matrix is the static role → capability mapping. SuperAdmin is not
// listed; the engine short-circuits it before consulting the matrix.
type Matrix map[string]map[Capability]struct{}

// NewMatrix builds a Matrix from per-role capability lists.
func NewMatrix(grants map[string][]Capability) Matrix {
	m := make(Matrix, len(grants))
	for role, caps := range grants {
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		m[role] = set
	}
	return m
}

// Grants reports whether the role holds (resource, action).
func (m Matrix) Grants(role string, resource ResourceType, action Action) bool {
	caps, ok := m[role]
	if !ok {
		return false
	}
	_, ok = caps[Capability{Resource: resource, Action: action}]
	return ok
}

// Roles returns the role names present in the matrix.
func (m Matrix) Roles() []string {
	names := make([]string, 0, len(m))
	for role := range m {
		names = append(names, role)
	}
	return names
}

var knownResources = map[ResourceType]struct{}{
	ResourceEnterprise: {},
	ResourceUser:       {},
	ResourceTeam:       {},
	ResourceDepartment: {},
	ResourceProject:    {},
	ResourceDataset:    {},
	ResourceWorkflow:   {},
}

var knownActions = map[Action]struct{}{
	ActionCreate: {},
	ActionRead:   {},
	ActionUpdate: {},
	ActionDelete: {},
	ActionManage: {},
}

// KnownResourceType reports whether the resource type is registered.
func KnownResourceType(r ResourceType) bool {
	_, ok := knownResources[r]
	return ok
}

// KnownAction reports whether the action is registered.
func KnownAction(a Action) bool {
	_, ok := knownActions[a]
	return ok
}

func caps(resource ResourceType, actions ...Action) []Capability {
	out := make([]Capability, 0, len(actions))
	for _, a := range actions {
		out = append(out, Capability{Resource: resource, Action: a})
	}
	return out
}

func join(groups ...[]Capability) []Capability {
	var out []Capability
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// DefaultMatrix returns the platform capability matrix.
func DefaultMatrix() Matrix {
	return NewMatrix(map[string][]Capability{
		RoleEnterpriseAdmin: join(
			caps(ResourceEnterprise, ActionRead, ActionUpdate, ActionManage),
			caps(ResourceUser, ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage),
			caps(ResourceDepartment, ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage),
			caps(ResourceTeam, ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage),
			caps(ResourceProject, ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage),
			caps(ResourceDataset, ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage),
			caps(ResourceWorkflow, ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage),
		),
		RoleDepartmentManager: join(
			caps(ResourceDepartment, ActionRead, ActionUpdate),
			caps(ResourceTeam, ActionCreate, ActionRead, ActionUpdate, ActionManage),
			caps(ResourceUser, ActionRead, ActionUpdate),
			caps(ResourceProject, ActionCreate, ActionRead, ActionUpdate, ActionDelete),
			caps(ResourceDataset, ActionCreate, ActionRead, ActionUpdate),
			caps(ResourceWorkflow, ActionCreate, ActionRead, ActionUpdate),
		),
		RoleTeamLeader: join(
			caps(ResourceTeam, ActionRead, ActionUpdate),
			caps(ResourceUser, ActionRead),
			caps(ResourceProject, ActionCreate, ActionRead, ActionUpdate),
			caps(ResourceDataset, ActionRead, ActionUpdate),
			caps(ResourceWorkflow, ActionCreate, ActionRead, ActionUpdate),
		),
		RoleUser: join(
			caps(ResourceUser, ActionRead),
			caps(ResourceTeam, ActionRead),
			caps(ResourceProject, ActionRead),
			caps(ResourceDataset, ActionRead),
			caps(ResourceWorkflow, ActionRead),
		),
	})
}
