package hypervisor

// Role is a tagged permission level. Roles are cumulative: Admin implies
// Developer implies Viewer, mirroring the original system's overlapping
// group-membership checks collapsed into one ordering.
type Role string

const (
	RoleViewer    Role = "viewer"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleDeveloper:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Action is an operation gated by Authorize.
type Action string

const (
	ActionViewDeployment   Action = "view_deployment"
	ActionCreateDeployment Action = "create_deployment"
	ActionCompleteWebhook  Action = "complete_webhook"
	ActionCreateCluster    Action = "create_cluster"
	ActionViewCluster      Action = "view_cluster"
)

// minRoleFor is the lowest role each action requires.
var minRoleFor = map[Action]Role{
	ActionViewDeployment:   RoleViewer,
	ActionViewCluster:      RoleViewer,
	ActionCreateDeployment: RoleDeveloper,
	ActionCompleteWebhook:  RoleDeveloper,
	ActionCreateCluster:    RoleAdmin,
}

// Authorize reports whether role may perform action. An unknown action is
// denied by default rather than silently allowed.
func Authorize(role Role, action Action) bool {
	required, known := minRoleFor[action]
	if !known {
		return false
	}
	return role.rank() >= required.rank()
}
