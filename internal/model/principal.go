package model

import "github.com/google/uuid"

// Roles recognised by the platform. The authorization decision itself lives
// outside the core; services only ask boolean questions of the principal.
const (
	RoleAdmin          = "ADMIN"
	RoleProjectManager = "PROJECT_MANAGER"
	RoleCostController = "COST_CONTROLLER"
	RoleCAM            = "CAM"
	RoleViewer         = "VIEWER"
)

var roleRank = map[string]int{
	RoleViewer:         1,
	RoleCAM:            2,
	RoleCostController: 3,
	RoleProjectManager: 4,
	RoleAdmin:          5,
}

// Principal is the authenticated caller as decoded from the access token.
type Principal struct {
	UserID       uuid.UUID
	Roles        []string
	ProjectRoles map[uuid.UUID]string
}

func (p Principal) IsInRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (p Principal) IsAdmin() bool {
	return p.IsInRole(RoleAdmin)
}

// HasProjectAccess reports whether the principal holds at least minimumRole on
// the project. Global admins pass every check.
func (p Principal) HasProjectAccess(projectID uuid.UUID, minimumRole string) bool {
	if p.IsAdmin() {
		return true
	}
	assigned, ok := p.ProjectRoles[projectID]
	if !ok {
		return false
	}
	return roleRank[assigned] >= roleRank[minimumRole]
}
