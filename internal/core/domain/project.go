package domain

import "time"

// ProjectRole is the role a user holds inside a single project.
type ProjectRole string

const (
	ProjectRoleViewer ProjectRole = "viewer"
	ProjectRoleMember ProjectRole = "member"
	ProjectRoleAdmin  ProjectRole = "admin"
)

// Valid reports whether r is one of the known project roles.
func (r ProjectRole) Valid() bool {
	return r.bit() != 0
}

func (r ProjectRole) bit() RoleSet {
	switch r {
	case ProjectRoleViewer:
		return 1 << 0
	case ProjectRoleMember:
		return 1 << 1
	case ProjectRoleAdmin:
		return 1 << 2
	}
	return 0
}

// RoleSet is a set of project roles that grant a capability.
type RoleSet uint8

// Roles builds a RoleSet from the given roles. Unknown roles are ignored.
func Roles(roles ...ProjectRole) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= r.bit()
	}
	return s
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r ProjectRole) bool {
	b := r.bit()
	return b != 0 && s&b == b
}

// Capability sets used by the project and task operations.
var (
	AnyMember    = Roles(ProjectRoleViewer, ProjectRoleMember, ProjectRoleAdmin)
	Contributors = Roles(ProjectRoleMember, ProjectRoleAdmin)
	AdminsOnly   = Roles(ProjectRoleAdmin)
)

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsOwner reports whether userID owns the project. Owners hold implicit admin rights.
func (p *Project) IsOwner(userID string) bool {
	return p.OwnerID == userID
}

type ProjectMember struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"project_id"`
	UserID    string      `json:"user_id"`
	Role      ProjectRole `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	// Populated on listings.
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}
