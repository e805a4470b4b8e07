package ports

import (
	"context"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

type CreateProjectInput struct {
	Name        string
	Description string
}

type UpdateProjectInput struct {
	Name        *string
	Description *string
}

// ProjectDetail is a project together with its member list.
type ProjectDetail struct {
	Project domain.Project
	Members []domain.ProjectMember
}

// ProjectService exposes project and membership operations. Every method takes
// the acting user's id and performs its own authorization.
type ProjectService interface {
	List(ctx context.Context, userID string) ([]domain.Project, error)
	Create(ctx context.Context, userID string, in CreateProjectInput) (*domain.Project, error)
	Get(ctx context.Context, userID, projectID string) (*ProjectDetail, error)
	Update(ctx context.Context, userID, projectID string, in UpdateProjectInput) (*domain.Project, error)
	Delete(ctx context.Context, userID, projectID string) error

	ListMembers(ctx context.Context, userID, projectID string) ([]domain.ProjectMember, error)
	AddMember(ctx context.Context, userID, projectID, memberID string, role domain.ProjectRole) (*domain.ProjectMember, error)
	UpdateMemberRole(ctx context.Context, userID, projectID, memberID string, role domain.ProjectRole) (*domain.ProjectMember, error)
	RemoveMember(ctx context.Context, userID, projectID, memberID string) error
}

// AccessChecker answers whether a user holds one of the allowed roles in a project.
type AccessChecker interface {
	CheckAccess(ctx context.Context, projectID, userID string, allowed domain.RoleSet) (bool, error)
	Authorize(ctx context.Context, projectID, userID string, allowed domain.RoleSet) error
}
