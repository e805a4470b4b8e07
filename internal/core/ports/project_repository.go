package ports

import (
	"context"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

// ProjectRepository covers projects and their membership rows.
type ProjectRepository interface {
	// CreateWithOwner inserts the project and the owner's admin membership atomically.
	CreateWithOwner(ctx context.Context, project *domain.Project) (*domain.Project, error)
	FindByID(ctx context.Context, id string) (*domain.Project, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Project, error)
	Update(ctx context.Context, project *domain.Project) (*domain.Project, error)
	Delete(ctx context.Context, id string) error

	FindMember(ctx context.Context, projectID, userID string) (*domain.ProjectMember, error)
	ListMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error)
	AddMember(ctx context.Context, member *domain.ProjectMember) (*domain.ProjectMember, error)
	UpdateMemberRole(ctx context.Context, projectID, userID string, role domain.ProjectRole) (*domain.ProjectMember, error)
	RemoveMember(ctx context.Context, projectID, userID string) error
}

// TaskRepository covers tasks and their comments.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.Task, error)
	Update(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Delete(ctx context.Context, id string) error

	AddComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)
}
