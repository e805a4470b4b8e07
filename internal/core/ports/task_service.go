package ports

import (
	"context"
	"time"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

type CreateTaskInput struct {
	Title       string
	Description string
	AssigneeID  *string
	Status      domain.TaskStatus
	Priority    domain.TaskPriority
	DueDate     *time.Time
}

// UpdateTaskInput is a partial update. ClearAssignee and ClearDueDate unset
// the corresponding nullable fields.
type UpdateTaskInput struct {
	Title         *string
	Description   *string
	AssigneeID    *string
	ClearAssignee bool
	Status        *domain.TaskStatus
	Priority      *domain.TaskPriority
	DueDate       *time.Time
	ClearDueDate  bool
}

// TaskList is a project's tasks with their per-status counts.
type TaskList struct {
	Tasks []domain.Task
	Stats domain.TaskStats
}

// TaskDetail is a task together with its comments.
type TaskDetail struct {
	Task     domain.Task
	Comments []domain.Comment
}

type TaskService interface {
	List(ctx context.Context, userID, projectID string) (*TaskList, error)
	Create(ctx context.Context, userID, projectID string, in CreateTaskInput) (*domain.Task, error)
	Get(ctx context.Context, userID, projectID, taskID string) (*TaskDetail, error)
	Update(ctx context.Context, userID, projectID, taskID string, in UpdateTaskInput) (*domain.Task, error)
	Delete(ctx context.Context, userID, projectID, taskID string) error
	AddComment(ctx context.Context, userID, projectID, taskID, content string) (*domain.Comment, error)
}
