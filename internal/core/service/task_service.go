package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

type TaskService struct {
	repo   ports.TaskRepository
	access ports.AccessChecker
	log    zerolog.Logger
}

func NewTaskService(repo ports.TaskRepository, access ports.AccessChecker, log zerolog.Logger) *TaskService {
	return &TaskService{repo: repo, access: access, log: log}
}

// List returns the project's tasks and their per-status counts.
func (s *TaskService) List(ctx context.Context, userID, projectID string) (*ports.TaskList, error) {
	if err := s.access.Authorize(ctx, projectID, userID, domain.AnyMember); err != nil {
		return nil, err
	}

	tasks, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return &ports.TaskList{Tasks: tasks, Stats: domain.ComputeTaskStats(tasks)}, nil
}

func (s *TaskService) Create(ctx context.Context, userID, projectID string, in ports.CreateTaskInput) (*domain.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}

	status := in.Status
	if status == "" {
		status = domain.TaskStatusTodo
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.TaskPriorityMedium
	}
	if !priority.Valid() {
		return nil, domain.ErrInvalidPriority
	}

	if err := s.access.Authorize(ctx, projectID, userID, domain.Contributors); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task, err := s.repo.Create(ctx, &domain.Task{
		Title:       title,
		Description: in.Description,
		ProjectID:   projectID,
		AssigneeID:  in.AssigneeID,
		CreatedBy:   userID,
		Status:      status,
		Priority:    priority,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.log.Info().Str("task_id", task.ID).Str("project_id", projectID).Msg("task created")
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, userID, projectID, taskID string) (*ports.TaskDetail, error) {
	task, err := s.load(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, task.ProjectID, userID, domain.AnyMember); err != nil {
		return nil, err
	}

	comments, err := s.repo.ListComments(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: comments: %w", err)
	}
	return &ports.TaskDetail{Task: *task, Comments: comments}, nil
}

func (s *TaskService) Update(ctx context.Context, userID, projectID, taskID string, in ports.UpdateTaskInput) (*domain.Task, error) {
	task, err := s.load(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, task.ProjectID, userID, domain.Contributors); err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", domain.ErrValidation)
		}
		task.Title = title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		task.Status = *in.Status
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, domain.ErrInvalidPriority
		}
		task.Priority = *in.Priority
	}
	switch {
	case in.ClearAssignee:
		task.AssigneeID = nil
	case in.AssigneeID != nil:
		task.AssigneeID = in.AssigneeID
	}
	switch {
	case in.ClearDueDate:
		task.DueDate = nil
	case in.DueDate != nil:
		task.DueDate = in.DueDate
	}
	task.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, projectID, taskID string) error {
	task, err := s.load(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	if err := s.access.Authorize(ctx, task.ProjectID, userID, domain.AdminsOnly); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	s.log.Info().Str("task_id", taskID).Msg("task deleted")
	return nil
}

// AddComment is open to every member, viewers included.
func (s *TaskService) AddComment(ctx context.Context, userID, projectID, taskID, content string) (*domain.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}

	task, err := s.load(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, task.ProjectID, userID, domain.AnyMember); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	comment, err := s.repo.AddComment(ctx, &domain.Comment{
		Content:   content,
		TaskID:    taskID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return comment, nil
}

// load fetches a task and checks that it belongs to projectID.
func (s *TaskService) load(ctx context.Context, projectID, taskID string) (*domain.Task, error) {
	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task.ProjectID != projectID {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}
