package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const dateLayout = "2006-01-02"

// TaskHandler serves tasks and comments nested under a project.
type TaskHandler struct {
	tasks ports.TaskService
}

func NewTaskHandler(tasks ports.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

type createTaskRequest struct {
	Title       string  `json:"title" validate:"notblank,max=255"`
	Description string  `json:"description"`
	AssigneeID  *string `json:"assignee_id" validate:"omitempty,uuid"`
	Status      string  `json:"status" validate:"omitempty,oneof=todo in_progress review done"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *string `json:"due_date"`
}

// updateTaskRequest keeps the nullable fields raw so an explicit null can be
// told apart from an absent key.
type updateTaskRequest struct {
	Title       *string         `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string         `json:"description"`
	AssigneeID  json.RawMessage `json:"assignee_id"`
	Status      *string         `json:"status" validate:"omitempty,oneof=todo in_progress review done"`
	Priority    *string         `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     json.RawMessage `json:"due_date"`
}

type commentRequest struct {
	Content string `json:"content" validate:"notblank"`
}

type tasksData struct {
	Tasks []domain.Task    `json:"tasks"`
	Stats domain.TaskStats `json:"stats"`
}

type taskData struct {
	Task     *domain.Task     `json:"task"`
	Comments []domain.Comment `json:"comments,omitempty"`
}

type commentData struct {
	Comment *domain.Comment `json:"comment"`
}

// List returns the project's tasks with per-status counts.
//
// @Summary      List tasks
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  path      string  true  "Project ID"
// @Success      200        {object}  successResponse
// @Failure      403        {object}  ErrorResponse
// @Router       /projects/{projectId}/tasks [get]
func (h *TaskHandler) List(c echo.Context) error {
	user, projectID, err := h.scope(c)
	if err != nil {
		return err
	}
	list, err := h.tasks.List(c.Request().Context(), user.ID, projectID)
	if err != nil {
		return err
	}
	return successList(c, len(list.Tasks), tasksData{Tasks: list.Tasks, Stats: list.Stats})
}

// Create adds a task to the project.
//
// @Summary      Create task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  path      string             true  "Project ID"
// @Param        body       body      createTaskRequest  true  "Task"
// @Success      201        {object}  successResponse
// @Failure      400        {object}  ErrorResponse
// @Failure      403        {object}  ErrorResponse
// @Router       /projects/{projectId}/tasks [post]
func (h *TaskHandler) Create(c echo.Context) error {
	user, projectID, err := h.scope(c)
	if err != nil {
		return err
	}

	var req createTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	in := ports.CreateTaskInput{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		Status:      domain.TaskStatus(req.Status),
		Priority:    domain.TaskPriority(req.Priority),
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			return err
		}
		in.DueDate = &due
	}

	task, err := h.tasks.Create(c.Request().Context(), user.ID, projectID, in)
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, taskData{Task: task})
}

// Get returns a task with its comments, oldest first.
//
// @Summary      Get task
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  path      string  true  "Project ID"
// @Param        taskId     path      string  true  "Task ID"
// @Success      200        {object}  successResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /projects/{projectId}/tasks/{taskId} [get]
func (h *TaskHandler) Get(c echo.Context) error {
	user, projectID, taskID, err := h.taskScope(c)
	if err != nil {
		return err
	}
	detail, err := h.tasks.Get(c.Request().Context(), user.ID, projectID, taskID)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, taskData{Task: &detail.Task, Comments: detail.Comments})
}

// Update applies a partial update. A null assignee_id or due_date clears it.
//
// @Summary      Update task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  path      string             true  "Project ID"
// @Param        taskId     path      string             true  "Task ID"
// @Param        body       body      updateTaskRequest  true  "Fields to change"
// @Success      200        {object}  successResponse
// @Failure      400        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /projects/{projectId}/tasks/{taskId} [patch]
func (h *TaskHandler) Update(c echo.Context) error {
	user, projectID, taskID, err := h.taskScope(c)
	if err != nil {
		return err
	}

	var req updateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	in := ports.UpdateTaskInput{
		Title:       trimmed(req.Title),
		Description: req.Description,
	}
	if req.Status != nil {
		s := domain.TaskStatus(*req.Status)
		in.Status = &s
	}
	if req.Priority != nil {
		p := domain.TaskPriority(*req.Priority)
		in.Priority = &p
	}

	assignee, clearAssignee, err := nullableString(req.AssigneeID, "assignee_id")
	if err != nil {
		return err
	}
	if assignee != nil {
		if _, err := uuid.Parse(*assignee); err != nil {
			return fmt.Errorf("%w: assignee_id must be a valid id", domain.ErrValidation)
		}
	}
	in.AssigneeID, in.ClearAssignee = assignee, clearAssignee

	due, clearDue, err := nullableString(req.DueDate, "due_date")
	if err != nil {
		return err
	}
	if due != nil {
		t, err := parseDueDate(*due)
		if err != nil {
			return err
		}
		in.DueDate = &t
	}
	in.ClearDueDate = clearDue

	task, err := h.tasks.Update(c.Request().Context(), user.ID, projectID, taskID, in)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, taskData{Task: task})
}

// Delete removes a task and its comments.
//
// @Summary      Delete task
// @Tags         tasks
// @Security     BearerAuth
// @Param        projectId  path  string  true  "Project ID"
// @Param        taskId     path  string  true  "Task ID"
// @Success      204
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /projects/{projectId}/tasks/{taskId} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	user, projectID, taskID, err := h.taskScope(c)
	if err != nil {
		return err
	}
	if err := h.tasks.Delete(c.Request().Context(), user.ID, projectID, taskID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AddComment posts a comment on a task.
//
// @Summary      Comment on task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  path      string          true  "Project ID"
// @Param        taskId     path      string          true  "Task ID"
// @Param        body       body      commentRequest  true  "Comment"
// @Success      201        {object}  successResponse
// @Failure      400        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /projects/{projectId}/tasks/{taskId}/comments [post]
func (h *TaskHandler) AddComment(c echo.Context) error {
	user, projectID, taskID, err := h.taskScope(c)
	if err != nil {
		return err
	}

	var req commentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	comment, err := h.tasks.AddComment(c.Request().Context(), user.ID, projectID, taskID, strings.TrimSpace(req.Content))
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, commentData{Comment: comment})
}

func (h *TaskHandler) scope(c echo.Context) (*domain.User, string, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, "", err
	}
	projectID, err := pathID(c, "projectId")
	if err != nil {
		return nil, "", err
	}
	return user, projectID, nil
}

func (h *TaskHandler) taskScope(c echo.Context) (*domain.User, string, string, error) {
	user, projectID, err := h.scope(c)
	if err != nil {
		return nil, "", "", err
	}
	taskID, err := pathID(c, "taskId")
	if err != nil {
		return nil, "", "", err
	}
	return user, projectID, taskID, nil
}

// nullableString decodes a raw JSON field that may be absent, null or a string.
// clear is true only for an explicit null.
func nullableString(raw json.RawMessage, field string) (value *string, clear bool, err error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, fmt.Errorf("%w: %s must be a string or null", domain.ErrValidation, field)
	}
	return &s, false, nil
}

// parseDueDate accepts RFC 3339 timestamps and plain dates.
func parseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: due_date must be a date (YYYY-MM-DD) or RFC 3339 timestamp", domain.ErrValidation)
}
