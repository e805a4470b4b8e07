package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const (
	taskColumns    = `id, title, description, project_id, assignee_id, created_by, status, priority, due_date, created_at, updated_at`
	commentColumns = `id, content, task_id, user_id, created_at, updated_at`
)

// TaskRepository implements ports.TaskRepository on PostgreSQL.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) ports.TaskRepository {
	return &TaskRepository{db: db}
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t        domain.Task
		assignee sql.NullString
		due      sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.ProjectID, &assignee, &t.CreatedBy,
		&t.Status, &t.Priority, &due, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.String
	}
	t.DueDate = nullTime(due)
	return &t, nil
}

func scanComment(row rowScanner) (*domain.Comment, error) {
	var c domain.Comment
	if err := row.Scan(&c.ID, &c.Content, &c.TaskID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// taskWriteError maps constraint failures of task inserts and updates.
func taskWriteError(err error, op string) error {
	if isForeignKeyViolation(err) {
		pgErr, _ := pgError(err)
		if pgErr.ConstraintName == "tasks_project_id_fkey" {
			return domain.ErrProjectNotFound
		}
		return domain.ErrUserNotFound
	}
	return notFound(err, domain.ErrTaskNotFound, op)
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO tasks (title, description, project_id, assignee_id, created_by, status, priority, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+taskColumns,
		task.Title, task.Description, task.ProjectID, task.AssigneeID, task.CreatedBy,
		task.Status, task.Priority, task.DueDate, task.CreatedAt, task.UpdatedAt)

	created, err := scanTask(row)
	if err != nil {
		return nil, taskWriteError(err, "insert task")
	}
	return created, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFound(err, domain.ErrTaskNotFound, "find task")
	}
	return t, nil
}

// ListByProject returns the project's tasks, newest first.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE project_id = $1
		ORDER BY created_at DESC`, projectID)
	if err != nil {
		if isInvalidID(err) {
			return []domain.Task{}, nil
		}
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, assignee_id = $4, status = $5, priority = $6, due_date = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+taskColumns,
		task.ID, task.Title, task.Description, task.AssigneeID, task.Status, task.Priority, task.DueDate, task.UpdatedAt)

	updated, err := scanTask(row)
	if err != nil {
		return nil, taskWriteError(err, "update task")
	}
	return updated, nil
}

// Delete removes the task together with its comments.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return affected(res, err, domain.ErrTaskNotFound, "delete task")
}

func (r *TaskRepository) AddComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO comments (content, task_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+commentColumns,
		comment.Content, comment.TaskID, comment.UserID, comment.CreatedAt, comment.UpdatedAt)

	created, err := scanComment(row)
	if isForeignKeyViolation(err) {
		pgErr, _ := pgError(err)
		if pgErr.ConstraintName == "comments_task_id_fkey" {
			return nil, domain.ErrTaskNotFound
		}
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return created, nil
}

// ListComments returns the task's comments in posting order.
func (r *TaskRepository) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE task_id = $1
		ORDER BY created_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]domain.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}
