package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const (
	projectColumns = `p.id, p.name, p.description, p.owner_id, p.created_at, p.updated_at`
	memberColumns  = `m.id, m.project_id, m.user_id, m.role, m.created_at, m.updated_at`
)

// ProjectRepository implements ports.ProjectRepository on PostgreSQL.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) ports.ProjectRepository {
	return &ProjectRepository{db: db}
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var p domain.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanMember(row rowScanner) (*domain.ProjectMember, error) {
	var m domain.ProjectMember
	if err := row.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ProjectRepository) CreateWithOwner(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO projects AS p (name, description, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+projectColumns,
		project.Name, project.Description, project.OwnerID, project.CreatedAt, project.UpdatedAt)

	created, err := scanProject(row)
	if isForeignKeyViolation(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)`,
		created.ID, created.OwnerID, domain.ProjectRoleAdmin, created.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit project: %w", err)
	}
	return created, nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		return nil, notFound(err, domain.ErrProjectNotFound, "find project")
	}
	return p, nil
}

// ListForUser returns the projects the user owns or belongs to, newest first.
func (r *ProjectRepository) ListForUser(ctx context.Context, userID string) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT `+projectColumns+`
		FROM projects p
		LEFT JOIN project_members m ON m.project_id = p.id
		WHERE p.owner_id = $1 OR m.user_id = $1
		ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE projects AS p SET name = $2, description = $3, updated_at = $4
		WHERE p.id = $1
		RETURNING `+projectColumns,
		project.ID, project.Name, project.Description, project.UpdatedAt)
	p, err := scanProject(row)
	if err != nil {
		return nil, notFound(err, domain.ErrProjectNotFound, "update project")
	}
	return p, nil
}

// Delete removes the project; members, tasks and comments cascade.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return affected(res, err, domain.ErrProjectNotFound, "delete project")
}

func (r *ProjectRepository) FindMember(ctx context.Context, projectID, userID string) (*domain.ProjectMember, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+` FROM project_members m
		WHERE m.project_id = $1 AND m.user_id = $2`, projectID, userID)
	m, err := scanMember(row)
	if err != nil {
		return nil, notFound(err, domain.ErrMemberNotFound, "find member")
	}
	return m, nil
}

func (r *ProjectRepository) ListMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+memberColumns+`, u.email, u.first_name, u.last_name
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1
		ORDER BY m.created_at`, projectID)
	if err != nil {
		if isInvalidID(err) {
			return []domain.ProjectMember{}, nil
		}
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]domain.ProjectMember, 0)
	for rows.Next() {
		var m domain.ProjectMember
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt,
			&m.Email, &m.FirstName, &m.LastName); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *ProjectRepository) AddMember(ctx context.Context, member *domain.ProjectMember) (*domain.ProjectMember, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO project_members AS m (project_id, user_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+memberColumns,
		member.ProjectID, member.UserID, member.Role, member.CreatedAt, member.UpdatedAt)

	created, err := scanMember(row)
	switch {
	case isUniqueViolation(err, "project_members_project_user_unique"):
		return nil, domain.ErrAlreadyMember
	case isForeignKeyViolation(err):
		pgErr, _ := pgError(err)
		if pgErr.ConstraintName == "project_members_project_id_fkey" {
			return nil, domain.ErrProjectNotFound
		}
		return nil, domain.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("insert member: %w", err)
	}
	return created, nil
}

func (r *ProjectRepository) UpdateMemberRole(ctx context.Context, projectID, userID string, role domain.ProjectRole) (*domain.ProjectMember, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE project_members AS m SET role = $3, updated_at = $4
		WHERE m.project_id = $1 AND m.user_id = $2
		RETURNING `+memberColumns,
		projectID, userID, role, time.Now().UTC())
	m, err := scanMember(row)
	if err != nil {
		return nil, notFound(err, domain.ErrMemberNotFound, "update member")
	}
	return m, nil
}

func (r *ProjectRepository) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	return affected(res, err, domain.ErrMemberNotFound, "remove member")
}
