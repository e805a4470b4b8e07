package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, active, password_changed_at, created_at, updated_at`

// UserRepository implements ports.UserRepository on PostgreSQL.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) ports.UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		changedAt sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.Active, &changedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if changedAt.Valid {
		t := changedAt.Time.UTC()
		u.PasswordChangedAt = &t
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role, user.Active, user.CreatedAt, user.UpdatedAt)

	created, err := scanUser(row)
	if isUniqueViolation(err, "users_email_unique") {
		return nil, domain.ErrEmailInUse
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.one(row)
}

// FindByEmail matches the email exactly, as stored.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return r.one(row)
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, role = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Email, user.FirstName, user.LastName, user.Role, user.UpdatedAt)

	updated, err := scanUser(row)
	if isUniqueViolation(err, "users_email_unique") {
		return nil, domain.ErrEmailInUse
	}
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, "update user")
	}
	return updated, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, password_changed_at = $3, updated_at = $3
		WHERE id = $1`, id, hash, changedAt)
	return affected(res, err, domain.ErrUserNotFound, "update password")
}

func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return affected(res, err, domain.ErrUserNotFound, "deactivate user")
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return affected(res, err, domain.ErrUserNotFound, "delete user")
}

func (r *UserRepository) one(row *sql.Row) (*domain.User, error) {
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, "find user")
	}
	return u, nil
}

// notFound maps a missing row or malformed id to the given domain error and
// wraps anything else.
func notFound(err, missing error, op string) error {
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return missing
	}
	return fmt.Errorf("%s: %w", op, err)
}

// affected turns an Exec result into missing when no row matched.
func affected(res sql.Result, err, missing error, op string) error {
	if err != nil {
		return notFound(err, missing, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
