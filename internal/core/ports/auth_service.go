package ports

import (
	"context"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

// RegisterInput carries the fields accepted at sign-up.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UpdateProfileInput is a partial update of a user's own profile. Nil fields
// are left unchanged.
type UpdateProfileInput struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// AdminUpdateUserInput extends UpdateProfileInput with the global role.
type AdminUpdateUserInput struct {
	UpdateProfileInput
	Role *string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	// Authenticate resolves a bearer token to its still-valid user.
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) (string, *domain.User, error)
}

type UserService interface {
	Me(ctx context.Context, userID string) (*domain.User, *domain.Subscription, error)
	UpdateMe(ctx context.Context, userID string, in UpdateProfileInput) (*domain.User, error)
	DeleteMe(ctx context.Context, userID string) error

	List(ctx context.Context) ([]domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, id string, in AdminUpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}
