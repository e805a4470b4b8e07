package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

type UserService struct {
	users ports.UserRepository
	subs  ports.SubscriptionRepository
	log   zerolog.Logger
}

func NewUserService(users ports.UserRepository, subs ports.SubscriptionRepository, log zerolog.Logger) *UserService {
	return &UserService{users: users, subs: subs, log: log}
}

// Me returns the user with their subscription, which may be nil.
func (s *UserService) Me(ctx context.Context, userID string) (*domain.User, *domain.Subscription, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("me: %w", err)
	}

	sub, err := s.subs.FindByUserID(ctx, userID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return user, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("me: subscription: %w", err)
	}
	return user, sub, nil
}

func (s *UserService) UpdateMe(ctx context.Context, userID string, in ports.UpdateProfileInput) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("update me: %w", err)
	}
	if err := applyProfile(user, in); err != nil {
		return nil, err
	}
	user.UpdatedAt = time.Now().UTC()

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("update me: %w", err)
	}
	return updated, nil
}

// DeleteMe deactivates the account. Tokens of inactive users are rejected.
func (s *UserService) DeleteMe(ctx context.Context, userID string) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		return fmt.Errorf("delete me: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("user deactivated")
	return nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id string, in ports.AdminUpdateUserInput) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if err := applyProfile(user, in.UpdateProfileInput); err != nil {
		return nil, err
	}
	if in.Role != nil {
		if *in.Role != domain.RoleUser && *in.Role != domain.RoleAdmin {
			return nil, fmt.Errorf("%w: role must be one of: user admin", domain.ErrValidation)
		}
		user.Role = *in.Role
	}
	user.UpdatedAt = time.Now().UTC()

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info().Str("user_id", id).Msg("user deleted")
	return nil
}

func applyProfile(user *domain.User, in ports.UpdateProfileInput) error {
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email == "" {
			return fmt.Errorf("%w: email cannot be empty", domain.ErrValidation)
		}
		user.Email = email
	}
	if in.FirstName != nil {
		if strings.TrimSpace(*in.FirstName) == "" {
			return fmt.Errorf("%w: first name cannot be empty", domain.ErrValidation)
		}
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		if strings.TrimSpace(*in.LastName) == "" {
			return fmt.Errorf("%w: last name cannot be empty", domain.ErrValidation)
		}
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	return nil
}
