package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// AccessChecker decides project-level permissions. The project owner always
// passes; everyone else needs a membership row whose role is in the allowed set.
type AccessChecker struct {
	projects ports.ProjectRepository
}

func NewAccessChecker(projects ports.ProjectRepository) *AccessChecker {
	return &AccessChecker{projects: projects}
}

// CheckAccess reports whether userID may act on projectID with one of the
// allowed roles. A missing project or membership is a denial, not an error.
// An empty set means any membership.
func (a *AccessChecker) CheckAccess(ctx context.Context, projectID, userID string, allowed domain.RoleSet) (bool, error) {
	if allowed == 0 {
		allowed = domain.AnyMember
	}

	project, err := a.projects.FindByID(ctx, projectID)
	if errors.Is(err, domain.ErrProjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check access: %w", err)
	}

	if project.IsOwner(userID) {
		return true, nil
	}

	member, err := a.projects.FindMember(ctx, projectID, userID)
	if errors.Is(err, domain.ErrMemberNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check access: %w", err)
	}

	return allowed.Has(member.Role), nil
}

// Authorize is CheckAccess returning domain.ErrForbidden on denial.
func (a *AccessChecker) Authorize(ctx context.Context, projectID, userID string, allowed domain.RoleSet) error {
	ok, err := a.CheckAccess(ctx, projectID, userID, allowed)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrForbidden
	}
	return nil
}
