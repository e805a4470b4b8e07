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

type ProjectService struct {
	repo   ports.ProjectRepository
	access ports.AccessChecker
	log    zerolog.Logger
}

func NewProjectService(repo ports.ProjectRepository, access ports.AccessChecker, log zerolog.Logger) *ProjectService {
	return &ProjectService{repo: repo, access: access, log: log}
}

// List returns every project the user owns or belongs to.
func (s *ProjectService) List(ctx context.Context, userID string) ([]domain.Project, error) {
	projects, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *ProjectService) Create(ctx context.Context, userID string, in ports.CreateProjectInput) (*domain.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}

	now := time.Now().UTC()
	project, err := s.repo.CreateWithOwner(ctx, &domain.Project{
		Name:        name,
		Description: in.Description,
		OwnerID:     userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.log.Info().Str("project_id", project.ID).Str("owner_id", userID).Msg("project created")
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, userID, projectID string) (*ports.ProjectDetail, error) {
	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if err := s.access.Authorize(ctx, projectID, userID, domain.AnyMember); err != nil {
		return nil, err
	}

	members, err := s.repo.ListMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project: members: %w", err)
	}
	return &ports.ProjectDetail{Project: *project, Members: members}, nil
}

func (s *ProjectService) Update(ctx context.Context, userID, projectID string, in ports.UpdateProjectInput) (*domain.Project, error) {
	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	if err := s.access.Authorize(ctx, projectID, userID, domain.AdminsOnly); err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrValidation)
		}
		project.Name = name
	}
	if in.Description != nil {
		project.Description = *in.Description
	}
	project.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return updated, nil
}

// Delete removes the project. Only the owner may delete, regardless of membership role.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if !project.IsOwner(userID) {
		return domain.ErrOwnerOnly
	}

	if err := s.repo.Delete(ctx, projectID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	s.log.Info().Str("project_id", projectID).Msg("project deleted")
	return nil
}

func (s *ProjectService) ListMembers(ctx context.Context, userID, projectID string) ([]domain.ProjectMember, error) {
	if err := s.access.Authorize(ctx, projectID, userID, domain.AnyMember); err != nil {
		return nil, err
	}

	members, err := s.repo.ListMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *ProjectService) AddMember(ctx context.Context, userID, projectID, memberID string, role domain.ProjectRole) (*domain.ProjectMember, error) {
	if role == "" {
		role = domain.ProjectRoleMember
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	if err := s.access.Authorize(ctx, projectID, userID, domain.AdminsOnly); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	member, err := s.repo.AddMember(ctx, &domain.ProjectMember{
		ProjectID: projectID,
		UserID:    memberID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}

	s.log.Info().Str("project_id", projectID).Str("user_id", memberID).Str("role", string(role)).Msg("member added")
	return member, nil
}

func (s *ProjectService) UpdateMemberRole(ctx context.Context, userID, projectID, memberID string, role domain.ProjectRole) (*domain.ProjectMember, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	if err := s.access.Authorize(ctx, projectID, userID, domain.AdminsOnly); err != nil {
		return nil, err
	}
	if err := s.ensureNotOwner(ctx, projectID, memberID); err != nil {
		return nil, err
	}

	member, err := s.repo.UpdateMemberRole(ctx, projectID, memberID, role)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return member, nil
}

func (s *ProjectService) RemoveMember(ctx context.Context, userID, projectID, memberID string) error {
	if err := s.access.Authorize(ctx, projectID, userID, domain.AdminsOnly); err != nil {
		return err
	}
	if err := s.ensureNotOwner(ctx, projectID, memberID); err != nil {
		return err
	}

	if err := s.repo.RemoveMember(ctx, projectID, memberID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}

	s.log.Info().Str("project_id", projectID).Str("user_id", memberID).Msg("member removed")
	return nil
}

func (s *ProjectService) ensureNotOwner(ctx context.Context, projectID, memberID string) error {
	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if project.IsOwner(memberID) {
		return domain.ErrOwnerImmutable
	}
	return nil
}
