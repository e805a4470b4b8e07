package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// ProjectHandler serves projects and their membership.
type ProjectHandler struct {
	projects ports.ProjectService
}

func NewProjectHandler(projects ports.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"notblank,max=255"`
	Description string `json:"description"`
}

type updateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description"`
}

type addMemberRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Role   string `json:"role" validate:"omitempty,oneof=viewer member admin"`
}

type updateMemberRequest struct {
	Role string `json:"role" validate:"required,oneof=viewer member admin"`
}

type projectData struct {
	Project *domain.Project        `json:"project"`
	Members []domain.ProjectMember `json:"members,omitempty"`
}

type projectsData struct {
	Projects []domain.Project `json:"projects"`
}

type memberData struct {
	Member *domain.ProjectMember `json:"member"`
}

type membersData struct {
	Members []domain.ProjectMember `json:"members"`
}

// List returns the projects the caller owns or belongs to.
//
// @Summary      List projects
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  successResponse
// @Router       /projects [get]
func (h *ProjectHandler) List(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	projects, err := h.projects.List(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return successList(c, len(projects), projectsData{Projects: projects})
}

// Create makes the caller owner and admin of a new project.
//
// @Summary      Create project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createProjectRequest  true  "Project"
// @Success      201   {object}  successResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Router       /projects [post]
func (h *ProjectHandler) Create(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req createProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	project, err := h.projects.Create(c.Request().Context(), user.ID, ports.CreateProjectInput{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, projectData{Project: project})
}

// Get returns a project with its members.
//
// @Summary      Get project
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  path      string  true  "Project ID"
// @Success      200        {object}  successResponse
// @Failure      403        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /projects/{projectId} [get]
func (h *ProjectHandler) Get(c echo.Context) error {
	user, projectID, err := h.scope(c)
	if err != nil {
		return err
	}
	detail, err := h.projects.Get(c.Request().Context(), user.ID, projectID)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, projectData{Project: &detail.Project, Members: detail.Members})
}

// Update renames or re-describes a project. Project admins only.
//
// @Summary      Update project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  path      string                true  "Project ID"
// @Param        body       body      updateProjectRequest  true  "Fields to change"
// @Success      200        {object}  successResponse
// @Failure      403        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /projects/{projectId} [patch]
func (h *ProjectHandler) Update(c echo.Context) error {
	user, projectID, err := h.scope(c)
	if err != nil {
		return err
	}

	var req updateProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	project, err := h.projects.Update(c.Request().Context(), user.ID, projectID, ports.UpdateProjectInput{
		Name:        trimmed(req.Name),
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, projectData{Project: project})
}

// Delete removes a project with its tasks. Owner only.
//
// @Summary      Delete project
// @Tags         projects
// @Security     BearerAuth
// @Param        projectId  path  string  true  "Project ID"
// @Success      204
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /projects/{projectId} [delete]
func (h *ProjectHandler) Delete(c echo.Context) error {
	user, projectID, err := h.scope(c)
	if err != nil {
		return err
	}
	if err := h.projects.Delete(c.Request().Context(), user.ID, projectID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMembers returns a project's members with their names and emails.
//
// @Summary      List project members
// @Tags         members
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  path      string  true  "Project ID"
// @Success      200        {object}  successResponse
// @Failure      403        {object}  ErrorResponse
// @Router       /projects/{projectId}/members [get]
func (h *ProjectHandler) ListMembers(c echo.Context) error {
	user, projectID, err := h.scope(c)
	if err != nil {
		return err
	}
	members, err := h.projects.ListMembers(c.Request().Context(), user.ID, projectID)
	if err != nil {
		return err
	}
	return successList(c, len(members), membersData{Members: members})
}

// AddMember adds a user to the project. Role defaults to member.
//
// @Summary      Add project member
// @Tags         members
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  path      string            true  "Project ID"
// @Param        body       body      addMemberRequest  true  "Member"
// @Success      201        {object}  successResponse
// @Failure      400        {object}  ErrorResponse
// @Failure      403        {object}  ErrorResponse
// @Router       /projects/{projectId}/members [post]
func (h *ProjectHandler) AddMember(c echo.Context) error {
	user, projectID, err := h.scope(c)
	if err != nil {
		return err
	}

	var req addMemberRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	member, err := h.projects.AddMember(c.Request().Context(), user.ID, projectID, req.UserID, domain.ProjectRole(req.Role))
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, memberData{Member: member})
}

// UpdateMemberRole changes a member's role.
//
// @Summary      Update member role
// @Tags         members
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  path      string               true  "Project ID"
// @Param        userId     path      string               true  "Member user ID"
// @Param        body       body      updateMemberRequest  true  "Role"
// @Success      200        {object}  successResponse
// @Failure      400        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /projects/{projectId}/members/{userId} [patch]
func (h *ProjectHandler) UpdateMemberRole(c echo.Context) error {
	user, projectID, err := h.scope(c)
	if err != nil {
		return err
	}
	memberID, err := pathID(c, "userId")
	if err != nil {
		return err
	}

	var req updateMemberRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	member, err := h.projects.UpdateMemberRole(c.Request().Context(), user.ID, projectID, memberID, domain.ProjectRole(req.Role))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, memberData{Member: member})
}

// RemoveMember removes a member. The owner cannot be removed.
//
// @Summary      Remove project member
// @Tags         members
// @Security     BearerAuth
// @Param        projectId  path  string  true  "Project ID"
// @Param        userId     path  string  true  "Member user ID"
// @Success      204
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /projects/{projectId}/members/{userId} [delete]
func (h *ProjectHandler) RemoveMember(c echo.Context) error {
	user, projectID, err := h.scope(c)
	if err != nil {
		return err
	}
	memberID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	if err := h.projects.RemoveMember(c.Request().Context(), user.ID, projectID, memberID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// scope resolves the caller and the projectId path parameter.
func (h *ProjectHandler) scope(c echo.Context) (*domain.User, string, error) {
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
