package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

type UserHandler struct {
	users ports.UserService
}

func NewUserHandler(users ports.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type updateMeRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  *string `json:"password"`
}

type updateUserRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role" validate:"omitempty,oneof=user admin"`
}

type subscriptionSummary struct {
	Plan              domain.Plan               `json:"plan"`
	Status            domain.SubscriptionStatus `json:"status"`
	CurrentPeriodEnd  *time.Time                `json:"current_period_end"`
	CancelAtPeriodEnd bool                      `json:"cancel_at_period_end"`
}

type meUser struct {
	*domain.User
	Subscription *subscriptionSummary `json:"subscription"`
}

type meData struct {
	User meUser `json:"user"`
}

type usersData struct {
	Users []domain.User `json:"users"`
}

// Me returns the caller's profile with a summary of their subscription.
//
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  successResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/me [get]
// @Router       /auth/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	profile, sub, err := h.users.Me(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}

	out := meUser{User: profile}
	if sub != nil {
		out.Subscription = &subscriptionSummary{
			Plan:              sub.Plan,
			Status:            sub.Status,
			CurrentPeriodEnd:  sub.CurrentPeriodEnd,
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		}
	}
	return success(c, http.StatusOK, meData{User: out})
}

// UpdateMe changes the caller's name or email. Passwords are rejected here.
//
// @Summary      Update current user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateMeRequest  true  "Profile fields"
// @Success      200   {object}  successResponse
// @Failure      400   {object}  ErrorResponse
// @Router       /users/update-me [patch]
// @Router       /auth/update-me [patch]
func (h *UserHandler) UpdateMe(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req updateMeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Password != nil {
		return domain.ErrPasswordInUpdate
	}

	updated, err := h.users.UpdateMe(c.Request().Context(), user.ID, ports.UpdateProfileInput{
		Email:     trimmed(req.Email),
		FirstName: trimmed(req.FirstName),
		LastName:  trimmed(req.LastName),
	})
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, userData{User: updated})
}

// DeleteMe deactivates the caller's account.
//
// @Summary      Deactivate current user
// @Tags         users
// @Security     BearerAuth
// @Success      204
// @Router       /users/delete-me [delete]
func (h *UserHandler) DeleteMe(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.users.DeleteMe(c.Request().Context(), user.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// List returns every user. Admin only.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  successResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return err
	}
	return successList(c, len(users), usersData{Users: users})
}

// Get returns one user. Admin only.
//
// @Summary      Get user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  successResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, userData{User: user})
}

// Update changes a user's profile or global role. Admin only.
//
// @Summary      Update user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User ID"
// @Param        body  body      updateUserRequest  true  "Fields to change"
// @Success      200   {object}  successResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /users/{id} [patch]
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.users.Update(c.Request().Context(), id, ports.AdminUpdateUserInput{
		UpdateProfileInput: ports.UpdateProfileInput{
			Email:     trimmed(req.Email),
			FirstName: trimmed(req.FirstName),
			LastName:  trimmed(req.LastName),
		},
		Role: req.Role,
	})
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, userData{User: user})
}

// Delete removes a user permanently. Admin only.
//
// @Summary      Delete user
// @Tags         users
// @Security     BearerAuth
// @Param        id   path  string  true  "User ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
