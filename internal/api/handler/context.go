package handler

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

// ContextUserKey is where the Auth middleware stores the authenticated user.
const ContextUserKey = "user"

// currentUser returns the user injected by the Auth middleware. A missing
// user means the route was registered without the middleware.
func currentUser(c echo.Context) (*domain.User, error) {
	u, ok := c.Get(ContextUserKey).(*domain.User)
	if !ok || u == nil {
		return nil, domain.ErrUnauthenticated
	}
	return u, nil
}

// pathID reads a UUID path parameter.
func pathID(c echo.Context, name string) (string, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s must be a valid id", domain.ErrValidation, name)
	}
	return id.String(), nil
}

// bind decodes and validates the request body.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	if err := c.Validate(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
