package middleware

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// RequireActiveSubscription gates write operations behind an active or
// trialing subscription. It must run after Auth.
func RequireActiveSubscription(subs ports.SubscriptionRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := userFrom(c)
			if !ok {
				return domain.ErrUnauthenticated
			}

			sub, err := subs.FindByUserID(c.Request().Context(), user.ID)
			if errors.Is(err, domain.ErrSubscriptionNotFound) {
				return domain.ErrSubscriptionRequired
			}
			if err != nil {
				return fmt.Errorf("subscription check: %w", err)
			}
			if !sub.Entitled() {
				return domain.ErrSubscriptionRequired
			}
			return next(c)
		}
	}
}
