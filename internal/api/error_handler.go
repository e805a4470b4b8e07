package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/api/handler"
	"github.com/taskflow/taskflow-api/internal/core/domain"
)

const (
	statusFail  = "fail"
	statusError = "error"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status codes and user-facing messages.
//   - Logs unexpected errors without leaking them to the client.
//   - Renders {"status","message"}; outside production the wrapped error is
//     added as "detail".
func NewHTTPErrorHandler(log zerolog.Logger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		resp := handler.ErrorResponse{Status: statusFail, Message: msg}
		if code >= http.StatusInternalServerError {
			resp.Status = statusError
		}
		var he *echo.HTTPError
		if !production && !errors.As(err, &he) {
			resp.Detail = err.Error()
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (router 404/405, body limit, rate limit).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, domain.ErrEmailInUse):
		return http.StatusBadRequest, "Email already in use"
	case errors.Is(err, domain.ErrPasswordInUpdate):
		return http.StatusBadRequest, "This route is not for password updates. Please use /update-password"
	case errors.Is(err, domain.ErrAlreadyMember):
		return http.StatusBadRequest, "User is already a member of this project"
	case errors.Is(err, domain.ErrOwnerImmutable):
		return http.StatusBadRequest, "The project owner's membership cannot be changed or removed"
	case errors.Is(err, domain.ErrInvalidRole):
		return http.StatusBadRequest, "Invalid role"
	case errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest, "Invalid task status"
	case errors.Is(err, domain.ErrInvalidPriority):
		return http.StatusBadRequest, "Invalid task priority"
	case errors.Is(err, domain.ErrInvalidPlan):
		return http.StatusBadRequest, "Invalid subscription plan"
	case errors.Is(err, domain.ErrNoProviderSubscription):
		return http.StatusBadRequest, "No Stripe subscription found"
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest, "Webhook Error: " + afterSentinel(err, domain.ErrInvalidSignature)

	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Incorrect email or password"
	case errors.Is(err, domain.ErrIncorrectPassword):
		return http.StatusUnauthorized, "Your current password is incorrect"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "You are not logged in. Please log in to get access."
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "Authentication failed"
	case errors.Is(err, domain.ErrUserGone):
		return http.StatusUnauthorized, "The user belonging to this token no longer exists."
	case errors.Is(err, domain.ErrPasswordChanged):
		return http.StatusUnauthorized, "User recently changed password. Please log in again."

	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "You do not have permission to perform this action"
	case errors.Is(err, domain.ErrOwnerOnly):
		return http.StatusForbidden, "Only the project owner can delete the project"
	case errors.Is(err, domain.ErrSubscriptionRequired):
		return http.StatusForbidden, "This action requires an active subscription"

	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "No user found with that ID"
	case errors.Is(err, domain.ErrProjectNotFound):
		return http.StatusNotFound, "Project not found"
	case errors.Is(err, domain.ErrMemberNotFound):
		return http.StatusNotFound, "Member not found"
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, "Task not found"
	case errors.Is(err, domain.ErrNoActiveSubscription):
		return http.StatusNotFound, "No active subscription found"
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		return http.StatusNotFound, "No subscription found"

	case errors.Is(err, domain.ErrBillingProvider):
		log.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("billing provider error")
		return http.StatusBadGateway, "Payment provider unavailable"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}

// afterSentinel returns the text wrapped after sentinel, or the sentinel's own
// text when nothing follows it.
func afterSentinel(err, sentinel error) string {
	msg, prefix := err.Error(), sentinel.Error()+": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return sentinel.Error()
}

// validationMessage strips the sentinel prefix and capitalizes the rest.
func validationMessage(err error) string {
	msg := afterSentinel(err, domain.ErrValidation)
	if msg == domain.ErrValidation.Error() {
		return "Invalid input data"
	}
	r := []rune(msg)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
