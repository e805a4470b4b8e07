package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

const statusSuccess = "success"

// successResponse is the envelope of every successful JSON response.
type successResponse struct {
	Status  string `json:"status"`
	Results *int   `json:"results,omitempty"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the envelope rendered by the API error handler.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type userData struct {
	User *domain.User `json:"user"`
}

func success(c echo.Context, code int, data any) error {
	return c.JSON(code, successResponse{Status: statusSuccess, Data: data})
}

func successList(c echo.Context, n int, data any) error {
	return c.JSON(http.StatusOK, successResponse{Status: statusSuccess, Results: &n, Data: data})
}

func successToken(c echo.Context, code int, token string, user *domain.User) error {
	return c.JSON(code, successResponse{Status: statusSuccess, Token: token, Data: userData{User: user}})
}

func successMessage(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, successResponse{Status: statusSuccess, Message: msg})
}
