package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/forprompt/forprompt/api/internal/middleware"
	apperrors "github.com/forprompt/forprompt/api/internal/pkg/errors"
)

// RequireProjectID extracts the authenticated project ID from the request
// context. The returned error is a fiber 401 for the app error handler;
// callers must return it unchanged.
func RequireProjectID(c *fiber.Ctx) (uuid.UUID, error) {
	projectID, ok := middleware.GetProjectID(c)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "missing project authentication")
	}
	return projectID, nil
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorResponse creates a standardized JSON error response.
func errorResponse(c *fiber.Ctx, statusCode int, message string) error {
	errorName := "Error"
	switch statusCode {
	case fiber.StatusBadRequest:
		errorName = "Bad Request"
	case fiber.StatusUnauthorized:
		errorName = "Unauthorized"
	case fiber.StatusForbidden:
		errorName = "Forbidden"
	case fiber.StatusNotFound:
		errorName = "Not Found"
	case fiber.StatusConflict:
		errorName = "Conflict"
	case fiber.StatusInternalServerError:
		errorName = "Internal Server Error"
	}

	return c.Status(statusCode).JSON(ErrorResponse{
		Error:   errorName,
		Message: message,
	})
}

// serviceError maps a service-layer error onto an HTTP response, hiding
// internal detail behind fallbackMessage for unexpected failures.
func serviceError(c *fiber.Ctx, err error, fallbackMessage string) error {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return errorResponse(c, appErr.StatusCode, appErr.Message)
	}
	return errorResponse(c, fiber.StatusInternalServerError, fallbackMessage)
}
