// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/teestudio/backend/internal/canvas"
	"github.com/teestudio/backend/internal/designstore"
	"github.com/teestudio/backend/internal/generate"
	"github.com/teestudio/backend/internal/mockup"
	"github.com/teestudio/backend/internal/session"
	"github.com/teestudio/backend/internal/storage"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewUnauthorizedError creates a 401 error
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

// NewForbiddenError creates a 403 error
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Status:  http.StatusForbidden,
		Code:    "FORBIDDEN",
		Message: message,
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// domainError translates errors from the canvas, session and storage layers.
// It returns nil for errors it does not recognise.
func domainError(err error) *APIError {
	withCause := func(status int, code, msg string) *APIError {
		return &APIError{Status: status, Code: code, Message: msg, Details: err.Error()}
	}
	switch {
	case errors.Is(err, canvas.ErrBusy):
		return withCause(http.StatusConflict, "CANVAS_BUSY", "another change is in progress, retry")
	case errors.Is(err, canvas.ErrDuplicateSource):
		return withCause(http.StatusConflict, "DUPLICATE_SOURCE", "image already on the canvas")
	case errors.Is(err, canvas.ErrImageDecode):
		return withCause(http.StatusUnprocessableEntity, "IMAGE_DECODE", "image could not be loaded")
	case errors.Is(err, canvas.ErrInvalidMutation), errors.Is(err, canvas.ErrInitialization):
		return withCause(http.StatusBadRequest, "INVALID_MUTATION", "change rejected")
	case errors.Is(err, canvas.ErrNotReady):
		return withCause(http.StatusConflict, "CANVAS_NOT_READY", "canvas is not initialized")
	case errors.Is(err, canvas.ErrExport):
		return withCause(http.StatusInternalServerError, "EXPORT_FAILED", "design could not be exported")
	case errors.Is(err, canvas.ErrClosed), errors.Is(err, session.ErrNotFound):
		return withCause(http.StatusNotFound, "NOT_FOUND", "session not found")
	case errors.Is(err, designstore.ErrNotFound):
		return withCause(http.StatusNotFound, "NOT_FOUND", "design not found")
	case errors.Is(err, storage.ErrNotFound):
		return withCause(http.StatusNotFound, "NOT_FOUND", "asset not found")
	case errors.Is(err, generate.ErrEmptyPrompt):
		return withCause(http.StatusBadRequest, "VALIDATION_ERROR", "validation failed for field: prompt")
	case errors.Is(err, generate.ErrNotConfigured):
		return withCause(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "image generation is not configured")
	case errors.Is(err, mockup.ErrSize):
		return withCause(http.StatusBadRequest, "VALIDATION_ERROR", "validation failed for field: size")
	}
	return nil
}

// toAPIError converts a domain error for returning from a handler. msg
// describes the operation for errors domainError does not know.
func toAPIError(err error, msg string) *APIError {
	if apiErr := domainError(err); apiErr != nil {
		return apiErr
	}
	return NewInternalError(msg, err)
}

// NewErrorHandler returns an echo.HTTPErrorHandler rendering APIError bodies.
// showDetails exposes the cause of unexpected errors to the client.
func NewErrorHandler(showDetails bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var httpErr *echo.HTTPError

		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			apiErr = &APIError{
				Status:  httpErr.Code,
				Code:    "HTTP_ERROR",
				Message: fmt.Sprintf("%v", httpErr.Message),
			}
		default:
			if apiErr = domainError(err); apiErr != nil {
				break
			}
			slog.Error("unhandled request error",
				"method", c.Request().Method, "path", c.Path(), "error", err)
			apiErr = &APIError{
				Status:  http.StatusInternalServerError,
				Code:    "UNKNOWN_ERROR",
				Message: "An unexpected error occurred",
			}
			if showDetails {
				apiErr.Details = err.Error()
			}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(apiErr.Status)
			return
		}
		_ = c.JSON(apiErr.Status, apiErr)
	}
}

// ErrorHandler is the default handler; it hides unexpected error details.
var ErrorHandler = NewErrorHandler(false)

// RespondWithError is a helper to respond with an APIError
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}
