package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cardpay/internal/repository"
	"cardpay/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	body := ErrorResponse{Error: err.Error()}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, body)
}

// respondBadRequest rejects a request that could not be decoded.
func respondBadRequest(c *gin.Context, field, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Field: field})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Provisioning failures wrap their cause, which may itself be ErrNotFound
	case errors.Is(err, service.ErrUserProvisioning):
		return http.StatusInternalServerError

	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrLimitExceeded),
		errors.Is(err, service.ErrDuplicateRecord):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized

	// Conflict errors
	case errors.Is(err, service.ErrCardOperationInProgress),
		errors.Is(err, service.ErrUserExists):
		return http.StatusConflict

	// Upstream provider failures
	case errors.Is(err, service.ErrProviderError):
		return http.StatusBadGateway

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
