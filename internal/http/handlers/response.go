// Package handlers provides HTTP handler implementations for the public API.
//
// Every response, success or failure, uses one envelope:
//
//	{ "success": true,  "message": "", "data": { ... } }
//	{ "success": false, "message": "...", "code": "not_found", "request_id": "..." }
//
// fail() centralizes error formatting and logs 5xx with the request-scoped
// logger. ok() and noContent() cover the success paths.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-timezones-backend/internal/http/middleware"
	"github.com/tbourn/go-timezones-backend/internal/services"
)

// Envelope is the success wrapper returned by all JSON endpoints.
type Envelope struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:""`
	Data    any    `json:"data"`
}

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	Success bool `json:"success" example:"false"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// fail aborts the request with a structured error. Server errors (>=500) are
// logged with the request-scoped logger from middleware.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		Success:   false,
		Message:   msg,
		Code:      code,
		RequestID: c.Writer.Header().Get("X-Request-ID"),
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failService maps a service error onto a status and code.
func failService(c *gin.Context, err error) {
	var se *services.StorageError
	switch {
	case errors.Is(err, services.ErrUnknownZone):
		fail(c, http.StatusUnprocessableEntity, ErrCodeUnknownZone, err.Error())
	case errors.Is(err, services.ErrSelectionNotFound):
		fail(c, http.StatusNotFound, ErrCodeSelectionNotFound, "zone is not selected")
	case errors.As(err, &se), errors.Is(err, services.ErrStorage):
		if se != nil {
			middleware.LoggerFrom(c).Error().Err(se.Err).Str("op", se.Op).Msg("storage failure")
		}
		c.Header("Retry-After", "1")
		fail(c, http.StatusServiceUnavailable, ErrCodeStorageUnavailable, "storage unavailable, retry later")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusServiceUnavailable, ErrCodeStorageUnavailable, "request cancelled")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// ok writes data inside a success envelope.
func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// okMessage writes data with a non-empty message, used for partial results.
func okMessage(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, Envelope{Success: true, Message: msg, Data: data})
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
