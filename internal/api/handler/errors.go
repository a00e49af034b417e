package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/shortlink/internal/api/models"
	"github.com/jon4hz/shortlink/internal/users"
)

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, users.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, users.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, users.ErrSelfProtection),
		errors.Is(err, users.ErrForbidden),
		errors.Is(err, users.ErrBanned):
		return http.StatusForbidden
	case errors.Is(err, users.ErrInvalidRole),
		errors.Is(err, users.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, users.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, users.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError aborts the request with the status and message of err.
// Unexpected errors are logged and answered with a generic message.
func WriteError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		log.Error("Request failed", "path", c.FullPath(), "error", err)
		msg = "internal server error"
	case http.StatusServiceUnavailable:
		log.Error("Store unavailable", "path", c.FullPath(), "error", err)
		msg = users.ErrStoreUnavailable.Error()
	}
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: msg})
}
