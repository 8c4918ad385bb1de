package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/vidgrab-go/internal/domain"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrDownloadNotFound),
		errors.Is(err, domain.ErrPluginNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedURL):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrPluginExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotPortable):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": "..."} and records it on the context
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
