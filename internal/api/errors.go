package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"courtside/internal/apperr"
)

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidTimeFormat),
		errors.Is(err, apperr.ErrInvalidDateFormat),
		errors.Is(err, apperr.ErrTimeOrder),
		errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrNoRemainingClasses):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrDataAccess):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error body. Internal details of 5xx errors are
// logged, not returned.
func fail(c *gin.Context, err error) {
	status := StatusFor(err)
	_ = c.Error(err)

	body := gin.H{"error": err.Error()}
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.FieldErrors
	}
	switch status {
	case http.StatusInternalServerError:
		body["error"] = "internal error"
	case http.StatusServiceUnavailable:
		body["error"] = "storage unavailable, please retry"
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
