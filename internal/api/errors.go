package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-accident-alerts/internal/apperr"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	body := gin.H{
		"status": false,
		"error":  err.Error(),
	}
	var ve *apperr.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		body["field"] = ve.Field
	}
	c.AbortWithStatusJSON(statusFor(err), body)
}
