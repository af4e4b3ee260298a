// Package httperr maps application errors onto HTTP responses. All
// handler packages route service errors through Respond so that the
// status mapping lives in exactly one place.
package httperr

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthcard/healthcard-api/pkg/types"
)

// Respond writes the error as JSON with the status implied by its type.
// Unknown error values are masked as a generic 500.
func Respond(c *gin.Context, err error) {
	appErr, ok := err.(*types.AppError)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"code":  types.ErrCodeInternalError,
		})
		return
	}

	body := gin.H{
		"error": appErr.Message,
		"code":  appErr.Code,
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}

	c.JSON(Status(appErr), body)
}

// Status returns the HTTP status for an application error
func Status(err *types.AppError) int {
	switch err.Type {
	case types.ErrorTypeValidation:
		return http.StatusBadRequest
	case types.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case types.ErrorTypeForbidden:
		return http.StatusForbidden
	case types.ErrorTypeNotFound:
		return http.StatusNotFound
	case types.ErrorTypeConflict:
		return http.StatusConflict
	case types.ErrorTypeCodeInvalid:
		return http.StatusBadRequest
	case types.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
