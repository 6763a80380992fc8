package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mls-delivery/internal/transport/httpdto"
	mls_errors "mls-delivery/pkg/errors"
)

// writeError translates a service error into the wire response. Conflict and
// invalid-state both map to 409 but keep distinct codes so callers can tell
// a lost compare-and-set race from a transition that can never succeed.
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, mls_errors.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, mls_errors.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, mls_errors.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, mls_errors.ErrInvalidState):
		status, code = http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, mls_errors.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "UNAVAILABLE"
	}
	c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
}
