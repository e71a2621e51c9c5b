package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"eldercare-comm/internal/service"
)

// HandleServiceError maps business errors to HTTP status codes. Anything not
// recognized is logged and reported as a 500 without leaking internals.
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrCallNotFound),
		errors.Is(err, service.ErrContactNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
