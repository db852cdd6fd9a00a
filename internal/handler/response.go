package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/lifeline/donation-api/pkg/errors"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/validator"
)

type Response struct {
	Status   string      `json:"status"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// NewWarningResponse is a success whose collaborator calls partly failed.
func NewWarningResponse(data interface{}, warnings []string) *Response {
	return &Response{
		Status:   "success",
		Data:     data,
		Warnings: warnings,
	}
}

// RespondError maps err to its HTTP status. Anything that is not an
// AppError is logged and hidden behind a generic 500.
func RespondError(c *gin.Context, err error) {
	if appErr, ok := apperrors.As(err); ok && appErr.Code != apperrors.ErrInternal {
		c.AbortWithStatusJSON(appErr.Status(), NewErrorResponse(appErr.Message))
		return
	}

	log := logger.FromContext(c.Request.Context(), nil)
	if log != nil {
		log.Error(err, "Request failed",
			"method", c.Request.Method,
			"path", c.FullPath())
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
}

// RespondBindError reports a failed ShouldBind* as a 400.
func RespondBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse(validator.Describe(err)))
}
