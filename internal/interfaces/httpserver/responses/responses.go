package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

// ErrorResponse is the error payload returned by all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HandleErrorWithStatus writes an error response with an explicit status.
func HandleErrorWithStatus(c *gin.Context, status int, err error, message string) {
	body := ErrorResponse{Error: message}
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		body.Code = platformErr.Code
	}
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

// HandleError maps a tagged error to its HTTP status.
func HandleError(c *gin.Context, err error, message string) {
	HandleErrorWithStatus(c, statusFor(err), err, message)
}

func statusFor(err error) int {
	switch platformerrors.TypeOf(err) {
	case platformerrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case platformerrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case platformerrors.ErrorTypeConflict:
		return http.StatusConflict
	case platformerrors.ErrorTypeConfiguration:
		return http.StatusUnprocessableEntity
	case platformerrors.ErrorTypeUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
