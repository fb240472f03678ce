package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "demo-trader/internal/errors"
)

// Response is the envelope of every JSON response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error carries a stable error kind and a human readable message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success sends a successful response. POST requests answer 201.
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == http.MethodPost {
		status = http.StatusCreated
	}
	c.JSON(status, Response{Success: true, Data: data})
}

// Fail sends an error response with the status derived from its kind.
// Internal errors are logged and reported without detail.
func Fail(c *gin.Context, err error) {
	kind := apperrors.Kind(err)
	status := statusFor(kind)
	msg := err.Error()
	if kind == apperrors.KindInternal {
		logger := requestLogger(c)
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		msg = "An unexpected error occurred"
	}
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   &Error{Code: kind, Message: msg},
	})
}

// BadRequest sends a 400 for malformed input that never reached the service.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   &Error{Code: apperrors.KindValidation, Message: message},
	})
}

func statusFor(kind string) int {
	switch kind {
	case apperrors.KindValidation, apperrors.KindInvalidQuantity:
		return http.StatusBadRequest
	case apperrors.KindOrderNotFound:
		return http.StatusNotFound
	case apperrors.KindInvalidState, apperrors.KindMarketClosed:
		return http.StatusConflict
	case apperrors.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case apperrors.KindReadOnly:
		return http.StatusForbidden
	case apperrors.KindQuoteUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
