// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"net/http"

	"conviaq_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// AckResponse is the acknowledgement envelope used by mutation endpoints
// that have no payload to return: {"ok":true} or {"ok":false,"error":...}.
type AckResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// Ack sends a 200 acknowledgement envelope.
func Ack(c *gin.Context) {
	c.JSON(http.StatusOK, AckResponse{OK: true})
}

// Fail sends a failed acknowledgement envelope with the given status.
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, AckResponse{OK: false, Error: message})
}

// HandleError maps domain errors to HTTP responses.
// If the error is a typed *apperr.Error, it uses the error's Kind to determine
// the HTTP status code. Otherwise, it defaults to 400 Bad Request.
// Returns true if an error was handled, false otherwise.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	if domainErr, ok := err.(*apperr.Error); ok {
		c.JSON(domainErr.HTTPStatus(), ErrorResponse{
			Error:   domainErr.Message,
			Details: domainErr.Details,
		})
		return true
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	return true
}

// HandleErrorAck maps domain errors to the acknowledgement envelope.
// Untyped errors are treated as internal failures and never leak their text.
func HandleErrorAck(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	if domainErr, ok := err.(*apperr.Error); ok {
		Fail(c, domainErr.HTTPStatus(), domainErr.Message)
		return true
	}

	Fail(c, http.StatusInternalServerError, "internal error")
	return true
}
