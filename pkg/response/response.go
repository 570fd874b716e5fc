// Package response renders the portal's JSON envelope: successful responses carry
// "error": null next to their payload keys, failures carry
// "error": {"status": <code>, "message": <text>}.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/membership-portal/backend/internal/apperrors"
)

// ErrorBody is the error half of the envelope.
type ErrorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// FailureBody is the envelope for failed requests.
type FailureBody struct {
	Error ErrorBody `json:"error"`
}

// OK sends a 200 JSON response merging data into the envelope with "error": null.
func OK(c *gin.Context, data gin.H) {
	c.JSON(http.StatusOK, envelope(data))
}

// Created sends a 201 JSON response.
func Created(c *gin.Context, data gin.H) {
	c.JSON(http.StatusCreated, envelope(data))
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, msg string) {
	Fail(c, http.StatusBadRequest, msg)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, msg string) {
	Fail(c, http.StatusUnauthorized, msg)
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, msg string) {
	Fail(c, http.StatusForbidden, msg)
}

// NotFound sends 404.
func NotFound(c *gin.Context, msg string) {
	Fail(c, http.StatusNotFound, msg)
}

// Internal sends 500.
func Internal(c *gin.Context, msg string) {
	Fail(c, http.StatusInternalServerError, msg)
}

// Fail sends the failure envelope with the given status.
func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, FailureBody{Error: ErrorBody{Status: status, Message: msg}})
}

// Error maps err onto the taxonomy in apperrors. Internal errors are logged with
// their cause and answered with a generic message.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	status := apperrors.StatusOf(err)
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		Fail(c, status, apperrors.InternalMessage)
		return
	}
	Fail(c, status, apperrors.MessageOf(err))
}

func envelope(data gin.H) gin.H {
	out := gin.H{"error": nil}
	for k, v := range data {
		if k == "error" {
			continue
		}
		out[k] = v
	}
	return out
}
