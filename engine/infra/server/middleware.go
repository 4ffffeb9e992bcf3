package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lexiscope/lexiscope/engine/core"
	"github.com/lexiscope/lexiscope/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware assigns every request an id and threads a
// request-scoped logger through the context.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = core.NewRequestID()
		}
		c.Header(requestIDHeader, requestID)
		ctx := c.Request.Context()
		log := logger.FromContext(ctx).With("request_id", requestID)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(ctx, log))
		c.Next()
	}
}

// respondError maps engine error codes to HTTP statuses and emits a
// uniform error envelope.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := core.ErrCodeInternal
	var details map[string]any

	var engineErr *core.Error
	if errors.As(err, &engineErr) {
		code = engineErr.Code
		details = engineErr.Details
		switch engineErr.Code {
		case core.ErrCodeInvalidInput:
			status = http.StatusBadRequest
		case core.ErrCodeNotFound:
			status = http.StatusNotFound
		case core.ErrCodeTotalFailure:
			status = http.StatusBadGateway
		case core.ErrCodeIndexUnavailable:
			status = http.StatusServiceUnavailable
		case core.ErrCodePersistence:
			status = http.StatusInternalServerError
		}
	}
	logger.FromContext(c.Request.Context()).Error("request failed",
		"status", status, "code", code, "error", err)

	body := gin.H{
		"error": gin.H{
			"code":    code,
			"message": err.Error(),
		},
	}
	if len(details) > 0 {
		body["error"].(gin.H)["details"] = details
	}
	c.JSON(status, body)
}
