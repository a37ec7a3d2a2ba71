package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/use-agent/pagemd/models"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// maxRequestIDLen caps caller-supplied request ids.
const maxRequestIDLen = 128

// RequestLog assigns every request an id and logs it once it completes.
//
// An incoming X-Request-ID is kept so ids can be correlated across services;
// otherwise a new uuid is generated. The id is echoed in the response header.
func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(models.HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.New().String()
		}
		c.Set(RequestIDKey, id)
		c.Header(models.HeaderRequestID, id)

		c.Next()

		attrs := []any{
			"requestID", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"latency", time.Since(start),
			"client", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			slog.Error("request completed", attrs...)
		case status >= 400:
			slog.Warn("request completed", attrs...)
		default:
			slog.Info("request completed", attrs...)
		}
	}
}

// RequestID returns the id assigned by RequestLog, or "" outside it.
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
