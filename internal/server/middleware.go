package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/course-jobs/internal/common"
)

const (
	principalHeader = "X-Principal-ID"
	requestIDHeader = "X-Request-ID"
)

// RequestID propagates or assigns a request id. It travels with dispatched
// jobs as their trace id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// PrincipalMiddleware requires the caller identity header set by the
// upstream gateway.
func PrincipalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := strings.TrimSpace(c.GetHeader(principalHeader))
		if principal == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + principalHeader})
			return
		}
		c.Request = c.Request.WithContext(common.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// AccessLog logs one line per request.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"request_id", common.RequestIDFromContext(c.Request.Context()),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}
