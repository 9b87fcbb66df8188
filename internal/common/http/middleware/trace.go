package middleware

import (
	"context"
	"strings"

	"execoj/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDHeader   = "X-Trace-Id"
	requestIDHeader = "X-Request-Id"
	userIDHeader    = "X-User-Id"

	traceIDContextKey   = "trace_id"
	requestIDContextKey = "request_id"
	userIDContextKey    = "user_id"

	// AnonymousSubmitter identifies callers without an authenticated user id.
	AnonymousSubmitter = "anonymous"
)

// TraceContextConfig controls how trace/request/user id are extracted and written.
type TraceContextConfig struct {
	AllowUserIDHeader bool
	WriteUserIDHeader bool
}

// TraceContextMiddleware ensures trace/request/user id are in context and response headers.
func TraceContextMiddleware() gin.HandlerFunc {
	return TraceContextMiddlewareWithConfig(TraceContextConfig{
		AllowUserIDHeader: true,
		WriteUserIDHeader: true,
	})
}

// TraceContextMiddlewareWithConfig is the configurable version of TraceContextMiddleware.
func TraceContextMiddlewareWithConfig(cfg TraceContextConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		bind(c, traceIDContextKey, contextkey.TraceID, headerOrNew(c, traceIDHeader), traceIDHeader)
		bind(c, requestIDContextKey, contextkey.RequestID, headerOrNew(c, requestIDHeader), requestIDHeader)

		if cfg.AllowUserIDHeader {
			if userID := strings.TrimSpace(c.GetHeader(userIDHeader)); userID != "" {
				echo := ""
				if cfg.WriteUserIDHeader {
					echo = userIDHeader
				}
				bind(c, userIDContextKey, contextkey.UserID, userID, echo)
			}
		}

		c.Next()
	}
}

// SubmitterID returns the caller's user id, or AnonymousSubmitter.
func SubmitterID(c *gin.Context) string {
	if v, ok := c.Get(userIDContextKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return AnonymousSubmitter
}

func headerOrNew(c *gin.Context, header string) string {
	if v := strings.TrimSpace(c.GetHeader(header)); v != "" {
		return v
	}
	return uuid.NewString()
}

func bind(c *gin.Context, ginKey string, ctxKey interface{}, value, header string) {
	c.Set(ginKey, value)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey, value))
	if header != "" {
		c.Writer.Header().Set(header, value)
	}
}
