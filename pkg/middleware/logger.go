package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Logger writes one access log line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		sc := trace.SpanFromContext(c.Request.Context()).SpanContext()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		}
		if tenantID, ok := TenantID(c.Request.Context()); ok {
			fields = append(fields, zap.String("tenant_id", tenantID))
		}

		if c.Writer.Status() >= 500 {
			zap.L().Warn("http request", fields...)
			return
		}
		zap.L().Info("http request", fields...)
	}
}
