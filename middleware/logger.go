package middleware

import (
	"log/slog"
	"time"

	"order-backend/pkg/ctxmanage"
	"order-backend/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Logger assigns every request a trace id and logs the outcome once the
// handler chain finishes.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := uuid.NewString()
		c.Set(ctxmanage.TraceIdKey, traceId)

		start := time.Now()
		c.Next()

		slog.Info("request completed",
			slog.String(logkey.TraceID, traceId),
			slog.String("Method", c.Request.Method),
			slog.String("Path", c.Request.URL.Path),
			slog.Int("Status", c.Writer.Status()),
			slog.String("Duration", time.Since(start).String()),
		)
	}
}
