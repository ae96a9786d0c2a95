package ctxmanage

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceIdKey is the gin context key under which middleware.Logger stores
// the per-request trace id.
const TraceIdKey = "traceId"

// GetTraceIdOfRequest returns the trace id set by the logging middleware.
// Requests that bypass the middleware (webhooks hit before it in tests)
// still get a usable id.
func GetTraceIdOfRequest(c *gin.Context) string {
	traceId, ok := c.Value(TraceIdKey).(string)
	if !ok || traceId == "" {
		return uuid.NewString()
	}
	return traceId
}
