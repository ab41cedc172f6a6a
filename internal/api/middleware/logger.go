package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/calcutta-sim/pkg/logger"
)

// RequestIDHeader carries the request ID in and out of the service
const RequestIDHeader = "X-Request-ID"

// AllocationIDKey is the context key handlers set to the persisted run ID
const AllocationIDKey = "allocation_id"

// Logger logs one structured line per request and tags the request with an ID
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		entry := logger.WithRequestContext(requestID, c.GetString(AllocationIDKey)).
			WithFields(logger.WithHTTPContext(c.Request.Method, c.Request.URL.Path, c.Request.UserAgent()).Data).
			WithFields(logrus.Fields{
				"status":    c.Writer.Status(),
				"latency":   time.Since(start),
				"client_ip": c.ClientIP(),
			})

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request completed")
		}
	}
}
