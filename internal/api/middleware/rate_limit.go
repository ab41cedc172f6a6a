package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/calcutta-sim/internal/services"
	"github.com/stitts-dev/calcutta-sim/pkg/utils"
)

// RateLimit rejects clients that exceed their token bucket
func RateLimit(limiter *services.ClientRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			utils.SendRateLimited(c, "Too many allocation requests, slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}
