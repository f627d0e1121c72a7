package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shelfmark/bookmeta/pkg/ratelimit"
)

// RateLimiter is the per-caller budget check. Implemented by
// ratelimit.Limiter.
type RateLimiter interface {
	Check(ctx context.Context, c ratelimit.Caller) (ratelimit.Decision, error)
}

const requestIDKey = "requestID"

// requestID returns the request's correlation id, set by RequestID.
func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestID assigns every request a correlation id, honoring an
// X-Request-ID supplied by a fronting proxy. The id is echoed on the
// response and attached to every log line for the request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// AccessLog emits one structured log line per request.
func AccessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", requestID(c)).
			Str("client_ip", c.ClientIP()).
			Msg("Request handled")
	}
}

// RateLimit enforces the per-caller budget before any handler work. The
// limit headers are set on every response; blocked requests get 429 with
// Retry-After. A counter-store failure yields 500, never a silent allow.
func RateLimit(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := ratelimit.Caller{
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
			EdgeHop:   c.GetHeader("X-Edge-Hop"),
		}

		decision, err := limiter.Check(c.Request.Context(), caller)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "rate limit check failed", nil)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))

		if !decision.Allowed {
			retryAfter := int64(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			writeError(c, http.StatusTooManyRequests, "rate limit exceeded", gin.H{
				"limit":             decision.Limit,
				"current":           decision.Current,
				"retryAfterSeconds": retryAfter,
			})
			return
		}

		c.Next()
	}
}
