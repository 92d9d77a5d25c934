package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/message-service/internal/metrics"
	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/response"
)

// ClientKey resolves the limiter key of a request: the first forwarded
// address, else the peer address, else UnknownClient.
func ClientKey(r *http.Request) string {
	if ip := log.ClientIP(r); ip != "" {
		return ip
	}
	return UnknownClient
}

// Middleware rejects requests over the limit with 429. Limiter failures
// let the request through.
func Middleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		l := log.Ctx(ctx)

		key := ClientKey(c.Request)
		if key == UnknownClient {
			l.Warn().Msg("rate limit: no client address, using shared bucket")
		}

		d, err := limiter.Allow(ctx, key)
		if err != nil {
			metrics.RateLimitDecisions.WithLabelValues(metrics.RateLimitError).Inc()
			l.Error().Err(err).Str(log.FieldClientKey, key).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			metrics.RateLimitDecisions.WithLabelValues(metrics.RateLimitRejected).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			l.Info().Str(log.FieldClientKey, key).Dur("retry_after", d.RetryAfter).Msg("rate limit exceeded")
			response.TooManyRequests(c, "too many requests, please retry later")
			return
		}

		metrics.RateLimitDecisions.WithLabelValues(metrics.RateLimitAllowed).Inc()
		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
