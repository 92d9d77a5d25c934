// Package ratelimit gates message creation with a per-client sliding window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-live/message-service/internal/config"
)

// UnknownClient is the shared bucket for requests without a resolvable address.
const UnknownClient = "unknown"

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

var ErrInvalidConfig = errors.New("invalid rate limit config")

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects one request for a client key. A rejected
// request is not recorded.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// New builds the limiter selected by cfg.Driver. The redis driver needs a
// connected client.
func New(cfg config.RateLimitConfig, client *redis.Client) (Limiter, error) {
	if cfg.MaxRequests <= 0 || cfg.Window <= 0 {
		return nil, fmt.Errorf("%w: max_requests=%d window=%s", ErrInvalidConfig, cfg.MaxRequests, cfg.Window)
	}

	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryLimiter(cfg.MaxRequests, cfg.Window), nil
	case DriverRedis:
		if client == nil {
			return nil, fmt.Errorf("%w: redis driver without a redis client", ErrInvalidConfig)
		}
		return NewRedisLimiter(client, cfg.Prefix, cfg.MaxRequests, cfg.Window), nil
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, cfg.Driver)
	}
}
