package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// ViewKind names one of the cached read paths.
type ViewKind string

const (
	ViewMessages      ViewKind = "messages"      // keyed by user id
	ViewThread        ViewKind = "thread"        // keyed by thread root id
	ViewConversations ViewKind = "conversations" // keyed by user id
)

// ResponseCache stores encoded view payloads under expiring keys.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	BuildKey(kind ViewKind, ownerID string) string
	Close() error
}
