package cache

import (
	"context"
	"fmt"
	"time"
)

// NopCache never stores anything. It stands in when redis is disabled or
// unreachable, so every read computes directly.
type NopCache struct {
	prefix string
}

var _ ResponseCache = (*NopCache)(nil)

func NewNopCache(prefix string) *NopCache {
	return &NopCache{prefix: prefix}
}

func (c *NopCache) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (c *NopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (c *NopCache) Delete(context.Context, ...string) error { return nil }

func (c *NopCache) BuildKey(kind ViewKind, ownerID string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, kind, ownerID)
}

func (c *NopCache) Close() error { return nil }
