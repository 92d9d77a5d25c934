package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-live/message-service/internal/metrics"
	"github.com/weiawesome/wes-io-live/pkg/log"
)

// DefaultTTL bounds how stale a cached view can get without invalidation.
const DefaultTTL = 60 * time.Second

// computeTimeout bounds one shared view computation. The computation is not
// tied to any single caller, so it needs its own deadline.
const computeTimeout = 10 * time.Second

// ViewCache serves view payloads read-through from a ResponseCache.
// Store failures are logged and the view is computed directly instead.
type ViewCache struct {
	store ResponseCache
	ttl   time.Duration
	sf    singleflight.Group

	// generation moves on every invalidation. A result computed across an
	// invalidation is returned but not stored, since it may predate the
	// commit that triggered it.
	generation atomic.Uint64
}

func NewViewCache(store ResponseCache, ttl time.Duration) *ViewCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ViewCache{store: store, ttl: ttl}
}

// Target identifies one cached view.
type Target struct {
	Kind    ViewKind
	OwnerID string
}

// UserViews returns the message-list and conversation targets of users.
func UserViews(userIDs ...string) []Target {
	targets := make([]Target, 0, 2*len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		targets = append(targets, Target{ViewMessages, id}, Target{ViewConversations, id})
	}
	return targets
}

// ThreadViews returns the thread targets of the given roots.
func ThreadViews(rootIDs ...string) []Target {
	targets := make([]Target, 0, len(rootIDs))
	for _, id := range rootIDs {
		if id == "" {
			continue
		}
		targets = append(targets, Target{ViewThread, id})
	}
	return targets
}

// Load returns the encoded view for (kind, ownerID). On a miss compute runs,
// its result is JSON-encoded, stored with a fresh TTL and returned. A hit
// returns the stored bytes as they are. Concurrent misses on one key share
// a single computation, which outlives the cancellation of any caller.
func (v *ViewCache) Load(ctx context.Context, kind ViewKind, ownerID string, compute func(ctx context.Context) (any, error)) ([]byte, error) {
	key := v.store.BuildKey(kind, ownerID)

	ch := v.sf.DoChan(key, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(log.Detach(ctx), computeTimeout)
		defer cancel()
		return v.fetchWithCache(flightCtx, kind, key, compute)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	payload, ok := res.Val.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return payload, nil
}

func (v *ViewCache) fetchWithCache(ctx context.Context, kind ViewKind, key string, compute func(ctx context.Context) (any, error)) ([]byte, error) {
	l := log.Ctx(ctx)

	cached, err := v.store.Get(ctx, key)
	if err == nil {
		metrics.CacheLookups.WithLabelValues(string(kind), metrics.CacheHit).Inc()
		return cached, nil
	}
	if errors.Is(err, ErrCacheMiss) {
		metrics.CacheLookups.WithLabelValues(string(kind), metrics.CacheMiss).Inc()
	} else {
		metrics.CacheLookups.WithLabelValues(string(kind), metrics.CacheError).Inc()
		l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("cache get error")
	}

	gen := v.generation.Load()

	view, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s view: %w", kind, err)
	}

	if v.generation.Load() != gen {
		l.Debug().Str(log.FieldCacheKey, key).Msg("view invalidated during computation, not caching")
		return payload, nil
	}

	if err := v.store.Set(ctx, key, payload, v.ttl); err != nil {
		l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("cache set error")
	}
	return payload, nil
}

// Invalidate deletes the given views. Call it only after the mutating
// transaction has committed. Failures are logged, never returned.
func (v *ViewCache) Invalidate(ctx context.Context, targets ...Target) {
	v.generation.Add(1)
	if len(targets) == 0 {
		return
	}

	seen := make(map[string]struct{}, len(targets))
	keys := make([]string, 0, len(targets))
	for _, t := range targets {
		key := v.store.BuildKey(t.Kind, t.OwnerID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
		v.sf.Forget(key)
	}

	if err := v.store.Delete(ctx, keys...); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation error")
		return
	}
	metrics.CacheInvalidations.Add(float64(len(keys)))
}

// Close releases the underlying store.
func (v *ViewCache) Close() error {
	return v.store.Close()
}
