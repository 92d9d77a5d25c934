package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-live/message-service/internal/metrics"
)

// clientWindow holds the admitted request times of one client, oldest first.
type clientWindow struct {
	mu      sync.Mutex
	stamps  []time.Time
	evicted bool
}

// MemoryLimiter keeps every client window in process memory. Prune, count
// and append for one key run under that key's mutex.
type MemoryLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientWindow
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(maxRequests int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     maxRequests,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*clientWindow),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	for {
		w := l.windowFor(key)

		w.mu.Lock()
		if w.evicted {
			// Swept between lookup and lock; retry against a fresh window.
			w.mu.Unlock()
			continue
		}
		d := l.admit(w, l.now())
		w.mu.Unlock()
		return d, nil
	}
}

func (l *MemoryLimiter) windowFor(key string) *clientWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.clients[key]
	if !ok {
		w = &clientWindow{}
		l.clients[key] = w
		metrics.RateLimitTrackedClients.Set(float64(len(l.clients)))
	}
	return w
}

// admit must be called with w.mu held.
func (l *MemoryLimiter) admit(w *clientWindow, now time.Time) Decision {
	w.prune(now.Add(-l.window))

	d := Decision{Limit: l.max}
	if len(w.stamps) >= l.max {
		d.RetryAfter = w.stamps[0].Add(l.window).Sub(now)
		return d
	}

	w.stamps = append(w.stamps, now)
	d.Allowed = true
	d.Remaining = l.max - len(w.stamps)
	return d
}

// prune drops stamps strictly older than windowStart.
func (w *clientWindow) prune(windowStart time.Time) {
	i := 0
	for i < len(w.stamps) && w.stamps[i].Before(windowStart) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(w.stamps, w.stamps[i:])
	clear(w.stamps[n:])
	w.stamps = w.stamps[:n]
}

// EvictIdle removes clients whose windows have fully slid past and returns
// how many were dropped.
func (l *MemoryLimiter) EvictIdle(_ context.Context) int {
	windowStart := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, w := range l.clients {
		w.mu.Lock()
		w.prune(windowStart)
		if len(w.stamps) == 0 {
			w.evicted = true
			delete(l.clients, key)
			evicted++
		}
		w.mu.Unlock()
	}
	metrics.RateLimitTrackedClients.Set(float64(len(l.clients)))
	return evicted
}

// Tracked returns the number of client windows held.
func (l *MemoryLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
