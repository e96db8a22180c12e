// Package ratelimit enforces the manual-trigger rate limit: at most one
// client-initiated run every configured window, per client IP, plus a
// single global flag preventing overlapping manual runs across the
// whole process.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a caller is inside its cooldown
// window, or when a manual run is already in flight.
var ErrRateLimited = fmt.Errorf("ratelimit: rate limited")

// Limiter gates manual scrape triggers. When a Redis client is
// supplied it coordinates across processes via INCR+EXPIRE; with a nil
// client it falls back to an in-process map, matching the single-process
// deployment this system otherwise assumes.
type Limiter struct {
	redis  *redis.Client
	window time.Duration

	mu       sync.Mutex
	lastHit  map[string]time.Time // in-process fallback
	inFlight bool
}

// New builds a Limiter with the given cooldown window. client may be
// nil, in which case the in-process fallback is used exclusively.
func New(client *redis.Client, window time.Duration) *Limiter {
	return &Limiter{
		redis:   client,
		window:  window,
		lastHit: make(map[string]time.Time),
	}
}

// Allow reports whether clientIP may trigger a manual run now. On
// success it also claims the global in-flight flag; callers must call
// Release when the triggered cycle completes.
func (l *Limiter) Allow(ctx context.Context, clientIP string) error {
	l.mu.Lock()
	if l.inFlight {
		l.mu.Unlock()
		return fmt.Errorf("%w: a manual run is already in progress", ErrRateLimited)
	}
	l.mu.Unlock()

	ok, err := l.checkIP(ctx, clientIP)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: try again later", ErrRateLimited)
	}

	l.mu.Lock()
	l.inFlight = true
	l.mu.Unlock()
	return nil
}

// Release clears the global in-flight flag.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight = false
}

func (l *Limiter) checkIP(ctx context.Context, clientIP string) (bool, error) {
	if l.redis != nil {
		return l.checkIPRedis(ctx, clientIP)
	}
	return l.checkIPLocal(clientIP), nil
}

// checkIPRedis uses INCR+EXPIRE on a per-IP key: the first hit in a
// window sets the TTL, subsequent hits within it are rejected.
func (l *Limiter) checkIPRedis(ctx context.Context, clientIP string) (bool, error) {
	key := "fundawatch:manual-trigger:" + clientIP

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis incr: %w", err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: redis expire: %w", err)
		}
	}
	return count == 1, nil
}

func (l *Limiter) checkIPLocal(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if last, ok := l.lastHit[clientIP]; ok && now.Sub(last) < l.window {
		return false
	}
	l.lastHit[clientIP] = now
	return true
}
