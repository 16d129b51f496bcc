package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// cleanupThreshold is the map size above which idle entries are pruned.
	cleanupThreshold = 500
	maxIdleAge       = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one token bucket per caller.
type KeyedRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	r       rate.Limit
	b       int
}

// NewKeyedRateLimiter allows r requests per second with burst b per key.
func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{entries: make(map[string]*limiterEntry), r: r, b: b}
}

// Allow spends one token of key's bucket.
func (k *KeyedRateLimiter) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	if len(k.entries) > cleanupThreshold {
		cutoff := now.Add(-maxIdleAge)
		for id, e := range k.entries {
			if e.lastSeen.Before(cutoff) {
				delete(k.entries, id)
			}
		}
	}
	e, ok := k.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(k.r, k.b)}
		k.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

// Middleware limits authenticated callers by identity and everyone else by
// remote address.
func (k *KeyedRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ""
		if p, ok := PrincipalFrom(r.Context()); ok {
			key = "id:" + p.Identity
		} else {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			key = "ip:" + ip
		}
		if !k.Allow(key) {
			writeErr(w, ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
