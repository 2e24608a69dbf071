package transport

import (
	"sync"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/time/rate"
)

const (
	limiterCacheSize = 1000
	limiterTTL       = 24 * time.Hour
)

// ipRateLimiter hands out one token bucket per client IP. Buckets of IPs
// not seen for a while are evicted, least recently used first.
type ipRateLimiter struct {
	cache gcache.Cache
	mu    sync.Mutex
	r     rate.Limit
	b     int
}

func newIPRateLimiter(r rate.Limit, b int) *ipRateLimiter {
	if b < 1 {
		b = 1
	}

	return &ipRateLimiter{
		cache: gcache.New(limiterCacheSize).LRU().Build(),
		r:     r,
		b:     b,
	}
}

func (i *ipRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limiter, err := i.cache.Get(ip); err == nil {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(i.r, i.b)
	// SetWithExpire only fails when a serialize func is configured.
	_ = i.cache.SetWithExpire(ip, limiter, limiterTTL)

	return limiter
}

// Allow reports whether a command from ip may run now.
func (i *ipRateLimiter) Allow(ip string) bool {
	return i.getLimiter(ip).Allow()
}
