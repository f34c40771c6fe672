package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/logistio/fleetauth/internal/handlers/render"
)

// Idle buckets are dropped so the per-client map can't grow forever
const (
	bucketTTL     = 5 * time.Minute
	evictInterval = time.Minute
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

type clientBuckets struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	perSecond float64
	burst     int
}

func newClientBuckets(perSecond float64, burst int) *clientBuckets {
	return &clientBuckets{
		buckets:   make(map[string]*bucket),
		perSecond: perSecond,
		burst:     burst,
	}
}

func (c *clientBuckets) limiterFor(addr string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[addr]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(c.perSecond), c.burst)}
		c.buckets[addr] = b
	}
	b.seen = time.Now()
	return b.lim
}

func (c *clientBuckets) evictIdle(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	for addr, b := range c.buckets {
		if b.seen.Before(cutoff) {
			delete(c.buckets, addr)
		}
	}
}

// RateLimitMiddleware caps requests per client address.
// Meant for the credential endpoints to slow down password guessing.
func RateLimitMiddleware(perSecond float64, burst int) func(http.Handler) http.Handler {
	clients := newClientBuckets(perSecond, burst)

	go func() {
		ticker := time.NewTicker(evictInterval)
		defer ticker.Stop()
		for range ticker.C {
			clients.evictIdle(bucketTTL)
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !clients.limiterFor(host).Allow() {
				render.ServiceError(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
