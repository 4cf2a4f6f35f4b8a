package httpadapter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/knowledge-base/internal/observability/metrics"
)

// ClientRateLimiter keeps one token bucket per remote host. Stale buckets are
// evicted after an idle period so the map stays bounded.
type ClientRateLimiter struct {
	limit   rate.Limit
	burst   int
	metrics *metrics.HTTPServerMetrics
	service string

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const clientIdleEviction = 10 * time.Minute

func NewClientRateLimiter(rps float64, burst int, serverMetrics *metrics.HTTPServerMetrics, service string) *ClientRateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &ClientRateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		metrics: serverMetrics,
		service: service,
		clients: make(map[string]*clientBucket),
	}
}

func (l *ClientRateLimiter) allow(clientKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, ok := l.clients[clientKey]
	if !ok {
		for key, other := range l.clients {
			if now.Sub(other.lastSeen) > clientIdleEviction {
				delete(l.clients, key)
			}
		}
		bucket = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[clientKey] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.Allow()
}

func (l *ClientRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientKey := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			clientKey = host
		}

		if !l.allow(clientKey) {
			if l.metrics != nil {
				l.metrics.RecordRateLimited(l.service)
			}
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
