package imageai

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Songmu/flextime"
	"github.com/mashiike/imageai/transport"
	"golang.org/x/time/rate"
)

// ErrorMessageTooManyRequests is the body of a rate limited response.
const ErrorMessageTooManyRequests = "Too many requests"

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds a token bucket per client address.
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	proxies  int
	logger   *slog.Logger
}

// NewRateLimiter creates a limiter allowing limit requests per second with
// the given burst to every client.
func NewRateLimiter(limit rate.Limit, burst int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		logger:   logger,
	}
}

// TrustProxies makes the limiter key clients by X-Forwarded-For, as written
// by n trusted proxies in front of the server. Each proxy appends the address
// it saw, so the client is the n-th hop from the right; hops further left are
// client supplied and ignored. With n == 0 only the peer address is used.
func (rl *RateLimiter) TrustProxies(n int) *RateLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if n < 0 {
		n = 0
	}
	rl.proxies = n
	return rl
}

// Allow reports whether the client identified by key may make a request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	now := flextime.Now()
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup forgets clients idle for longer than idle.
func (rl *RateLimiter) Cleanup(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := flextime.Now().Add(-idle)
	removed := 0
	for key, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rl.Cleanup(interval); n > 0 {
					rl.logger.DebugContext(ctx, "removed idle rate limiters", "count", n)
				}
			}
		}
	}()
}

// Middleware rejects POST requests over the limit with 429. Probes and
// metrics scrapes are never limited.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		key := rl.clientAddr(r)
		if !rl.Allow(key) {
			rl.logger.WarnContext(r.Context(), "rate limit exceeded", "client", key, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(transport.ErrorResponse{Error: ErrorMessageTooManyRequests})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) clientAddr(r *http.Request) string {
	rl.mu.Lock()
	proxies := rl.proxies
	rl.mu.Unlock()
	return clientAddr(r, proxies)
}

// clientAddr returns the address of the client behind proxies trusted proxies.
// It falls back to the peer address when the header has fewer hops.
func clientAddr(r *http.Request, proxies int) string {
	if proxies > 0 {
		var hops []string
		for _, v := range r.Header.Values("X-Forwarded-For") {
			for _, hop := range strings.Split(v, ",") {
				hops = append(hops, strings.TrimSpace(hop))
			}
		}
		if i := len(hops) - proxies; i >= 0 && hops[i] != "" {
			return hops[i]
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
