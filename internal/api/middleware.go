package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/banshee-data/tryon/internal/httputil"
	"github.com/banshee-data/tryon/internal/monitoring"
	"github.com/banshee-data/tryon/internal/timeutil"
)

// DefaultLimiterIdle is how long a client's bucket survives without traffic.
const DefaultLimiterIdle = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client IP. Buckets idle for
// longer than Idle are dropped, so the table tracks only recent clients.
type RateLimiter struct {
	// Idle and Clock may be changed before the limiter is first used.
	Idle  time.Duration
	Clock timeutil.Clock

	mu        sync.Mutex
	bucket    map[string]*visitor
	lastSweep time.Time
	rate      rate.Limit
	burstSize int
}

// NewRateLimiter allows reqRate requests per second per client with bursts
// of burstSize.
func NewRateLimiter(reqRate rate.Limit, burstSize int) *RateLimiter {
	return &RateLimiter{
		Idle:      DefaultLimiterIdle,
		Clock:     timeutil.RealClock{},
		bucket:    make(map[string]*visitor),
		rate:      reqRate,
		burstSize: burstSize,
	}
}

// LimiterFor returns the bucket for ip, creating it on first use.
func (rl *RateLimiter) LimiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.Clock.Now()
	if now.Sub(rl.lastSweep) >= rl.Idle {
		rl.sweep(now)
	}
	v, exist := rl.bucket[ip]
	if !exist {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burstSize)}
		rl.bucket[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// sweep drops buckets not seen within Idle. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for ip, v := range rl.bucket {
		if now.Sub(v.lastSeen) > rl.Idle {
			delete(rl.bucket, ip)
		}
	}
	rl.lastSweep = now
}

// Len reports how many client buckets are held.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.bucket)
}

// Middleware rejects requests beyond the client's budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.LimiterFor(ip).Allow() {
			monitoring.Logf("[api] too many requests from %s", ip)
			httputil.WriteJSONError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CORSMiddleware lets browser front ends on other origins call the API.
// An empty allowOrigin means "*".
func CORSMiddleware(allowOrigin string, next http.Handler) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
