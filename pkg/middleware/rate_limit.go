package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"courtsync/pkg/logger"
)

// ClientRateLimiter keeps one token bucket per client address. Buckets refill
// at limit/window and allow short bursts up to the full limit.
type ClientRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	log      *logger.Logger
	stopCh   chan struct{}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewClientRateLimiter(requests int, window time.Duration, log *logger.Logger) *ClientRateLimiter {
	rl := &ClientRateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		log:      log,
		stopCh:   make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

func (rl *ClientRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for addr, cl := range rl.limiters {
				if time.Since(cl.lastSeen) > 1*time.Hour {
					delete(rl.limiters, addr)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *ClientRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *ClientRateLimiter) Allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[addr]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[addr] = cl
	}
	cl.lastSeen = time.Now()

	return cl.limiter.Allow()
}

func RateLimit(limiter *ClientRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddr(r)

			if !limiter.Allow(addr) {
				rejectRateLimited(w, limiter.log, r, addr)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, addr string) {
	log.Warn("Rate limit exceeded",
		"request_id", requestID(r),
		"client", addr,
		"path", r.URL.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}
