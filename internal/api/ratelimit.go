package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter throttles the polled read endpoints (event feeds) with a
// fixed-window counter per client IP.
type RateLimiter struct {
	mu    sync.Mutex
	seen  map[string]*window
	limit int
	span  time.Duration
}

type window struct {
	remaining int
	opened    time.Time
}

// NewRateLimiter allows limit requests per span for each client IP.
func NewRateLimiter(limit int, span time.Duration) *RateLimiter {
	rl := &RateLimiter{
		seen:  make(map[string]*window),
		limit: limit,
		span:  span,
	}
	go rl.sweep()
	return rl
}

// sweep drops windows that have been idle long past their span.
func (rl *RateLimiter) sweep() {
	for {
		time.Sleep(time.Hour)

		rl.mu.Lock()
		cutoff := time.Now().Add(-2 * rl.span)
		for ip, w := range rl.seen {
			if w.opened.Before(cutoff) {
				delete(rl.seen, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow consumes one request slot for ip, reporting whether it fit in the
// current window. An expired window restarts fresh.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.seen[ip]
	if !ok || now.Sub(w.opened) >= rl.span {
		rl.seen[ip] = &window{remaining: rl.limit - 1, opened: now}
		return true
	}
	if w.remaining == 0 {
		return false
	}
	w.remaining--
	return true
}

// RetryAfter returns whole seconds until ip's window resets.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.seen[ip]
	if !ok {
		return 0
	}
	left := rl.span - time.Since(w.opened)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds()) + 1
}

// clientIP picks the caller's address, preferring the first hop of
// X-Forwarded-For when a proxy sits in front.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware rejects requests over the limit with 429 and a
// Retry-After hint.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(ip)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
