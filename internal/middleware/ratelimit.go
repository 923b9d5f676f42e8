package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// RateLimitMiddleware limits requests per client over a sliding window
type RateLimitMiddleware struct {
	maxRequests int
	window      time.Duration
	trustProxy  bool
	requests    map[string][]time.Time
	lastSweep   time.Time
	mu          sync.Mutex
	now         func() time.Time
}

// NewRateLimitMiddleware creates a new rate limiting middleware. Proxy
// headers identify the client only when trustProxy is set.
func NewRateLimitMiddleware(maxRequests int, window time.Duration, trustProxy bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		maxRequests: maxRequests,
		window:      window,
		trustProxy:  trustProxy,
		requests:    make(map[string][]time.Time),
		now:         time.Now,
	}
}

// RateLimit applies rate limiting based on client IP address
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := m.clientIP(r)
		if !m.allow(clientIP) {
			log.WithFields(log.Fields{
				"client_ip":  clientIP,
				"path":       r.URL.Path,
				"request_id": GetRequestID(r.Context()),
			}).Warn("Rate limit exceeded")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) allow(clientIP string) bool {
	now := m.now()
	windowStart := now.Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= m.window {
		m.sweep(windowStart)
		m.lastSweep = now
	}

	recent := m.requests[clientIP][:0]
	for _, ts := range m.requests[clientIP] {
		if ts.After(windowStart) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= m.maxRequests {
		m.requests[clientIP] = recent
		return false
	}

	m.requests[clientIP] = append(recent, now)
	return true
}

// sweep drops clients without a request inside the window.
func (m *RateLimitMiddleware) sweep(windowStart time.Time) {
	for ip, stamps := range m.requests {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(windowStart) {
			delete(m.requests, ip)
		}
	}
}

func (m *RateLimitMiddleware) tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// clientIP extracts the client IP from the request
func (m *RateLimitMiddleware) clientIP(r *http.Request) string {
	if m.trustProxy {
		if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
			return strings.TrimSpace(strings.Split(ip, ",")[0])
		}
		if ip := r.Header.Get("X-Real-IP"); ip != "" {
			return strings.TrimSpace(ip)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
