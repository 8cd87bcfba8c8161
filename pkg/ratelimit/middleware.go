package ratelimit

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// KeyFunc derives the guard identifier from a request.
type KeyFunc func(r *http.Request) string

// ClientIP extracts the originating client address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// First hop is the original client.
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			return strings.TrimSpace(forwarded[:i])
		}
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// Middleware guards an HTTP handler with attempt limiting.
type Middleware struct {
	guard  Guard
	policy Policy
	key    KeyFunc

	// OnDecision, when set, observes every guard decision. Set before the
	// middleware starts serving.
	OnDecision func(allowed bool)
}

// NewMiddleware creates a guard middleware. If key is nil, requests are keyed
// by client IP.
func NewMiddleware(guard Guard, policy Policy, key KeyFunc) *Middleware {
	if key == nil {
		key = func(r *http.Request) string { return "ip:" + ClientIP(r) }
	}
	return &Middleware{guard: guard, policy: policy.withDefaults(), key: key}
}

// Handler wraps next with attempt limiting.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := m.guard.CheckAndRecord(r.Context(), m.key(r))
		if err != nil {
			http.Error(w, "service temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		if m.OnDecision != nil {
			m.OnDecision(decision.Allowed)
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.policy.MaxAttempts))
		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Seconds() + 0.5)
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(decision.RetryAfter).Unix()))
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"error":"rate limit exceeded","retry_after":%d}`, retryAfter)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
		next.ServeHTTP(w, r)
	})
}
