package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Policy defines the brute-force guard configuration.
type Policy struct {
	// MaxAttempts is the number of attempts permitted per identifier within
	// one window.
	MaxAttempts int
	// Window is the sliding window attempts are counted over.
	Window time.Duration
	// BaseDelay seeds the exponential backoff applied after failures.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
}

// DefaultPolicy returns the default guard policy: 5 attempts per 15 minutes,
// failure backoff doubling from 1s up to 5 minutes.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Window:      15 * time.Minute,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Minute,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Window <= 0 {
		p.Window = d.Window
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	return p
}

// backoffDelay computes min(2^failures * base, max). The shift saturates so
// that large failure counts cannot wrap around to a short delay.
func (p Policy) backoffDelay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= p.MaxDelay || delay <= 0 {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Decision is the outcome of a guard check.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long the caller must wait when denied.
	RetryAfter time.Duration
}

// Guard tracks authentication attempts per identifier and denies callers that
// exceed the sliding-window budget or are inside a failure-backoff period.
type Guard interface {
	// CheckAndRecord counts one attempt for identifier and decides whether it
	// may proceed.
	CheckAndRecord(ctx context.Context, identifier string) (Decision, error)
	// RecordFailure notes a failed attempt and extends the backoff period.
	RecordFailure(ctx context.Context, identifier string) error
	// RecordSuccess clears all counters for identifier.
	RecordSuccess(ctx context.Context, identifier string) error
	// Reset clears all counters for identifier.
	Reset(ctx context.Context, identifier string) error
}

type counter struct {
	attempts    []time.Time
	failures    int
	nextAllowed time.Time
}

// MemoryGuard is a process-local Guard. Suitable for a single instance; use
// RedisGuard when the service runs replicated.
type MemoryGuard struct {
	policy   Policy
	mu       sync.Mutex
	counters map[string]*counter
}

// NewMemoryGuard creates an in-memory guard.
func NewMemoryGuard(policy Policy) *MemoryGuard {
	return &MemoryGuard{
		policy:   policy.withDefaults(),
		counters: make(map[string]*counter),
	}
}

// CheckAndRecord implements Guard.
func (g *MemoryGuard) CheckAndRecord(ctx context.Context, identifier string) (Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	c, ok := g.counters[identifier]
	if !ok {
		c = &counter{}
		g.counters[identifier] = c
	}

	if now.Before(c.nextAllowed) {
		return Decision{Allowed: false, RetryAfter: c.nextAllowed.Sub(now)}, nil
	}

	// Drop attempts that slid out of the window.
	cutoff := now.Add(-g.policy.Window)
	kept := c.attempts[:0]
	for _, at := range c.attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	c.attempts = kept

	if len(c.attempts) >= g.policy.MaxAttempts {
		retryAfter := c.attempts[0].Add(g.policy.Window).Sub(now)
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	c.attempts = append(c.attempts, now)
	return Decision{Allowed: true, Remaining: g.policy.MaxAttempts - len(c.attempts)}, nil
}

// RecordFailure implements Guard.
func (g *MemoryGuard) RecordFailure(ctx context.Context, identifier string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.counters[identifier]
	if !ok {
		c = &counter{}
		g.counters[identifier] = c
	}
	c.failures++
	c.nextAllowed = time.Now().Add(g.policy.backoffDelay(c.failures))
	return nil
}

// RecordSuccess implements Guard.
func (g *MemoryGuard) RecordSuccess(ctx context.Context, identifier string) error {
	return g.Reset(ctx, identifier)
}

// Reset implements Guard.
func (g *MemoryGuard) Reset(ctx context.Context, identifier string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.counters, identifier)
	return nil
}

// Cleanup drops counters whose window and backoff have both fully elapsed.
func (g *MemoryGuard) Cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-g.policy.Window)
	for id, c := range g.counters {
		stale := len(c.attempts) == 0 || !c.attempts[len(c.attempts)-1].After(cutoff)
		if stale && time.Now().After(c.nextAllowed) {
			delete(g.counters, id)
		}
	}
}

// StartCleanup runs Cleanup periodically until ctx is done.
func (g *MemoryGuard) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(g.policy.Window)
	go func() {
		for {
			select {
			case <-ticker.C:
				g.Cleanup()
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}
