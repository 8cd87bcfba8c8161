package ratelimit

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisGuard is a Redis-backed Guard so that attempt counters are shared
// across replicas. Infrastructure errors deny the attempt: a guard that fails
// open stops guarding exactly when an attacker can induce the failure.
type RedisGuard struct {
	client *redis.Client
	policy Policy
	prefix string
}

// NewRedisGuard creates a Redis-backed guard.
func NewRedisGuard(client *redis.Client, policy Policy, prefix string) *RedisGuard {
	if prefix == "" {
		prefix = "guard"
	}
	return &RedisGuard{
		client: client,
		policy: policy.withDefaults(),
		prefix: prefix,
	}
}

func (g *RedisGuard) attemptsKey(identifier string) string {
	return fmt.Sprintf("%s:attempts:%s", g.prefix, identifier)
}

func (g *RedisGuard) failuresKey(identifier string) string {
	return fmt.Sprintf("%s:failures:%s", g.prefix, identifier)
}

func (g *RedisGuard) blockKey(identifier string) string {
	return fmt.Sprintf("%s:block:%s", g.prefix, identifier)
}

// CheckAndRecord implements Guard.
func (g *RedisGuard) CheckAndRecord(ctx context.Context, identifier string) (Decision, error) {
	// A live block key means the identifier is inside a failure backoff; its
	// TTL is exactly the remaining wait.
	blockTTL, err := g.client.PTTL(ctx, g.blockKey(identifier)).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: failed to read backoff state: %w", err)
	}
	if blockTTL > 0 {
		return Decision{Allowed: false, RetryAfter: blockTTL}, nil
	}

	pipe := g.client.Pipeline()
	incr := pipe.Incr(ctx, g.attemptsKey(identifier))
	pipe.Expire(ctx, g.attemptsKey(identifier), g.policy.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("ratelimit: failed to count attempt: %w", err)
	}

	count := int(incr.Val())
	if count > g.policy.MaxAttempts {
		ttl, err := g.client.PTTL(ctx, g.attemptsKey(identifier)).Result()
		if err != nil || ttl <= 0 {
			ttl = g.policy.Window
		}
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Remaining: g.policy.MaxAttempts - count}, nil
}

// RecordFailure implements Guard.
func (g *RedisGuard) RecordFailure(ctx context.Context, identifier string) error {
	pipe := g.client.Pipeline()
	incr := pipe.Incr(ctx, g.failuresKey(identifier))
	pipe.Expire(ctx, g.failuresKey(identifier), g.policy.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ratelimit: failed to record failure: %w", err)
	}

	delay := g.policy.backoffDelay(int(incr.Val()))
	if err := g.client.Set(ctx, g.blockKey(identifier), 1, delay).Err(); err != nil {
		return fmt.Errorf("ratelimit: failed to set backoff: %w", err)
	}
	return nil
}

// RecordSuccess implements Guard.
func (g *RedisGuard) RecordSuccess(ctx context.Context, identifier string) error {
	return g.Reset(ctx, identifier)
}

// Reset implements Guard.
func (g *RedisGuard) Reset(ctx context.Context, identifier string) error {
	return g.client.Del(ctx,
		g.attemptsKey(identifier),
		g.failuresKey(identifier),
		g.blockKey(identifier),
	).Err()
}
