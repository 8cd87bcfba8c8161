// Package ratelimit implements the brute-force guard in front of
// authentication endpoints.
//
// Each identifier (client IP, email, or session) gets a sliding-window
// attempt budget plus an exponential failure backoff: every recorded failure
// doubles the wait before the next permitted attempt, capped at the policy
// maximum. Distinct identifiers never share counters.
//
// MemoryGuard keeps counters in-process; RedisGuard shares them across
// replicas. The Redis variant fails closed on infrastructure errors: an
// unreachable counter store must not disable the guard.
package ratelimit
