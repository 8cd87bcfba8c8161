// Package storage provides connection helpers for the backing stores:
// PostgreSQL (system of record) and Redis (exchange state, revocation
// lists, and rate-limit counters).
//
// Both helpers verify connectivity with a ping before returning, so a
// misconfigured store fails at startup rather than on first request.
// Redis is optional; callers fall back to in-process stores when no URL
// is configured.
package storage
