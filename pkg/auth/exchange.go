package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultExchangeTTL is how long a pending exchange stays valid. A caller
// abandoning the flow simply never completes it; the record is reaped.
const DefaultExchangeTTL = 10 * time.Minute

// ExchangeState is the ephemeral record binding a state token and PKCE
// verifier to one pending authorization request. It is consumed exactly once:
// the first callback to present the state wins and the record is gone.
type ExchangeState struct {
	State     string    `json:"state"`
	Verifier  string    `json:"verifier"`
	Challenge string    `json:"challenge"`
	Shop      string    `json:"shop"`
	ReturnURL string    `json:"return_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its TTL.
func (e *ExchangeState) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// ExchangeStore persists pending OAuth exchanges. Implementations must make
// Consume single-use: two concurrent callbacks with the same state must not
// both succeed.
type ExchangeStore interface {
	// Save stores a pending exchange keyed by its state token.
	Save(ctx context.Context, state *ExchangeState) error

	// Consume removes and returns the exchange for a state token. Returns
	// ErrStateMismatch when no pending record exists.
	Consume(ctx context.Context, state string) (*ExchangeState, error)

	// Reap discards expired records and returns how many were removed.
	Reap(ctx context.Context) (int, error)
}

// MemoryExchangeStore is a mutex-guarded in-process store, suitable for a
// single instance or for tests.
type MemoryExchangeStore struct {
	mu      sync.Mutex
	pending map[string]*ExchangeState
}

// NewMemoryExchangeStore creates an empty in-memory exchange store.
func NewMemoryExchangeStore() *MemoryExchangeStore {
	return &MemoryExchangeStore{pending: make(map[string]*ExchangeState)}
}

// Save stores a pending exchange.
func (s *MemoryExchangeStore) Save(ctx context.Context, state *ExchangeState) error {
	if state.State == "" {
		return fmt.Errorf("auth: exchange state token is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[state.State] = state
	return nil
}

// Consume removes and returns a pending exchange.
func (s *MemoryExchangeStore) Consume(ctx context.Context, state string) (*ExchangeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.pending[state]
	if !ok {
		return nil, ErrStateMismatch
	}
	delete(s.pending, state)
	return record, nil
}

// Reap removes expired records.
func (s *MemoryExchangeStore) Reap(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, record := range s.pending {
		if record.Expired(now) {
			delete(s.pending, key)
			removed++
		}
	}
	return removed, nil
}

// RedisExchangeStore backs pending exchanges with Redis so the callback can
// land on any instance. TTL handles reaping; GETDEL makes consumption
// single-use without a lock.
type RedisExchangeStore struct {
	client *redis.Client
	prefix string
}

// NewRedisExchangeStore creates a Redis-backed exchange store.
func NewRedisExchangeStore(client *redis.Client, prefix string) *RedisExchangeStore {
	if prefix == "" {
		prefix = "oauth:exchange"
	}
	return &RedisExchangeStore{client: client, prefix: prefix}
}

func (s *RedisExchangeStore) key(state string) string {
	return fmt.Sprintf("%s:%s", s.prefix, state)
}

// Save stores a pending exchange with its remaining TTL.
func (s *RedisExchangeStore) Save(ctx context.Context, state *ExchangeState) error {
	if state.State == "" {
		return fmt.Errorf("auth: exchange state token is required")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("auth: failed to marshal exchange state: %w", err)
	}

	ttl := time.Until(state.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	if err := s.client.Set(ctx, s.key(state.State), data, ttl).Err(); err != nil {
		return fmt.Errorf("auth: failed to store exchange state: %w", err)
	}
	return nil
}

// Consume atomically removes and returns a pending exchange.
func (s *RedisExchangeStore) Consume(ctx context.Context, state string) (*ExchangeState, error) {
	data, err := s.client.GetDel(ctx, s.key(state)).Result()
	if err == redis.Nil {
		return nil, ErrStateMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("auth: failed to consume exchange state: %w", err)
	}

	var record ExchangeState
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("auth: failed to unmarshal exchange state: %w", err)
	}
	return &record, nil
}

// Reap is a no-op for Redis: key TTLs already discard expired records.
func (s *RedisExchangeStore) Reap(ctx context.Context) (int, error) {
	return 0, nil
}
