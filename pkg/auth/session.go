package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/narissarah/wishcraft-sub004/pkg/crypto"
)

const (
	// DefaultSessionTTL is how long an issued session stays valid.
	DefaultSessionTTL = 24 * time.Hour

	// RotationGrace is how long a rotated-out session nonce stays on the
	// revocation list. Within this window in-flight requests carrying the old
	// session fail cleanly instead of being trusted.
	RotationGrace = 30 * time.Second

	// exchangeAttempts bounds retries of the upstream token exchange.
	exchangeAttempts = 3
	exchangeBackoff  = 250 * time.Millisecond
)

// Session represents an authenticated actor bound to a shop. Token material
// is encrypted before the session ever leaves the manager.
type Session struct {
	ID             string    `json:"id"`
	Shop           string    `json:"shop"`
	ActorEmail     string    `json:"actor_email"`
	EncryptedToken string    `json:"encrypted_token"`
	Nonce          string    `json:"nonce"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// EndpointResolver maps a shop domain to its identity-provider endpoints.
type EndpointResolver func(shop string) oauth2.Endpoint

// ShopEndpoints is the default resolver for the commerce platform's per-shop
// OAuth endpoints.
func ShopEndpoints(shop string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  fmt.Sprintf("https://%s/admin/oauth/authorize", shop),
		TokenURL: fmt.Sprintf("https://%s/admin/oauth/access_token", shop),
	}
}

// RevocationList tracks session nonces invalidated by rotation or logout.
// Revocation takes effect at revokeAt, letting rotation leave a short grace
// window for in-flight requests; the record is kept for ttl.
type RevocationList interface {
	Revoke(ctx context.Context, nonce string, revokeAt time.Time, ttl time.Duration) error
	IsRevoked(ctx context.Context, nonce string) (bool, error)
}

// MemoryRevocationList is an in-process revocation list.
type MemoryRevocationList struct {
	mu      sync.Mutex
	revoked map[string]revocation
}

type revocation struct {
	revokeAt time.Time
	expireAt time.Time
}

// NewMemoryRevocationList creates an empty in-memory revocation list.
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{revoked: make(map[string]revocation)}
}

// Revoke marks a nonce revoked from revokeAt, keeping the record for ttl.
func (l *MemoryRevocationList) Revoke(ctx context.Context, nonce string, revokeAt time.Time, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[nonce] = revocation{revokeAt: revokeAt, expireAt: time.Now().Add(ttl)}
	return nil
}

// IsRevoked reports whether a nonce is currently revoked.
func (l *MemoryRevocationList) IsRevoked(ctx context.Context, nonce string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.revoked[nonce]
	if !ok {
		return false, nil
	}
	now := time.Now()
	if now.After(rec.expireAt) {
		delete(l.revoked, nonce)
		return false, nil
	}
	return !now.Before(rec.revokeAt), nil
}

// RedisRevocationList backs the revocation list with Redis so rotation is
// visible across instances.
type RedisRevocationList struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocationList creates a Redis-backed revocation list.
func NewRedisRevocationList(client *redis.Client, prefix string) *RedisRevocationList {
	if prefix == "" {
		prefix = "session:revoked"
	}
	return &RedisRevocationList{client: client, prefix: prefix}
}

// Revoke marks a nonce revoked from revokeAt, keeping the record for ttl.
func (l *RedisRevocationList) Revoke(ctx context.Context, nonce string, revokeAt time.Time, ttl time.Duration) error {
	value := fmt.Sprintf("%d", revokeAt.UnixNano())
	return l.client.Set(ctx, fmt.Sprintf("%s:%s", l.prefix, nonce), value, ttl).Err()
}

// IsRevoked reports whether a nonce is currently revoked.
func (l *RedisRevocationList) IsRevoked(ctx context.Context, nonce string) (bool, error) {
	value, err := l.client.Get(ctx, fmt.Sprintf("%s:%s", l.prefix, nonce)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auth: revocation lookup failed: %w", err)
	}

	var revokeAt int64
	if _, err := fmt.Sscanf(value, "%d", &revokeAt); err != nil {
		// Unparseable record: treat as revoked now, fail closed.
		return true, nil
	}
	return time.Now().UnixNano() >= revokeAt, nil
}

// ManagerConfig configures a SessionManager.
type ManagerConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoints resolves per-shop OAuth endpoints. Defaults to ShopEndpoints.
	Endpoints EndpointResolver

	ExchangeTTL time.Duration
	SessionTTL  time.Duration
}

// SessionManager owns session issuance: it prepares OAuth exchanges, completes
// them against the identity provider, and seals session payloads. No other
// component mutates sessions.
type SessionManager struct {
	config    ManagerConfig
	cipher    *crypto.Cipher
	exchanges ExchangeStore
	revoked   RevocationList
}

// NewSessionManager creates a session manager. The cipher must be built from
// the "session"-derived key.
func NewSessionManager(config ManagerConfig, cipher *crypto.Cipher, exchanges ExchangeStore, revoked RevocationList) (*SessionManager, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("auth: client credentials are required")
	}
	if config.RedirectURL == "" {
		return nil, fmt.Errorf("auth: redirect URL is required")
	}
	if cipher == nil {
		return nil, fmt.Errorf("auth: session cipher is required")
	}
	if exchanges == nil {
		return nil, fmt.Errorf("auth: exchange store is required")
	}
	if config.Endpoints == nil {
		config.Endpoints = ShopEndpoints
	}
	if config.ExchangeTTL <= 0 {
		config.ExchangeTTL = DefaultExchangeTTL
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if revoked == nil {
		revoked = NewMemoryRevocationList()
	}

	return &SessionManager{
		config:    config,
		cipher:    cipher,
		exchanges: exchanges,
		revoked:   revoked,
	}, nil
}

func (m *SessionManager) oauthConfig(shop string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.config.ClientID,
		ClientSecret: m.config.ClientSecret,
		Endpoint:     m.config.Endpoints(shop),
		RedirectURL:  m.config.RedirectURL,
		Scopes:       m.config.Scopes,
	}
}

// InitiateAuth creates a pending exchange and returns the authorization URL
// carrying the state token and S256 code challenge. Purely preparatory: no
// external calls happen here.
func (m *SessionManager) InitiateAuth(ctx context.Context, shop, returnURL string) (string, error) {
	if shop == "" {
		return "", fmt.Errorf("auth: shop is required")
	}

	state, err := GenerateState()
	if err != nil {
		return "", err
	}
	pkce, err := GeneratePKCEPair()
	if err != nil {
		return "", err
	}

	now := time.Now()
	record := &ExchangeState{
		State:     state,
		Verifier:  pkce.Verifier,
		Challenge: pkce.Challenge,
		Shop:      shop,
		ReturnURL: returnURL,
		CreatedAt: now,
		ExpiresAt: now.Add(m.config.ExchangeTTL),
	}
	if err := m.exchanges.Save(ctx, record); err != nil {
		return "", err
	}

	authURL := m.oauthConfig(shop).AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", pkce.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
	return authURL, nil
}

// CompleteAuth validates the callback against the stored exchange and turns
// the authorization code into a session.
//
// The state comparison is constant-time; the verifier (stored server-side, or
// supplied explicitly) must satisfy the stored challenge; the upstream token
// exchange is retried a bounded number of times with backoff. The pending
// record is consumed whether the callback succeeds or fails.
func (m *SessionManager) CompleteAuth(ctx context.Context, shop, code, state, verifier string) (*Session, error) {
	record, err := m.exchanges.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	if !crypto.ConstantTimeEquals([]byte(record.State), []byte(state)) {
		return nil, ErrStateMismatch
	}
	if record.Shop != shop {
		return nil, ErrStateMismatch
	}
	if record.Expired(time.Now()) {
		return nil, ErrExpiredExchange
	}

	if verifier == "" {
		verifier = record.Verifier
	}
	if !VerifyChallenge(verifier, record.Challenge) {
		return nil, ErrPKCEMismatch
	}

	token, err := m.exchangeCode(ctx, shop, code, verifier)
	if err != nil {
		return nil, err
	}

	encryptedToken, err := m.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to seal token: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(m.config.SessionTTL)
	if !token.Expiry.IsZero() && token.Expiry.Before(expiresAt) {
		expiresAt = token.Expiry
	}

	return &Session{
		ID:             uuid.NewString(),
		Shop:           shop,
		EncryptedToken: encryptedToken,
		Nonce:          uuid.NewString(),
		IssuedAt:       now,
		ExpiresAt:      expiresAt,
	}, nil
}

func (m *SessionManager) exchangeCode(ctx context.Context, shop, code, verifier string) (*oauth2.Token, error) {
	cfg := m.oauthConfig(shop)

	var lastErr error
	for attempt := 0; attempt < exchangeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, ctx.Err())
			case <-time.After(exchangeBackoff << (attempt - 1)):
			}
		}

		token, err := cfg.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", verifier))
		if err == nil {
			return token, nil
		}
		lastErr = err

		// Authorization codes are single-use upstream; a definitive
		// rejection will not start working on retry. Only 5xx responses and
		// transport errors are worth another attempt.
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, lastErr)
}

// EncryptSession seals a session into the opaque cookie/token value handed to
// external callers.
func (m *SessionManager) EncryptSession(session *Session) (string, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("auth: failed to marshal session: %w", err)
	}
	return m.cipher.Encrypt(string(data))
}

// DecryptSession opens an opaque session value. Any decryption failure,
// expiry, or revoked nonce yields ErrSessionInvalid: there is no partial
// trust.
func (m *SessionManager) DecryptSession(ctx context.Context, payload string) (*Session, error) {
	plaintext, err := m.cipher.Decrypt(payload)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	var session Session
	if err := json.Unmarshal([]byte(plaintext), &session); err != nil {
		return nil, ErrSessionInvalid
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionInvalid
	}

	revoked, err := m.revoked.IsRevoked(ctx, session.Nonce)
	if err != nil {
		return nil, fmt.Errorf("auth: revocation check failed: %w", err)
	}
	if revoked {
		return nil, ErrSessionInvalid
	}

	return &session, nil
}

// Rotate issues a replacement session and revokes the old nonce after a short
// grace period, used on privilege-relevant events such as a role change.
func (m *SessionManager) Rotate(ctx context.Context, session *Session) (*Session, error) {
	now := time.Now()
	rotated := &Session{
		ID:             uuid.NewString(),
		Shop:           session.Shop,
		ActorEmail:     session.ActorEmail,
		EncryptedToken: session.EncryptedToken,
		Nonce:          uuid.NewString(),
		IssuedAt:       now,
		ExpiresAt:      now.Add(m.config.SessionTTL),
	}

	if err := m.revoked.Revoke(ctx, session.Nonce, now.Add(RotationGrace), RotationGrace+m.config.SessionTTL); err != nil {
		return nil, fmt.Errorf("auth: failed to revoke rotated session: %w", err)
	}
	return rotated, nil
}

// Revoke invalidates a session immediately (logout).
func (m *SessionManager) Revoke(ctx context.Context, session *Session) error {
	return m.revoked.Revoke(ctx, session.Nonce, time.Now(), m.config.SessionTTL)
}

// AccessToken decrypts the token material sealed inside a session.
func (m *SessionManager) AccessToken(session *Session) (string, error) {
	token, err := m.cipher.Decrypt(session.EncryptedToken)
	if err != nil {
		return "", ErrSessionInvalid
	}
	return token, nil
}
