package auth

import "errors"

var (
	// ErrStateMismatch indicates the callback state did not match any pending
	// exchange, or matched one issued for a different request. The flow must
	// be aborted, never retried automatically.
	ErrStateMismatch = errors.New("auth: oauth state mismatch")

	// ErrPKCEMismatch indicates the code verifier does not satisfy the stored
	// challenge.
	ErrPKCEMismatch = errors.New("auth: pkce verifier mismatch")

	// ErrExpiredExchange indicates the pending exchange record aged out
	// before the callback arrived.
	ErrExpiredExchange = errors.New("auth: oauth exchange expired")

	// ErrExchangeFailed wraps an upstream identity-provider failure. Callers
	// may retry the whole flow with backoff; the core does not retry beyond
	// its own bounded attempts.
	ErrExchangeFailed = errors.New("auth: token exchange failed")

	// ErrSessionInvalid indicates a session payload that failed decryption or
	// validation. The bearer is treated as unauthenticated.
	ErrSessionInvalid = errors.New("auth: session invalid")
)
