// Package auth implements the OAuth2+PKCE authentication flow and session
// management for the WishCraft registry platform.
//
// # Flow
//
// InitiateAuth prepares a pending exchange and hands back the authorization
// URL (state + S256 code challenge). The exchange record lives server-side
// with a 10 minute TTL and is consumed exactly once:
//
//	authURL, err := manager.InitiateAuth(ctx, "demo.myshopify.com", "/registries/42")
//
// CompleteAuth validates the callback (constant-time state check, PKCE
// challenge binding) and exchanges the code upstream with bounded retry:
//
//	session, err := manager.CompleteAuth(ctx, shop, code, state, "")
//	switch {
//	case errors.Is(err, auth.ErrStateMismatch):  // CSRF, abort
//	case errors.Is(err, auth.ErrPKCEMismatch):   // interception attempt, abort
//	case errors.Is(err, auth.ErrExpiredExchange): // flow abandoned, restart
//	case errors.Is(err, auth.ErrExchangeFailed): // upstream down, caller may retry
//	}
//
// Sessions leave the package only as encrypted opaque payloads. A payload
// that fails decryption means unauthenticated, never partial trust:
//
//	cookie, _ := manager.EncryptSession(session)
//	session, err := manager.DecryptSession(ctx, cookie)
//
// Rotation issues a replacement session on privilege-relevant events and
// revokes the old nonce after a short grace window for in-flight requests.
//
// # Stores
//
// Pending exchanges and the revocation list are the only shared mutable
// state. Both ship with an in-memory implementation for single-instance
// deployments and a Redis implementation for horizontal scaling.
//
// Operator single sign-on is handled separately by OperatorVerifier, which
// validates OIDC ID tokens from the platform issuer.
package auth
