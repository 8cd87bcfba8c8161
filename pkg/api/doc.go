// Package api is the HTTP surface of the collaboration core.
//
// # Routes
//
//	GET  /auth/initiate?shop=...        start the OAuth + PKCE flow (rate limited)
//	GET  /auth/callback                 complete the flow, set the session cookie (rate limited)
//	GET  /auth/session                  describe the caller's session
//	POST /auth/rotate                   rotate the session nonce
//	POST /auth/logout                   revoke the session immediately
//
//	GET    /api/registries
//	POST   /api/registries/{registryID}/collaboration/enable
//	POST   /api/registries/{registryID}/collaboration/disable
//	POST   /api/registries/{registryID}/collaborators
//	GET    /api/registries/{registryID}/collaborators
//	DELETE /api/registries/{registryID}/collaborators/{collaboratorID}
//	GET    /api/registries/{registryID}/activity
//
//	POST /collaborate/accept/{collaboratorID}
//	POST /collaborate/decline/{collaboratorID}
//
//	POST /webhooks/platform             signature-authenticated platform callbacks
//
// Authenticated routes read the encrypted session from the wishcraft_session
// cookie or an Authorization bearer token. The session middleware resolves
// the session's shop and attaches shop ID and actor email to the request
// context; handlers never take tenant identity from the request body.
//
// Domain errors map to HTTP statuses in one place (writeDomainError), so
// not-found, not-permitted, conflict, and expired semantics stay consistent
// across handlers.
package api
