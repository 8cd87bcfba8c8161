// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/narissarah/wishcraft-sub004/pkg/contextkeys"
//   ctx = context.WithValue(ctx, contextkeys.SessionKey, session)
//   session := ctx.Value(contextkeys.SessionKey).(*auth.Session)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// SessionKey contains *auth.Session
	// Set by: the session middleware (pkg/api/middleware.go)
	// Required by: All authenticated endpoints
	// Type: *auth.Session
	SessionKey Key = "session"

	// ShopIDKey contains the tenant's shop ID
	// Set by: the session middleware after shop resolution
	// Used by: Shop-scoped endpoints, collaboration handlers
	// Type: int64
	ShopIDKey Key = "shop_id"

	// ActorEmailKey contains the authenticated actor's normalized email
	// Set by: the session middleware
	// Used by: Permission resolution, activity records
	// Type: string
	ActorEmailKey Key = "actor_email"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, activity trail
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability.WithLogger
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// Helper functions for type-safe context operations

// WithSession adds the authenticated session to the context
func WithSession(ctx context.Context, session interface{}) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// WithShopID adds the tenant shop ID to the context
func WithShopID(ctx context.Context, shopID int64) context.Context {
	return context.WithValue(ctx, ShopIDKey, shopID)
}

// WithActorEmail adds the actor's normalized email to the context
func WithActorEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ActorEmailKey, email)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetShopID retrieves the tenant shop ID from context
func GetShopID(ctx context.Context) (int64, bool) {
	shopID, ok := ctx.Value(ShopIDKey).(int64)
	return shopID, ok
}

// GetActorEmail retrieves the actor's email from context
func GetActorEmail(ctx context.Context) string {
	if email, ok := ctx.Value(ActorEmailKey).(string); ok {
		return email
	}
	return ""
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
