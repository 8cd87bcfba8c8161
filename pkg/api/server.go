package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/narissarah/wishcraft-sub004/pkg/activity"
	"github.com/narissarah/wishcraft-sub004/pkg/auth"
	"github.com/narissarah/wishcraft-sub004/pkg/collaboration"
	"github.com/narissarah/wishcraft-sub004/pkg/httputil"
	"github.com/narissarah/wishcraft-sub004/pkg/observability"
	"github.com/narissarah/wishcraft-sub004/pkg/ratelimit"
	"github.com/narissarah/wishcraft-sub004/pkg/registry"
)

// SessionService issues, validates, rotates, and revokes sessions.
// Implemented by auth.SessionManager.
type SessionService interface {
	InitiateAuth(ctx context.Context, shop, returnURL string) (string, error)
	CompleteAuth(ctx context.Context, shop, code, state, verifier string) (*auth.Session, error)
	EncryptSession(session *auth.Session) (string, error)
	DecryptSession(ctx context.Context, payload string) (*auth.Session, error)
	Rotate(ctx context.Context, session *auth.Session) (*auth.Session, error)
	Revoke(ctx context.Context, session *auth.Session) error
}

// CollaborationService is the collaboration lifecycle surface. Implemented by
// collaboration.Manager.
type CollaborationService interface {
	EnableCollaboration(ctx context.Context, shopID, registryID int64, actorEmail string, settings registry.CollaborationSettings) error
	DisableCollaboration(ctx context.Context, shopID, registryID int64, actorEmail string) error
	InviteCollaborator(ctx context.Context, shopID, registryID int64, actorEmail string, req collaboration.InviteRequest) (*registry.Collaborator, error)
	AcceptInvitation(ctx context.Context, collaboratorID, acceptorEmail string) (*registry.Collaborator, error)
	DeclineInvitation(ctx context.Context, collaboratorID, declinerEmail string) error
	RemoveCollaborator(ctx context.Context, shopID, registryID int64, actorEmail, collaboratorID string) error
	ListCollaborators(ctx context.Context, shopID, registryID int64, actorEmail string) ([]*registry.Collaborator, error)
	ListActivity(ctx context.Context, shopID, registryID int64, actorEmail string, limit int) ([]*activity.Record, error)
}

// ShopDirectory resolves shops for session scoping and maintains their
// install state across the OAuth and webhook lifecycles. Implemented by
// registry.Store.
type ShopDirectory interface {
	GetShopByDomain(ctx context.Context, domain string) (*registry.Shop, error)
	CreateShop(ctx context.Context, shop *registry.Shop) error
	SetShopInstalled(ctx context.Context, domain string, installed bool) error
}

// RegistryDirectory lists a shop's registries. Implemented by registry.Store.
type RegistryDirectory interface {
	ListByShop(ctx context.Context, shopID int64) ([]*registry.Registry, error)
}

// OperatorVerifier validates operator SSO ID tokens. Implemented by
// auth.OperatorVerifier.
type OperatorVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*auth.OperatorIdentity, error)
}

// Config wires the server's dependencies.
type Config struct {
	Sessions      SessionService
	Collaboration CollaborationService
	Shops         ShopDirectory
	Registries    RegistryDirectory

	// Operators enables SSO identity binding on the auth callback. Optional.
	Operators OperatorVerifier

	// WebhookSecret verifies inbound platform callback signatures.
	WebhookSecret string

	// AuthGuard rate-limits the auth endpoints. Optional; when nil the auth
	// routes run unguarded (tests, single-tenant dev).
	AuthGuard  ratelimit.Guard
	AuthPolicy ratelimit.Policy

	// Metrics is optional; when nil no metrics are recorded.
	Metrics *observability.Metrics

	// MaxBodyBytes caps request body size. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Server is the HTTP surface: auth flow, collaboration endpoints, invitation
// accept/decline links, and the inbound platform webhook.
type Server struct {
	config Config
	router *mux.Router
}

// NewServer creates the API server and wires its routes.
func NewServer(config Config) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}
	s := &Server{
		config: config,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
		httputil.MaxBytesMiddleware(s.config.MaxBodyBytes),
	)
	if s.config.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.config.Metrics))
	}

	// Auth flow. Initiate and callback are unauthenticated by nature and are
	// the brute-force surface, so they carry the guard.
	guard := s.authGuard()
	s.router.Handle("/auth/initiate", guard(http.HandlerFunc(s.initiateAuth))).Methods("GET")
	s.router.Handle("/auth/callback", guard(http.HandlerFunc(s.completeAuth))).Methods("GET")

	authed := s.router.NewRoute().Subrouter()
	authed.Use(s.sessionMiddleware)
	authed.HandleFunc("/auth/session", s.getSession).Methods("GET")
	authed.HandleFunc("/auth/rotate", s.rotateSession).Methods("POST")
	authed.HandleFunc("/auth/logout", s.logout).Methods("POST")

	// Collaboration management, scoped to the session's shop.
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.sessionMiddleware)
	api.HandleFunc("/registries", s.listRegistries).Methods("GET")
	api.HandleFunc("/registries/{registryID}/collaboration/enable", s.enableCollaboration).Methods("POST")
	api.HandleFunc("/registries/{registryID}/collaboration/disable", s.disableCollaboration).Methods("POST")
	api.HandleFunc("/registries/{registryID}/collaborators", s.inviteCollaborator).Methods("POST")
	api.HandleFunc("/registries/{registryID}/collaborators", s.listCollaborators).Methods("GET")
	api.HandleFunc("/registries/{registryID}/collaborators/{collaboratorID}", s.removeCollaborator).Methods("DELETE")
	api.HandleFunc("/registries/{registryID}/activity", s.listActivity).Methods("GET")

	// Invitation links land here from the notification email.
	links := s.router.PathPrefix("/collaborate").Subrouter()
	links.Use(s.sessionMiddleware)
	links.HandleFunc("/accept/{collaboratorID}", s.acceptInvitation).Methods("POST")
	links.HandleFunc("/decline/{collaboratorID}", s.declineInvitation).Methods("POST")

	// Inbound platform callbacks authenticate by signature, not session.
	s.router.HandleFunc("/webhooks/platform", s.handlePlatformWebhook).Methods("POST")
}

func (s *Server) authGuard() func(http.Handler) http.Handler {
	if s.config.AuthGuard == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	mw := ratelimit.NewMiddleware(s.config.AuthGuard, s.config.AuthPolicy, nil)
	if s.config.Metrics != nil {
		metrics := s.config.Metrics
		mw.OnDecision = func(allowed bool) {
			outcome := "allowed"
			if !allowed {
				outcome = "limited"
			}
			metrics.RateLimitDecisionsTotal.WithLabelValues("auth", outcome).Inc()
		}
	}
	return mw.Handler
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// writeDomainError maps domain sentinels onto HTTP statuses in one place so
// every handler agrees on the mapping.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrRegistryNotFound),
		errors.Is(err, registry.ErrShopNotFound),
		errors.Is(err, collaboration.ErrInvitationNotFound),
		errors.Is(err, collaboration.ErrCollaboratorNotFound):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, collaboration.ErrNotPermitted):
		httputil.WriteForbidden(w, "not permitted")
	case errors.Is(err, collaboration.ErrEmailMismatch):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, collaboration.ErrInvitationExpired):
		httputil.WriteGone(w, err.Error())
	case errors.Is(err, collaboration.ErrCollaborationDisabled),
		errors.Is(err, collaboration.ErrLimitReached),
		errors.Is(err, collaboration.ErrAlreadyCollaborator):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, collaboration.ErrInvalidSettings):
		httputil.WriteValidationError(w, err.Error())
	case errors.Is(err, auth.ErrSessionInvalid):
		httputil.WriteUnauthorized(w, "session invalid")
	case errors.Is(err, auth.ErrStateMismatch),
		errors.Is(err, auth.ErrPKCEMismatch),
		errors.Is(err, auth.ErrExpiredExchange):
		httputil.WriteUnauthorized(w, err.Error())
	case errors.Is(err, auth.ErrExchangeFailed):
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "identity provider exchange failed")
	default:
		httputil.WriteInternalError(w, err)
	}
}
