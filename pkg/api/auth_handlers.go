package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/narissarah/wishcraft-sub004/pkg/httputil"
	"github.com/narissarah/wishcraft-sub004/pkg/registry"
)

// initiateAuth handles GET /auth/initiate?shop=<domain>&return_url=<path>.
// It prepares a pending exchange and redirects the caller to the identity
// provider's authorization URL.
func (s *Server) initiateAuth(w http.ResponseWriter, r *http.Request) {
	shop := strings.TrimSpace(r.URL.Query().Get("shop"))
	if !httputil.RequireNonEmpty(w, shop, "shop") {
		return
	}
	returnURL := httputil.ParseQueryString(r, "return_url", "")

	authURL, err := s.config.Sessions.InitiateAuth(r.Context(), shop, returnURL)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// completeAuth handles GET /auth/callback. It validates the state and PKCE
// binding, exchanges the code upstream, optionally binds an operator identity
// from an SSO ID token, and hands back an encrypted session cookie.
func (s *Server) completeAuth(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	shop := strings.TrimSpace(query.Get("shop"))
	code := query.Get("code")
	state := query.Get("state")
	if !httputil.RequireNonEmpty(w, shop, "shop") ||
		!httputil.RequireNonEmpty(w, code, "code") ||
		!httputil.RequireNonEmpty(w, state, "state") {
		return
	}

	session, err := s.config.Sessions.CompleteAuth(r.Context(), shop, code, state, query.Get("verifier"))
	if err != nil {
		s.recordAuthExchange("failure")
		writeDomainError(w, err)
		return
	}

	if rawIDToken := query.Get("id_token"); rawIDToken != "" && s.config.Operators != nil {
		identity, err := s.config.Operators.Verify(r.Context(), rawIDToken)
		if err != nil {
			s.recordAuthExchange("failure")
			writeDomainError(w, err)
			return
		}
		session.ActorEmail = identity.Email
	}

	// A completed exchange (re)installs the shop; without the shop row the
	// session would fail validation on its first use.
	if err := s.ensureShopInstalled(r.Context(), session.Shop); err != nil {
		s.recordAuthExchange("failure")
		httputil.WriteInternalError(w, err)
		return
	}

	payload, err := s.config.Sessions.EncryptSession(session)
	if err != nil {
		s.recordAuthExchange("failure")
		httputil.WriteInternalError(w, err)
		return
	}

	s.recordAuthExchange("success")
	setSessionCookie(w, payload, int(time.Until(session.ExpiresAt).Seconds()))
	httputil.WriteSuccess(w, AuthCompleteResponse{
		Shop:      session.Shop,
		ExpiresAt: session.ExpiresAt,
	})
}

// getSession handles GET /auth/session for the authenticated caller.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, ok := requestSession(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	httputil.WriteSuccess(w, SessionResponse{
		Shop:       session.Shop,
		ActorEmail: session.ActorEmail,
		IssuedAt:   session.IssuedAt,
		ExpiresAt:  session.ExpiresAt,
	})
}

// rotateSession handles POST /auth/rotate: the old session nonce is revoked
// after a short grace window and a fresh cookie is issued.
func (s *Server) rotateSession(w http.ResponseWriter, r *http.Request) {
	session, ok := requestSession(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	rotated, err := s.config.Sessions.Rotate(r.Context(), session)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	payload, err := s.config.Sessions.EncryptSession(rotated)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if s.config.Metrics != nil {
		s.config.Metrics.SessionRotationsTotal.Inc()
	}
	setSessionCookie(w, payload, int(time.Until(rotated.ExpiresAt).Seconds()))
	httputil.WriteSuccess(w, SessionResponse{
		Shop:       rotated.Shop,
		ActorEmail: rotated.ActorEmail,
		IssuedAt:   rotated.IssuedAt,
		ExpiresAt:  rotated.ExpiresAt,
	})
}

// logout handles POST /auth/logout: immediate revocation, no grace window.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	session, ok := requestSession(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	if err := s.config.Sessions.Revoke(r.Context(), session); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	clearSessionCookie(w)
	httputil.WriteNoContent(w)
}

// ensureShopInstalled upserts the shop row for a completed OAuth exchange.
// New shops are created installed; a shop reinstalling after an uninstall
// webhook gets its flag flipped back.
func (s *Server) ensureShopInstalled(ctx context.Context, domain string) error {
	shop, err := s.config.Shops.GetShopByDomain(ctx, domain)
	if errors.Is(err, registry.ErrShopNotFound) {
		return s.config.Shops.CreateShop(ctx, &registry.Shop{Domain: domain, Installed: true})
	}
	if err != nil {
		return err
	}
	if !shop.Installed {
		return s.config.Shops.SetShopInstalled(ctx, domain, true)
	}
	return nil
}

func (s *Server) recordAuthExchange(outcome string) {
	if s.config.Metrics != nil {
		s.config.Metrics.AuthExchangesTotal.WithLabelValues(outcome).Inc()
	}
}
