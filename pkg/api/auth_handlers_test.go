package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narissarah/wishcraft-sub004/pkg/auth"
	"github.com/narissarah/wishcraft-sub004/pkg/ratelimit"
)

func TestInitiateAuthRedirects(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/initiate?shop=shop-one.example.com", nil)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/authorize", location.Path)
	assert.NotEmpty(t, location.Query().Get("state"))
	assert.NotEmpty(t, location.Query().Get("code_challenge"))
	assert.Equal(t, "S256", location.Query().Get("code_challenge_method"))
}

func TestInitiateAuthRequiresShop(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/initiate", nil)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteAuthIssuesSessionCookie(t *testing.T) {
	env := newTestEnv(t)

	// Start a real exchange to get a valid state.
	authURL, err := env.sessions.InitiateAuth(context.Background(), "shop-one.example.com", "")
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")

	callback := "/auth/callback?shop=shop-one.example.com&code=authcode&state=" + url.QueryEscape(state)
	req := httptest.NewRequest(http.MethodGet, callback, nil)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var found bool
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName && cookie.Value != "" {
			found = true
			// Cookie must be opaque: decryptable only by the manager.
			session, err := env.sessions.DecryptSession(context.Background(), cookie.Value)
			require.NoError(t, err)
			assert.Equal(t, "shop-one.example.com", session.Shop)
		}
	}
	assert.True(t, found, "session cookie not set")
}

func TestCompleteAuthInstallsNewShop(t *testing.T) {
	env := newTestEnv(t)

	// shop-two has never been seen before; the completed exchange must
	// create it installed so the issued session is usable.
	authURL, err := env.sessions.InitiateAuth(context.Background(), "shop-two.example.com", "")
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")

	callback := "/auth/callback?shop=shop-two.example.com&code=authcode&state=" + url.QueryEscape(state)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callback, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	shop, err := env.shops.GetShopByDomain(context.Background(), "shop-two.example.com")
	require.NoError(t, err)
	assert.True(t, shop.Installed)

	// The fresh cookie must pass session validation end to end.
	var payload string
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			payload = cookie.Value
		}
	}
	require.NotEmpty(t, payload)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: payload})
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCompleteAuthReinstallsShop(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.shops.SetShopInstalled(context.Background(), "shop-one.example.com", false))

	authURL, err := env.sessions.InitiateAuth(context.Background(), "shop-one.example.com", "")
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")

	callback := "/auth/callback?shop=shop-one.example.com&code=authcode&state=" + url.QueryEscape(state)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callback, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	shop, err := env.shops.GetShopByDomain(context.Background(), "shop-one.example.com")
	require.NoError(t, err)
	assert.True(t, shop.Installed)
}

func TestCompleteAuthRejectsForgedState(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback?shop=shop-one.example.com&code=authcode&state=forged-state", nil)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/auth/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "shop-one.example.com", resp.Shop)
	assert.Equal(t, "owner@example.com", resp.ActorEmail)
}

func TestGetSessionWithoutCookie(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSessionBearerToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+env.cookie.Value)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRotateSessionInvalidatesOldAfterGrace(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/auth/rotate", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rotatedPayload string
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			rotatedPayload = cookie.Value
		}
	}
	require.NotEmpty(t, rotatedPayload)
	assert.NotEqual(t, env.cookie.Value, rotatedPayload)

	// The new session is immediately valid.
	_, err := env.sessions.DecryptSession(context.Background(), rotatedPayload)
	assert.NoError(t, err)

	// The old session still validates inside the grace window.
	_, err = env.sessions.DecryptSession(context.Background(), env.cookie.Value)
	assert.NoError(t, err)
}

func TestLogoutRevokesImmediately(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := env.sessions.DecryptSession(context.Background(), env.cookie.Value)
	assert.ErrorIs(t, err, auth.ErrSessionInvalid)
}

func TestSessionRejectedForUninstalledShop(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.shops.SetShopInstalled(context.Background(), "shop-one.example.com", false))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthEndpointsRateLimited(t *testing.T) {
	idp := newFakeIdP(t)
	manager, _ := newSessionManager(t, idp.URL)

	policy := ratelimit.Policy{MaxAttempts: 2, Window: time.Minute}
	server := NewServer(Config{
		Sessions:      manager,
		Collaboration: &fakeCollab{t: t},
		Shops:         newFakeShops("shop-one.example.com"),
		WebhookSecret: "webhook-secret",
		AuthGuard:     ratelimit.NewMemoryGuard(policy),
		AuthPolicy:    policy,
	})

	var lastCode int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/auth/initiate?shop=shop-one.example.com", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}
