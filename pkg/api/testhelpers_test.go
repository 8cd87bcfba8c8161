package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/narissarah/wishcraft-sub004/pkg/activity"
	"github.com/narissarah/wishcraft-sub004/pkg/auth"
	"github.com/narissarah/wishcraft-sub004/pkg/collaboration"
	"github.com/narissarah/wishcraft-sub004/pkg/crypto"
	"github.com/narissarah/wishcraft-sub004/pkg/registry"
)

func newTestCipher(t *testing.T) *crypto.Cipher {
	t.Helper()
	key, err := crypto.DeriveKey([]byte("test-master-secret-0123456789abcdef"), "session", []byte("test-salt"))
	require.NoError(t, err)
	cipher, err := crypto.NewCipher(key)
	require.NoError(t, err)
	return cipher
}

// newSessionManager builds a real session manager whose token exchange hits
// the given test endpoint.
func newSessionManager(t *testing.T, tokenURL string) (*auth.SessionManager, *auth.MemoryExchangeStore) {
	t.Helper()
	exchanges := auth.NewMemoryExchangeStore()
	manager, err := auth.NewSessionManager(auth.ManagerConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://app.example.com/auth/callback",
		Scopes:       []string{"read_customers"},
		Endpoints: func(shop string) oauth2.Endpoint {
			return oauth2.Endpoint{
				AuthURL:  tokenURL + "/authorize",
				TokenURL: tokenURL + "/token",
			}
		},
	}, newTestCipher(t), exchanges, auth.NewMemoryRevocationList())
	require.NoError(t, err)
	return manager, exchanges
}

// newFakeIdP serves a minimal token endpoint that always issues a token.
func newFakeIdP(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"shpat_test_token","token_type":"bearer"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fakeShops is an in-memory ShopDirectory.
type fakeShops struct {
	shops map[string]*registry.Shop
}

func newFakeShops(domains ...string) *fakeShops {
	f := &fakeShops{shops: make(map[string]*registry.Shop)}
	for i, domain := range domains {
		f.shops[domain] = &registry.Shop{ID: int64(i + 1), Domain: domain, Installed: true}
	}
	return f
}

func (f *fakeShops) GetShopByDomain(ctx context.Context, domain string) (*registry.Shop, error) {
	shop, ok := f.shops[domain]
	if !ok {
		return nil, registry.ErrShopNotFound
	}
	return shop, nil
}

func (f *fakeShops) CreateShop(ctx context.Context, shop *registry.Shop) error {
	shop.ID = int64(len(f.shops) + 1)
	f.shops[shop.Domain] = shop
	return nil
}

func (f *fakeShops) SetShopInstalled(ctx context.Context, domain string, installed bool) error {
	shop, ok := f.shops[domain]
	if !ok {
		return registry.ErrShopNotFound
	}
	shop.Installed = installed
	return nil
}

// fakeRegistries is an in-memory RegistryDirectory keyed by shop ID.
type fakeRegistries struct {
	byShop map[int64][]*registry.Registry
}

func (f *fakeRegistries) ListByShop(ctx context.Context, shopID int64) ([]*registry.Registry, error) {
	if f.byShop == nil {
		return []*registry.Registry{}, nil
	}
	return f.byShop[shopID], nil
}

// fakeCollab stubs the collaboration service with per-method functions;
// unset methods fail the test if called.
type fakeCollab struct {
	t *testing.T

	enableFn  func(ctx context.Context, shopID, registryID int64, actorEmail string, settings registry.CollaborationSettings) error
	disableFn func(ctx context.Context, shopID, registryID int64, actorEmail string) error
	inviteFn  func(ctx context.Context, shopID, registryID int64, actorEmail string, req collaboration.InviteRequest) (*registry.Collaborator, error)
	acceptFn  func(ctx context.Context, collaboratorID, acceptorEmail string) (*registry.Collaborator, error)
	declineFn func(ctx context.Context, collaboratorID, declinerEmail string) error
	removeFn  func(ctx context.Context, shopID, registryID int64, actorEmail, collaboratorID string) error
	listFn    func(ctx context.Context, shopID, registryID int64, actorEmail string) ([]*registry.Collaborator, error)
	historyFn func(ctx context.Context, shopID, registryID int64, actorEmail string, limit int) ([]*activity.Record, error)
}

func (f *fakeCollab) EnableCollaboration(ctx context.Context, shopID, registryID int64, actorEmail string, settings registry.CollaborationSettings) error {
	if f.enableFn == nil {
		f.t.Fatal("unexpected EnableCollaboration call")
	}
	return f.enableFn(ctx, shopID, registryID, actorEmail, settings)
}

func (f *fakeCollab) DisableCollaboration(ctx context.Context, shopID, registryID int64, actorEmail string) error {
	if f.disableFn == nil {
		f.t.Fatal("unexpected DisableCollaboration call")
	}
	return f.disableFn(ctx, shopID, registryID, actorEmail)
}

func (f *fakeCollab) InviteCollaborator(ctx context.Context, shopID, registryID int64, actorEmail string, req collaboration.InviteRequest) (*registry.Collaborator, error) {
	if f.inviteFn == nil {
		f.t.Fatal("unexpected InviteCollaborator call")
	}
	return f.inviteFn(ctx, shopID, registryID, actorEmail, req)
}

func (f *fakeCollab) AcceptInvitation(ctx context.Context, collaboratorID, acceptorEmail string) (*registry.Collaborator, error) {
	if f.acceptFn == nil {
		f.t.Fatal("unexpected AcceptInvitation call")
	}
	return f.acceptFn(ctx, collaboratorID, acceptorEmail)
}

func (f *fakeCollab) DeclineInvitation(ctx context.Context, collaboratorID, declinerEmail string) error {
	if f.declineFn == nil {
		f.t.Fatal("unexpected DeclineInvitation call")
	}
	return f.declineFn(ctx, collaboratorID, declinerEmail)
}

func (f *fakeCollab) RemoveCollaborator(ctx context.Context, shopID, registryID int64, actorEmail, collaboratorID string) error {
	if f.removeFn == nil {
		f.t.Fatal("unexpected RemoveCollaborator call")
	}
	return f.removeFn(ctx, shopID, registryID, actorEmail, collaboratorID)
}

func (f *fakeCollab) ListCollaborators(ctx context.Context, shopID, registryID int64, actorEmail string) ([]*registry.Collaborator, error) {
	if f.listFn == nil {
		f.t.Fatal("unexpected ListCollaborators call")
	}
	return f.listFn(ctx, shopID, registryID, actorEmail)
}

func (f *fakeCollab) ListActivity(ctx context.Context, shopID, registryID int64, actorEmail string, limit int) ([]*activity.Record, error) {
	if f.historyFn == nil {
		f.t.Fatal("unexpected ListActivity call")
	}
	return f.historyFn(ctx, shopID, registryID, actorEmail, limit)
}

// testEnv bundles a server with a real session manager and an issued session
// cookie for "owner@example.com" on shop-one.example.com.
type testEnv struct {
	server     *Server
	sessions   *auth.SessionManager
	shops      *fakeShops
	registries *fakeRegistries
	collab     *fakeCollab
	cookie     *http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	idp := newFakeIdP(t)
	manager, _ := newSessionManager(t, idp.URL)
	shops := newFakeShops("shop-one.example.com")
	registries := &fakeRegistries{}
	collab := &fakeCollab{t: t}

	server := NewServer(Config{
		Sessions:      manager,
		Collaboration: collab,
		Shops:         shops,
		Registries:    registries,
		WebhookSecret: "webhook-secret",
	})

	session := &auth.Session{
		ID:         "sess-1",
		Shop:       "shop-one.example.com",
		ActorEmail: "owner@example.com",
		Nonce:      "nonce-1",
		IssuedAt:   time.Now(),
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	payload, err := manager.EncryptSession(session)
	require.NoError(t, err)

	return &testEnv{
		server:     server,
		sessions:   manager,
		shops:      shops,
		registries: registries,
		collab:     collab,
		cookie:     &http.Cookie{Name: SessionCookieName, Value: payload},
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	req.AddCookie(e.cookie)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}
