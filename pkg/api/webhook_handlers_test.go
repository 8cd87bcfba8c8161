package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narissarah/wishcraft-sub004/pkg/webhooks"
)

func postWebhook(env *testEnv, body []byte, signature, topic, shop string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/platform", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(webhooks.SignatureHeader, signature)
	}
	req.Header.Set("X-Shopify-Topic", topic)
	req.Header.Set("X-Shopify-Shop-Domain", shop)

	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func TestWebhookValidSignature(t *testing.T) {
	env := newTestEnv(t)

	body := []byte(`{"id":12345}`)
	rec := postWebhook(env, body, webhooks.Sign(body, "webhook-secret"), "orders/create", "shop-one.example.com")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookMissingSignature(t *testing.T) {
	env := newTestEnv(t)

	rec := postWebhook(env, []byte(`{"id":12345}`), "", "orders/create", "shop-one.example.com")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookTamperedBody(t *testing.T) {
	env := newTestEnv(t)

	signature := webhooks.Sign([]byte(`{"id":12345}`), "webhook-secret")
	rec := postWebhook(env, []byte(`{"id":99999}`), signature, "orders/create", "shop-one.example.com")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookWrongSecret(t *testing.T) {
	env := newTestEnv(t)

	body := []byte(`{"id":12345}`)
	rec := postWebhook(env, body, webhooks.Sign(body, "other-secret"), "orders/create", "shop-one.example.com")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookAppUninstalled(t *testing.T) {
	env := newTestEnv(t)

	body := []byte(`{}`)
	rec := postWebhook(env, body, webhooks.Sign(body, "webhook-secret"), "app/uninstalled", "shop-one.example.com")
	require.Equal(t, http.StatusOK, rec.Code)

	shop, err := env.shops.GetShopByDomain(context.Background(), "shop-one.example.com")
	require.NoError(t, err)
	assert.False(t, shop.Installed)
}

func TestWebhookUnknownTopicAcknowledged(t *testing.T) {
	env := newTestEnv(t)

	body := []byte(`{"something":"else"}`)
	rec := postWebhook(env, body, webhooks.Sign(body, "webhook-secret"), "products/update", "shop-one.example.com")
	assert.Equal(t, http.StatusOK, rec.Code)
}
