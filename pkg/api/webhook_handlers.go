package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/narissarah/wishcraft-sub004/pkg/httputil"
	"github.com/narissarah/wishcraft-sub004/pkg/webhooks"
)

// Platform callback headers accompanying the signed body.
const (
	headerWebhookTopic = "X-Shopify-Topic"
	headerWebhookShop  = "X-Shopify-Shop-Domain"
)

// handlePlatformWebhook handles POST /webhooks/platform. The signature is
// verified over the exact raw bytes before any parsing; verification failure
// rejects the request with no processing of the payload.
func (s *Server) handlePlatformWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.recordWebhookVerification("unreadable")
		httputil.WriteBadRequest(w, "unreadable body")
		return
	}

	signature := r.Header.Get(webhooks.SignatureHeader)
	if err := webhooks.VerifySignature(body, signature, s.config.WebhookSecret); err != nil {
		s.recordWebhookVerification("invalid")
		httputil.WriteUnauthorized(w, "signature verification failed")
		return
	}
	s.recordWebhookVerification("valid")

	topic := r.Header.Get(headerWebhookTopic)
	shop := r.Header.Get(headerWebhookShop)

	switch topic {
	case "app/uninstalled":
		if shop == "" {
			httputil.WriteBadRequest(w, "shop domain header is required")
			return
		}
		if err := s.config.Shops.SetShopInstalled(r.Context(), shop, false); err != nil {
			writeDomainError(w, err)
			return
		}
		slog.Info("shop uninstalled", "shop", shop)

	case "customers/redact", "shop/redact", "customers/data_request":
		// Compliance topics are acknowledged; redaction runs out of band.
		slog.Info("compliance webhook received", "topic", topic, "shop", shop)

	default:
		// Unknown topics are acknowledged so the platform does not retry
		// deliveries we will never handle.
		slog.Debug("unhandled webhook topic", "topic", topic, "shop", shop)
	}

	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}

func (s *Server) recordWebhookVerification(outcome string) {
	if s.config.Metrics != nil {
		s.config.Metrics.WebhookVerificationsTotal.WithLabelValues(outcome).Inc()
	}
}
