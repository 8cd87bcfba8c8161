// Package webhooks verifies inbound platform callbacks and dispatches
// outbound collaboration notifications.
//
// # Inbound verification
//
// Platform callbacks carry a base64 HMAC-SHA256 of the raw request body in
// X-Shopify-Hmac-Sha256. Verification recomputes the digest over the exact
// bytes received and compares in constant time; anything else fails closed:
//
//	body, _ := io.ReadAll(r.Body)
//	if err := webhooks.VerifySignature(body, r.Header.Get(webhooks.SignatureHeader), secret); err != nil {
//		// do not parse the payload
//	}
//
// # Outbound notifications
//
// The Dispatcher posts signed collaboration events (invited, accepted,
// removed, ...) to the configured notification sink. Every attempt lands in
// the delivery log; failures are retried in the background with capped
// exponential backoff. Emitters fire and forget: delivery is never awaited
// inside a state-changing operation.
package webhooks
