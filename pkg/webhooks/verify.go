package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/narissarah/wishcraft-sub004/pkg/crypto"
)

// SignatureHeader carries the base64-encoded HMAC-SHA256 of the raw request
// body on inbound platform callbacks.
const SignatureHeader = "X-Shopify-Hmac-Sha256"

// ErrSignatureInvalid is returned for any verification failure: missing
// header, undecodable signature, or digest mismatch. Callers must not parse
// the payload when verification fails.
var ErrSignatureInvalid = errors.New("webhooks: signature invalid")

// Sign computes the base64-encoded HMAC-SHA256 of a payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a declared signature against the exact raw bytes
// received. The expected digest is always recomputed from the body actually
// received, so a previously valid signature replayed against modified content
// fails.
func VerifySignature(body []byte, signature, secret string) error {
	if signature == "" {
		return ErrSignatureInvalid
	}

	declared, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !crypto.ConstantTimeEquals(mac.Sum(nil), declared) {
		return ErrSignatureInvalid
	}
	return nil
}
