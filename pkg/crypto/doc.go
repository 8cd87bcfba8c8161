// Package crypto provides the cryptographic primitives shared by the
// WishCraft auth and collaboration core.
//
// # Components
//
// Constant-time comparison for secrets (state tokens, signatures):
//
//	if !crypto.ConstantTimeEquals(got, want) {
//		return ErrStateMismatch
//	}
//
// Authenticated encryption (AES-256-GCM) for session payloads and PII at
// rest. Decryption of anything tampered with fails with ErrDecryptionFailed
// and must be treated as fully untrusted:
//
//	cipher, _ := crypto.NewCipher(key)
//	ct, _ := cipher.Encrypt("secret")
//	pt, err := cipher.Decrypt(ct)
//
// Per-purpose key derivation (HKDF-SHA256) so a leaked session key does not
// expose PII encryption and vice versa. The salt is deployment entropy from
// configuration, never a compiled-in constant:
//
//	sessionKey, err := crypto.DeriveKey(masterSecret, "session", deploySalt)
//	piiKey, err := crypto.DeriveKey(masterSecret, "pii", deploySalt)
package crypto
