package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/narissarah/wishcraft-sub004/pkg/crypto"
)

const (
	// StateLength is the number of random bytes in an OAuth state token
	// (32 bytes = 256 bits of entropy).
	StateLength = 32

	// VerifierLength is the length of a generated PKCE code verifier.
	// RFC 7636 allows 43-128 characters; 64 gives plenty of margin.
	VerifierLength = 64
)

// verifierAlphabet is the unreserved URL-safe alphabet from RFC 7636 §4.1.
const verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// PKCEPair holds a code verifier and its S256 challenge. The pair is stored
// server-side against the pending exchange; nothing from the client is
// trusted on its own.
type PKCEPair struct {
	Verifier  string `json:"verifier"`
	Challenge string `json:"challenge"`
}

// GenerateState returns a high-entropy random token used to bind an OAuth
// redirect to the exchange that initiated it.
func GenerateState() (string, error) {
	raw := make([]byte, StateLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("auth: failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// GeneratePKCEPair returns a fresh verifier/challenge pair with
// challenge = base64url(sha256(verifier)).
func GeneratePKCEPair() (*PKCEPair, error) {
	raw := make([]byte, VerifierLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("auth: failed to generate verifier: %w", err)
	}

	verifier := make([]byte, VerifierLength)
	for i, b := range raw {
		verifier[i] = verifierAlphabet[int(b)%len(verifierAlphabet)]
	}

	return &PKCEPair{
		Verifier:  string(verifier),
		Challenge: ChallengeFromVerifier(string(verifier)),
	}, nil
}

// ChallengeFromVerifier computes the S256 challenge for a verifier.
func ChallengeFromVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyChallenge reports whether the verifier satisfies the stored
// challenge, in constant time.
func VerifyChallenge(verifier, challenge string) bool {
	expected := ChallengeFromVerifier(verifier)
	return crypto.ConstantTimeEquals([]byte(expected), []byte(challenge))
}
