package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OperatorIdentity is the verified identity of a shop operator signing in
// through the platform's OIDC issuer instead of the per-shop OAuth flow.
type OperatorIdentity struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Shop    string `json:"shop,omitempty"`
}

// OIDCConfig configures operator single sign-on.
type OIDCConfig struct {
	IssuerURL string
	ClientID  string
}

// OperatorVerifier verifies operator ID tokens against the configured issuer.
type OperatorVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOperatorVerifier discovers the issuer and builds an ID token verifier.
func NewOperatorVerifier(ctx context.Context, config OIDCConfig) (*OperatorVerifier, error) {
	if config.IssuerURL == "" {
		return nil, fmt.Errorf("auth: oidc issuer URL is required")
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("auth: oidc client ID is required")
	}

	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to discover OIDC provider: %w", err)
	}

	return &OperatorVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: config.ClientID}),
	}, nil
}

// Verify validates a raw ID token and maps its claims to an OperatorIdentity.
func (v *OperatorVerifier) Verify(ctx context.Context, rawIDToken string) (*OperatorIdentity, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Shop  string `json:"dest"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("auth: failed to parse ID token claims: %w", err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrSessionInvalid)
	}

	return &OperatorIdentity{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Shop:    claims.Shop,
	}, nil
}
