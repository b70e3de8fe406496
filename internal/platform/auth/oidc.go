package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OIDCProvider holds the subset of an OpenID Connect discovery document the
// server needs to validate bearer tokens: the canonical issuer, where tokens
// are minted, and where the signing keys live.
type OIDCProvider struct {
	Issuer        string `json:"issuer"`
	TokenEndpoint string `json:"token_endpoint"`
	JWKSURI       string `json:"jwks_uri"`
}

// Discover fetches the discovery document from
// <issuer>/.well-known/openid-configuration. Any OIDC-compliant identity
// provider works here; tenant dashboards and the voice gateway authenticate
// against the same issuer.
func Discover(ctx context.Context, issuerURL string) (*OIDCProvider, error) {
	issuerURL = strings.TrimRight(issuerURL, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		issuerURL+"/.well-known/openid-configuration", nil)
	if err != nil {
		return nil, fmt.Errorf("building discovery request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching OIDC discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OIDC discovery endpoint returned status %d", resp.StatusCode)
	}

	var provider OIDCProvider
	if err := json.NewDecoder(resp.Body).Decode(&provider); err != nil {
		return nil, fmt.Errorf("decoding OIDC discovery document: %w", err)
	}
	if provider.JWKSURI == "" {
		return nil, fmt.Errorf("OIDC discovery document missing jwks_uri")
	}
	// A document whose issuer disagrees with where we fetched it from is
	// either misconfigured or hostile.
	if provider.Issuer != "" && strings.TrimRight(provider.Issuer, "/") != issuerURL {
		return nil, fmt.Errorf("issuer mismatch: discovery document claims %q", provider.Issuer)
	}

	return &provider, nil
}

// Keyfunc returns a jwt.Keyfunc backed by the provider's JWKS endpoint. Keys
// are cached and refreshed on expiry so key rotation does not require a
// restart.
func (p *OIDCProvider) Keyfunc() jwt.Keyfunc {
	return jwksKeyFunc(p.JWKSURI)
}
