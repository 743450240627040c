package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"
)

// OIDCVerifier validates tokens against an OIDC issuer's discovery document and JWKS.
type OIDCVerifier struct {
	tokenHandler *oidctoken.TokenHandler[map[string]any]
}

// NewOIDCVerifier builds a verifier for issuer. JWKS are fetched lazily on the
// first token so startup does not depend on the provider being reachable.
func NewOIDCVerifier(issuer, audience string) (*OIDCVerifier, error) {
	if issuer == "" {
		return nil, fmt.Errorf("oidc issuer is required")
	}
	if audience == "" {
		return nil, fmt.Errorf("oidc audience is required")
	}

	tokenHandler, err := oidctoken.New[map[string]any](nil,
		options.WithIssuer(issuer),
		options.WithRequiredAudience(audience),
		options.WithLazyLoadJwks(true),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize oidc token handler: %w", err)
	}
	return &OIDCVerifier{tokenHandler: tokenHandler}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, token string) error {
	_, err := v.VerifyExpiry(ctx, token)
	return err
}

// VerifyExpiry verifies token and returns its exp claim.
func (v *OIDCVerifier) VerifyExpiry(ctx context.Context, token string) (time.Time, error) {
	claims, err := v.tokenHandler.ParseToken(ctx, token)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid token: %w", err)
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return time.Time{}, fmt.Errorf("token missing sub claim")
	}
	exp, ok := numericDate(claims["exp"])
	if !ok {
		return time.Time{}, fmt.Errorf("token missing exp claim")
	}
	return exp, nil
}

func numericDate(v any) (time.Time, bool) {
	switch n := v.(type) {
	case float64:
		return time.Unix(int64(n), 0), true
	case int64:
		return time.Unix(n, 0), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(int64(f), 0), true
	default:
		return time.Time{}, false
	}
}
