package credential

import (
	"context"
	"fmt"
	"strings"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"
)

// TokenVerifier checks an external identity token's signature and claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) error
}

// ExternalSource accepts a session issued by the external identity provider,
// carried either in the session cookie or as an Authorization bearer token.
// The token is verified but its claims never leave the verifier.
type ExternalSource struct {
	cookie   string
	verifier TokenVerifier
}

// NewExternalSource builds the external identity source.
func NewExternalSource(cookie string, verifier TokenVerifier) *ExternalSource {
	return &ExternalSource{cookie: cookie, verifier: verifier}
}

func (s *ExternalSource) Name() string { return "external" }

func (s *ExternalSource) Present(ctx context.Context, req Request) (bool, error) {
	token := s.token(req)
	if token == "" {
		return false, nil
	}
	if err := s.verifier.Verify(ctx, token); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return true, nil
}

func (s *ExternalSource) token(req Request) string {
	if v, ok := req.Cookie(s.cookie); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}

	if req.Headers == nil || req.Headers.Get("Authorization") == "" {
		return ""
	}
	tokenStrings := [][]options.TokenStringOption{
		{}, // Authorization: Bearer
	}
	token, err := oidctoken.GetTokenString(req.Headers.Get, tokenStrings)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(token)
}
