// Package verifier implements credential.TokenVerifier for the external identity provider.
package verifier

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates tokens signed with a shared HMAC secret or an RSA key.
type JWTVerifier struct {
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
}

// NewHMACVerifier verifies HS256/HS384/HS512 tokens.
func NewHMACVerifier(secret []byte, issuer, audience string) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("hmac secret is empty")
	}
	return &JWTVerifier{
		keyFunc: func(*jwt.Token) (any, error) { return secret, nil },
		parser:  newParser([]string{"HS256", "HS384", "HS512"}, issuer, audience),
	}, nil
}

// NewRSAVerifier verifies RS256/RS384/RS512 tokens against a single public key.
func NewRSAVerifier(key *rsa.PublicKey, issuer, audience string) (*JWTVerifier, error) {
	if key == nil {
		return nil, errors.New("rsa public key is nil")
	}
	return &JWTVerifier{
		keyFunc: func(*jwt.Token) (any, error) { return key, nil },
		parser:  newParser([]string{"RS256", "RS384", "RS512"}, issuer, audience),
	}, nil
}

// NewRSAVerifierFromFile loads a PEM encoded RSA public key.
func NewRSAVerifierFromFile(path, issuer, audience string) (*JWTVerifier, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return NewRSAVerifier(key, issuer, audience)
}

func newParser(methods []string, issuer, audience string) *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return jwt.NewParser(opts...)
}

// Verify checks signature, expiry and the configured issuer and audience.
func (v *JWTVerifier) Verify(ctx context.Context, token string) error {
	_, err := v.VerifyExpiry(ctx, token)
	return err
}

// VerifyExpiry verifies token and returns its exp claim.
func (v *JWTVerifier) VerifyExpiry(_ context.Context, token string) (time.Time, error) {
	parsed, err := v.parser.Parse(token, v.keyFunc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return time.Time{}, errors.New("token missing sub claim")
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errors.New("token missing exp claim")
	}
	return exp.Time, nil
}
