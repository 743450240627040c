package verifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/credential"
)

// ExpiringVerifier is a TokenVerifier that also reports when a verified token expires.
type ExpiringVerifier interface {
	credential.TokenVerifier
	VerifyExpiry(ctx context.Context, token string) (time.Time, error)
}

// Cached remembers successful verifications until the sooner of the cache TTL
// and the token's own expiry. Failures are never cached, so a token that
// starts verifying is picked up immediately.
type Cached struct {
	next  ExpiringVerifier
	cache *expirable.LRU[string, time.Time]
	now   func() time.Time
}

// NewCached wraps next. Tokens are keyed by their SHA-256 so raw tokens are not held in memory.
func NewCached(next ExpiringVerifier, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 1024
	}
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, time.Time](size, nil, ttl),
		now:   time.Now,
	}
}

func (c *Cached) Verify(ctx context.Context, token string) error {
	_, err := c.VerifyExpiry(ctx, token)
	return err
}

// VerifyExpiry serves unexpired hits from the cache and verifies everything else.
func (c *Cached) VerifyExpiry(ctx context.Context, token string) (time.Time, error) {
	key := tokenKey(token)
	if exp, ok := c.cache.Get(key); ok {
		if c.now().Before(exp) {
			return exp, nil
		}
		c.cache.Remove(key)
	}

	exp, err := c.next.VerifyExpiry(ctx, token)
	if err != nil {
		return time.Time{}, err
	}
	if c.now().Before(exp) {
		c.cache.Add(key, exp)
	}
	return exp, nil
}

// Len reports the number of cached verifications.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
