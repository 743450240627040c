package verifier

import (
	"fmt"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/config"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/credential"
)

// FromConfig returns the verifier for the configured mode, wrapped in a cache,
// or nil when external identity is off.
func FromConfig(cfg config.ExternalIdentityConfig) (credential.TokenVerifier, error) {
	var (
		v   ExpiringVerifier
		err error
	)

	switch cfg.Mode {
	case config.ExternalModeOff, "":
		return nil, nil
	case config.ExternalModeJWT:
		if cfg.PublicKeyFile != "" {
			v, err = NewRSAVerifierFromFile(cfg.PublicKeyFile, cfg.Issuer, cfg.Audience)
		} else {
			v, err = NewHMACVerifier([]byte(cfg.Secret), cfg.Issuer, cfg.Audience)
		}
	case config.ExternalModeOIDC:
		v, err = NewOIDCVerifier(cfg.Issuer, cfg.Audience)
	default:
		return nil, fmt.Errorf("unknown external identity mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheTTL <= 0 {
		return v, nil
	}
	return NewCached(v, cfg.CacheSize, cfg.CacheTTL), nil
}
