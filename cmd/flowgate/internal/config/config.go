package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable read by flowgate.
const EnvPrefix = "FLOWGATE"

// External identity verification modes.
const (
	ExternalModeOff  = "off"
	ExternalModeJWT  = "jwt"
	ExternalModeOIDC = "oidc"
)

// Config holds the flowgate configuration
type Config struct {
	Debug       bool
	DatabaseURL string

	Server        ServerConfig
	Routes        RoutesConfig
	Targets       TargetsConfig
	Cookies       CookieConfig
	External      ExternalIdentityConfig
	Identity      IdentityConfig
	Observability ObservabilityConfig
}

// ServerConfig describes the edge listener and what sits behind it.
type ServerConfig struct {
	Addr            string
	APIBackendURL   string   // where the API prefix is proxied
	UpstreamURL     string   // optional page renderer; takes precedence over StaticDir
	StaticDir       string   // built SPA assets, served with index.html fallback
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// RoutesConfig is the deploy-time route table.
type RoutesConfig struct {
	PublicPatterns   []string
	APIPrefix        string
	OnboardingPrefix string
}

// TargetsConfig overrides redirect destinations. Empty values keep the defaults.
type TargetsConfig struct {
	Login        string
	Onboarding   string
	Dashboard    string
	Unauthorized string
}

// CookieConfig names the cookies the edge inspects.
type CookieConfig struct {
	AccessToken        string
	OnboardingComplete string
	ExternalSession    string
}

// ExternalIdentityConfig configures verification of the external identity session.
type ExternalIdentityConfig struct {
	Mode          string // off, jwt or oidc
	Secret        string // jwt: HMAC shared secret
	PublicKeyFile string // jwt: PEM encoded RSA public key
	Issuer        string
	Audience      string
	CacheSize     int
	CacheTTL      time.Duration
}

// IdentityConfig configures the Current User fetch used by client tooling.
type IdentityConfig struct {
	MeURL         string
	RetryAttempts int
	Timeout       time.Duration
}

// ObservabilityConfig configures OpenTelemetry export.
type ObservabilityConfig struct {
	OTLPEndpoint   string
	OTLPProtocol   string
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// Bind wires the flowgate prefix and key replacer into the global viper instance.
// Load calls it; it is exported so commands can bind flags before loading.
func Bind() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("debug", false)
	viper.SetDefault("database_url", "file:flowgate.db?cache=shared")

	viper.SetDefault("server.addr", "localhost:8080")
	viper.SetDefault("server.api_backend_url", "http://localhost:4000")
	viper.SetDefault("server.upstream_url", "")
	viper.SetDefault("server.static_dir", "dist")
	viper.SetDefault("server.cors_origins", []string{})
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)

	viper.SetDefault("routes.public_patterns", []string{})
	viper.SetDefault("routes.api_prefix", "/api")
	viper.SetDefault("routes.onboarding_prefix", "/onboarding")

	viper.SetDefault("targets.login", "")
	viper.SetDefault("targets.onboarding", "")
	viper.SetDefault("targets.dashboard", "")
	viper.SetDefault("targets.unauthorized", "")

	viper.SetDefault("cookies.access_token", "accessToken")
	viper.SetDefault("cookies.onboarding_complete", "onboarding_complete")
	viper.SetDefault("cookies.external_session", "__session")

	viper.SetDefault("external.mode", ExternalModeOff)
	viper.SetDefault("external.secret", "")
	viper.SetDefault("external.public_key_file", "")
	viper.SetDefault("external.issuer", "")
	viper.SetDefault("external.audience", "")
	viper.SetDefault("external.cache_size", 1024)
	viper.SetDefault("external.cache_ttl", time.Minute)

	viper.SetDefault("identity.me_url", "http://localhost:4000/api/auth/me")
	viper.SetDefault("identity.retry_attempts", 3)
	viper.SetDefault("identity.timeout", 10*time.Second)

	viper.SetDefault("observability.otlp_endpoint", "")
	viper.SetDefault("observability.otlp_protocol", "http/protobuf")
	viper.SetDefault("observability.otlp_insecure", false)
	viper.SetDefault("observability.service_name", "flowgate")
	viper.SetDefault("observability.service_version", "dev")
	viper.SetDefault("observability.environment", "development")
}

// Load reads FLOWGATE_ environment variables, then the config file (if one was
// read), then defaults. Earlier sources win.
func Load() (*Config, error) {
	Bind()

	cfg := &Config{
		Debug:       viper.GetBool("debug"),
		DatabaseURL: viper.GetString("database_url"),
		Server: ServerConfig{
			Addr:            viper.GetString("server.addr"),
			APIBackendURL:   viper.GetString("server.api_backend_url"),
			UpstreamURL:     viper.GetString("server.upstream_url"),
			StaticDir:       viper.GetString("server.static_dir"),
			CORSOrigins:     getList("server.cors_origins"),
			ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
		},
		Routes: RoutesConfig{
			PublicPatterns:   getList("routes.public_patterns"),
			APIPrefix:        viper.GetString("routes.api_prefix"),
			OnboardingPrefix: viper.GetString("routes.onboarding_prefix"),
		},
		Targets: TargetsConfig{
			Login:        viper.GetString("targets.login"),
			Onboarding:   viper.GetString("targets.onboarding"),
			Dashboard:    viper.GetString("targets.dashboard"),
			Unauthorized: viper.GetString("targets.unauthorized"),
		},
		Cookies: CookieConfig{
			AccessToken:        viper.GetString("cookies.access_token"),
			OnboardingComplete: viper.GetString("cookies.onboarding_complete"),
			ExternalSession:    viper.GetString("cookies.external_session"),
		},
		External: ExternalIdentityConfig{
			Mode:          strings.ToLower(viper.GetString("external.mode")),
			Secret:        viper.GetString("external.secret"),
			PublicKeyFile: viper.GetString("external.public_key_file"),
			Issuer:        viper.GetString("external.issuer"),
			Audience:      viper.GetString("external.audience"),
			CacheSize:     viper.GetInt("external.cache_size"),
			CacheTTL:      viper.GetDuration("external.cache_ttl"),
		},
		Identity: IdentityConfig{
			MeURL:         viper.GetString("identity.me_url"),
			RetryAttempts: viper.GetInt("identity.retry_attempts"),
			Timeout:       viper.GetDuration("identity.timeout"),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint:   viper.GetString("observability.otlp_endpoint"),
			OTLPProtocol:   viper.GetString("observability.otlp_protocol"),
			OTLPInsecure:   viper.GetBool("observability.otlp_insecure"),
			ServiceName:    viper.GetString("observability.service_name"),
			ServiceVersion: viper.GetString("observability.service_version"),
			Environment:    viper.GetString("observability.environment"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Cookies.AccessToken == "" || c.Cookies.OnboardingComplete == "" {
		return fmt.Errorf("cookies.access_token and cookies.onboarding_complete are required")
	}
	if c.Identity.RetryAttempts < 1 {
		return fmt.Errorf("identity.retry_attempts must be at least 1, got %d", c.Identity.RetryAttempts)
	}

	switch c.External.Mode {
	case ExternalModeOff, "":
		c.External.Mode = ExternalModeOff
	case ExternalModeJWT:
		if c.External.Secret == "" && c.External.PublicKeyFile == "" {
			return fmt.Errorf("external.mode=jwt requires external.secret or external.public_key_file")
		}
		if c.External.Secret != "" && c.External.PublicKeyFile != "" {
			return fmt.Errorf("external.secret and external.public_key_file are mutually exclusive")
		}
	case ExternalModeOIDC:
		if c.External.Issuer == "" {
			return fmt.Errorf("external.mode=oidc requires external.issuer")
		}
		if c.External.Audience == "" {
			return fmt.Errorf("external.mode=oidc requires external.audience")
		}
	default:
		return fmt.Errorf("unknown external.mode %q (want off, jwt or oidc)", c.External.Mode)
	}

	if c.External.Mode != ExternalModeOff && c.Cookies.ExternalSession == "" {
		return fmt.Errorf("cookies.external_session is required when external identity is enabled")
	}
	return nil
}

// getList reads a list that may arrive as a YAML sequence or as a
// comma-separated environment variable.
func getList(key string) []string {
	var out []string
	for _, item := range viper.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
