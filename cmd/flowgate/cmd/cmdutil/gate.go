package cmdutil

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/config"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/credential"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/credential/verifier"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/gate"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/middleware"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/routes"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/telemetry"
)

// NewRouteTable builds the route table from config, falling back to the
// shipped public patterns when none are configured.
func NewRouteTable(cfg config.RoutesConfig) (*routes.Table, error) {
	patterns := cfg.PublicPatterns
	if len(patterns) == 0 {
		patterns = routes.DefaultPublicPatterns
	}
	table, err := routes.NewTable(patterns, cfg.APIPrefix, cfg.OnboardingPrefix)
	if err != nil {
		return nil, fmt.Errorf("build route table: %w", err)
	}
	return table, nil
}

// NewTargets resolves redirect targets from config.
func NewTargets(cfg config.TargetsConfig) (gate.Targets, error) {
	targets, err := gate.NewTargets(map[gate.Target]string{
		gate.TargetLogin:        cfg.Login,
		gate.TargetOnboarding:   cfg.Onboarding,
		gate.TargetDashboard:    cfg.Dashboard,
		gate.TargetUnauthorized: cfg.Unauthorized,
	})
	if err != nil {
		return gate.Targets{}, fmt.Errorf("resolve redirect targets: %w", err)
	}
	return targets, nil
}

// NewCredentialChain assembles the credential sources in evaluation order:
// the external session (when enabled) and then the access token cookie.
func NewCredentialChain(cfg *config.Config, logger *zap.Logger, metrics *telemetry.GateMetrics) (*credential.Chain, error) {
	var sources []credential.Source

	v, err := verifier.FromConfig(cfg.External)
	if err != nil {
		return nil, fmt.Errorf("configure external identity: %w", err)
	}
	if v != nil {
		sources = append(sources, credential.NewExternalSource(cfg.Cookies.ExternalSession, v))
	}
	sources = append(sources, credential.NewCookieSource(cfg.Cookies.AccessToken))

	return credential.NewChain(logger.Named("credential"), metrics, sources...), nil
}

// NewEvaluator wires the complete edge evaluator from config.
func NewEvaluator(cfg *config.Config, logger *zap.Logger, metrics *telemetry.GateMetrics) (*middleware.Evaluator, error) {
	table, err := NewRouteTable(cfg.Routes)
	if err != nil {
		return nil, err
	}
	targets, err := NewTargets(cfg.Targets)
	if err != nil {
		return nil, err
	}
	chain, err := NewCredentialChain(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	return middleware.NewEvaluator(middleware.EdgeDependencies{
		Policy:           gate.NewPolicy(table),
		Targets:          targets,
		Credentials:      chain,
		OnboardingCookie: cfg.Cookies.OnboardingComplete,
		Metrics:          metrics,
		Logger:           logger.Named("gate"),
	}), nil
}
