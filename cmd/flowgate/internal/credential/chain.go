package credential

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/telemetry"
)

// Credential check results used in logs and metrics.
const (
	ResultPresent = "present"
	ResultAbsent  = "absent"
	ResultError   = "error"
)

// Chain ORs a list of sources.
type Chain struct {
	sources []Source
	logger  *zap.Logger
	metrics *telemetry.GateMetrics
}

// NewChain builds a chain over sources. metrics may be nil.
func NewChain(logger *zap.Logger, metrics *telemetry.GateMetrics, sources ...Source) *Chain {
	return &Chain{sources: sources, logger: logger, metrics: metrics}
}

// Sources returns the names of the configured sources in evaluation order.
func (c *Chain) Sources() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return names
}

// Authenticated reports whether any source finds a credential. A failing
// source is logged and treated as absent; the remaining sources still count.
func (c *Chain) Authenticated(ctx context.Context, req Request) bool {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerCredential, "credential.Authenticated")
	defer span.End()

	for _, source := range c.sources {
		present, err := source.Present(ctx, req)
		switch {
		case err != nil:
			c.logger.Warn("credential_check_failed",
				zap.String("source", source.Name()),
				zap.Error(err),
			)
			telemetry.AddEvent(span, "credential.failed",
				attribute.String(telemetry.AttrCredentialSource, source.Name()),
			)
			c.metrics.RecordCredential(ctx, source.Name(), ResultError)
		case present:
			c.metrics.RecordCredential(ctx, source.Name(), ResultPresent)
			span.SetAttributes(
				attribute.String(telemetry.AttrCredentialSource, source.Name()),
				attribute.Bool(telemetry.AttrAuthenticated, true),
			)
			return true
		default:
			c.metrics.RecordCredential(ctx, source.Name(), ResultAbsent)
		}
	}

	span.SetAttributes(attribute.Bool(telemetry.AttrAuthenticated, false))
	return false
}
