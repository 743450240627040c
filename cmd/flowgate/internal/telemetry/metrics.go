package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GateMetrics holds the instruments recorded by the edge gate.
type GateMetrics struct {
	VerdictCounter    metric.Int64Counter // verdicts by name and route class
	CredentialCounter metric.Int64Counter // credential source checks by result
}

// NewGateMetrics creates the gate instruments on the global meter provider.
func NewGateMetrics() (*GateMetrics, error) {
	meter := otel.Meter("flowgate/gate")

	verdictCounter, err := meter.Int64Counter(
		"flowgate.gate.verdict.count",
		metric.WithDescription("Edge verdicts by outcome"),
		metric.WithUnit("{verdict}"),
	)
	if err != nil {
		return nil, err
	}

	credentialCounter, err := meter.Int64Counter(
		"flowgate.credential.check.count",
		metric.WithDescription("Credential source checks by result"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	return &GateMetrics{
		VerdictCounter:    verdictCounter,
		CredentialCounter: credentialCounter,
	}, nil
}

// RecordVerdict counts one edge verdict. Safe on a nil receiver.
func (m *GateMetrics) RecordVerdict(ctx context.Context, verdict, class string) {
	if m == nil {
		return
	}
	m.VerdictCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGateVerdict, verdict),
		attribute.String(AttrRouteClass, class),
	))
}

// RecordCredential counts one credential source check. Safe on a nil receiver.
func (m *GateMetrics) RecordCredential(ctx context.Context, source, result string) {
	if m == nil {
		return
	}
	m.CredentialCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCredentialSource, source),
		attribute.String(AttrCredentialResult, result),
	))
}
