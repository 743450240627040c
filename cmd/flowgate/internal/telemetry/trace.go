package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer names used by flowgate packages.
const (
	TracerGate       = "flowgate/gate"
	TracerCredential = "flowgate/credential"
	TracerAccess     = "flowgate/access"
)

// StartSpan is a convenience wrapper around otel.Tracer().Start().
//
//	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGate, "gate.Evaluate",
//	    attribute.String(telemetry.AttrRoutePath, path),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on the span and marks the span failed.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Common attribute keys
const (
	AttrRoutePath  = "route.path"
	AttrRouteClass = "route.class"

	AttrGateVerdict = "gate.verdict"
	AttrGateReason  = "gate.reason"

	AttrCredentialSource = "credential.source"
	AttrCredentialResult = "credential.result"

	AttrAuthenticated      = "auth.authenticated"
	AttrOnboardingComplete = "auth.onboarding_complete"

	AttrAccessPage = "access.page"
	AttrAccessRole = "access.role"
)
