package middleware

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/credential"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/gate"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/routes"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/telemetry"
)

// Evaluation is the result of gating one request.
type Evaluation struct {
	Path               string
	Class              string
	Authenticated      bool
	OnboardingComplete bool
	Verdict            gate.Verdict
	Location           string // empty unless Verdict is a redirect
}

// EdgeDependencies provides the collaborators needed for edge decisions.
type EdgeDependencies struct {
	Policy           *gate.Policy
	Targets          gate.Targets
	Credentials      *credential.Chain
	OnboardingCookie string
	Metrics          *telemetry.GateMetrics // optional
	Logger           *zap.Logger
}

// Evaluator reads credentials off a request and runs the edge policy.
type Evaluator struct {
	deps EdgeDependencies
}

// NewEvaluator builds an Evaluator.
func NewEvaluator(deps EdgeDependencies) *Evaluator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Evaluator{deps: deps}
}

// Evaluate gates path using the credentials carried by r. path need not be
// r's own path; the verdict endpoint evaluates prospective navigations.
// path is cleaned before classification.
func (e *Evaluator) Evaluate(ctx context.Context, r *http.Request, path string) Evaluation {
	path = routes.Clean(path)
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGate, "gate.Evaluate",
		attribute.String(telemetry.AttrRoutePath, path),
	)
	defer span.End()

	table := e.deps.Policy.Table()
	eval := Evaluation{
		Path:  path,
		Class: string(table.Classify(path)),
	}

	// The API prefix short-circuits before any credential is inspected.
	if !table.IsAPI(path) {
		req := credential.FromHTTP(r)
		eval.Authenticated = e.deps.Credentials.Authenticated(ctx, req)
		eval.OnboardingComplete = credential.OnboardingComplete(req, e.deps.OnboardingCookie)
	}

	eval.Verdict = e.deps.Policy.Evaluate(gate.Input{
		Path:               path,
		Authenticated:      eval.Authenticated,
		OnboardingComplete: eval.OnboardingComplete,
	})
	if !eval.Verdict.IsPass() {
		eval.Location = e.deps.Targets.Path(eval.Verdict.Target)
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrRouteClass, eval.Class),
		attribute.String(telemetry.AttrGateVerdict, eval.Verdict.Name()),
		attribute.String(telemetry.AttrGateReason, string(eval.Verdict.Reason)),
		attribute.Bool(telemetry.AttrAuthenticated, eval.Authenticated),
		attribute.Bool(telemetry.AttrOnboardingComplete, eval.OnboardingComplete),
	)
	e.deps.Metrics.RecordVerdict(ctx, eval.Verdict.Name(), eval.Class)

	return eval
}

// CanonicalPath answers requests whose path is not canonical with a 307 to
// the cleaned path, so nothing downstream sees dot segments or empty segments.
func CanonicalPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if redirectCanonical(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectCanonical(w http.ResponseWriter, r *http.Request) bool {
	clean := routes.Clean(r.URL.Path)
	if clean == r.URL.Path {
		return false
	}
	target := clean
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusTemporaryRedirect)
	return true
}

// Gate is the edge middleware: it redirects with 307 or hands the request on.
// Non-canonical paths are redirected to their cleaned form first.
// The evaluation is stored on the context for downstream handlers.
func Gate(e *Evaluator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if redirectCanonical(w, r) {
				return
			}
			eval := e.Evaluate(r.Context(), r, r.URL.Path)

			if !eval.Verdict.IsPass() {
				e.deps.Logger.Debug("gate_redirect",
					zap.String("path", eval.Path),
					zap.String("verdict", eval.Verdict.Name()),
					zap.String("reason", string(eval.Verdict.Reason)),
				)
				http.Redirect(w, r, eval.Location, http.StatusTemporaryRedirect)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetEvaluation(r.Context(), eval)))
		})
	}
}

type evaluationContextKey struct{}

// SetEvaluation stores the edge evaluation on the context.
func SetEvaluation(ctx context.Context, eval Evaluation) context.Context {
	return context.WithValue(ctx, evaluationContextKey{}, eval)
}

// EvaluationFromContext retrieves the edge evaluation from the context.
func EvaluationFromContext(ctx context.Context) (Evaluation, bool) {
	eval, ok := ctx.Value(evaluationContextKey{}).(Evaluation)
	return eval, ok
}
