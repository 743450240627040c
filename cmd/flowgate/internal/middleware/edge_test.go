package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/credential"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/gate"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/routes"
)

type failingVerifier struct{}

func (failingVerifier) Verify(context.Context, string) error { return errors.New("jwks fetch failed") }

type okVerifier struct{}

func (okVerifier) Verify(context.Context, string) error { return nil }

func newEvaluator(verifier credential.TokenVerifier) *Evaluator {
	sources := []credential.Source{credential.NewCookieSource("accessToken")}
	if verifier != nil {
		sources = append([]credential.Source{credential.NewExternalSource("__session", verifier)}, sources...)
	}
	return NewEvaluator(EdgeDependencies{
		Policy:           gate.NewPolicy(routes.DefaultTable()),
		Targets:          gate.DefaultTargets(),
		Credentials:      credential.NewChain(zap.NewNop(), nil, sources...),
		OnboardingCookie: "onboarding_complete",
		Logger:           zap.NewNop(),
	})
}

func serve(t *testing.T, e *Evaluator, path string, cookies map[string]string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	handler := Gate(e)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		eval, ok := EvaluationFromContext(r.Context())
		require.True(t, ok)
		assert.True(t, eval.Verdict.IsPass())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range cookies {
		req.AddCookie(&http.Cookie{Name: k, Value: v})
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, reached
}

func TestGateScenarios(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		cookies      map[string]string
		wantLocation string
	}{
		{name: "login anonymous", path: "/login"},
		{name: "login onboarded", path: "/login", cookies: map[string]string{"accessToken": "x", "onboarding_complete": "true"}, wantLocation: "/dashboard-home"},
		{name: "dashboard anonymous", path: "/dashboard-home", wantLocation: "/login"},
		{name: "onboarding without flag", path: "/onboarding/form-builder", cookies: map[string]string{"accessToken": "x"}},
		{name: "onboarding with flag", path: "/onboarding/form-builder", cookies: map[string]string{"accessToken": "x", "onboarding_complete": "true"}, wantLocation: "/dashboard-home"},
		{name: "protected with flag value not exactly true", path: "/leads", cookies: map[string]string{"accessToken": "x", "onboarding_complete": "True"}, wantLocation: "/onboarding/form-builder"},
		{name: "api anonymous", path: "/api/leads"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, reached := serve(t, newEvaluator(nil), tt.path, tt.cookies)
			if tt.wantLocation == "" {
				assert.True(t, reached)
				assert.Equal(t, http.StatusOK, rec.Code)
				return
			}
			assert.False(t, reached)
			assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
		})
	}
}

func TestGateFailingExternalSourceFailsClosed(t *testing.T) {
	e := newEvaluator(failingVerifier{})

	rec, reached := serve(t, e, "/dashboard-home", map[string]string{"__session": "tok", "onboarding_complete": "true"})
	assert.False(t, reached)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	// The first-party cookie still counts when the external source fails.
	rec, reached = serve(t, e, "/dashboard-home", map[string]string{"__session": "tok", "accessToken": "x", "onboarding_complete": "true"})
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateExternalSessionAuthenticates(t *testing.T) {
	rec, reached := serve(t, newEvaluator(okVerifier{}), "/login", map[string]string{"__session": "tok", "onboarding_complete": "true"})
	assert.False(t, reached)
	assert.Equal(t, "/dashboard-home", rec.Header().Get("Location"))
}

func TestEvaluateAPISkipsCredentials(t *testing.T) {
	e := newEvaluator(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: "x"})

	eval := e.Evaluate(context.Background(), req, "/api/me")
	assert.Equal(t, string(routes.ClassAPI), eval.Class)
	assert.False(t, eval.Authenticated)
	assert.True(t, eval.Verdict.IsPass())
	assert.Empty(t, eval.Location)
}

func TestEvaluateForeignPath(t *testing.T) {
	e := newEvaluator(nil)
	req := httptest.NewRequest(http.MethodGet, "/_gate/verdict", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: "x"})

	eval := e.Evaluate(context.Background(), req, "/settings")
	assert.True(t, eval.Authenticated)
	assert.False(t, eval.OnboardingComplete)
	assert.Equal(t, gate.TargetOnboarding, eval.Verdict.Target)
	assert.Equal(t, "/onboarding/form-builder", eval.Location)
}

func TestGateRedirectsNonCanonicalPaths(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/sign-in/../dashboard-home", "/dashboard-home"},
		{"/reset-password/../../leads", "/leads"},
		{"//dashboard-home", "/dashboard-home"},
		{"/leads/./42?tab=notes", "/leads/42?tab=notes"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, reached := serve(t, newEvaluator(nil), tt.path, nil)
			assert.False(t, reached)
			assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
		})
	}
}

func TestEvaluateCleansPath(t *testing.T) {
	e := newEvaluator(nil)
	req := httptest.NewRequest(http.MethodGet, "/_gate/verdict", nil)

	eval := e.Evaluate(context.Background(), req, "/sign-in/../dashboard-home")
	assert.Equal(t, "/dashboard-home", eval.Path)
	assert.Equal(t, string(routes.ClassProtected), eval.Class)
	assert.Equal(t, gate.TargetLogin, eval.Verdict.Target)
}
