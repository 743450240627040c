package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/access"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/credential"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/gate"
	gatemiddleware "github.com/flowtrack/flowgate/cmd/flowgate/internal/middleware"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/routes"
	"github.com/flowtrack/flowgate/pkg/identity"
)

func testEvaluator() *gatemiddleware.Evaluator {
	return gatemiddleware.NewEvaluator(gatemiddleware.EdgeDependencies{
		Policy:           gate.NewPolicy(routes.DefaultTable()),
		Targets:          gate.DefaultTargets(),
		Credentials:      credential.NewChain(zap.NewNop(), nil, credential.NewCookieSource("accessToken")),
		OnboardingCookie: "onboarding_complete",
		Logger:           zap.NewNop(),
	})
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	policy, err := access.NewMemoryPolicy(access.DefaultGrants, access.DefaultInheritance)
	require.NoError(t, err)

	return NewRouter(RouterOptions{
		Evaluator: testEvaluator(),
		APIPrefix: routes.DefaultAPIPrefix,
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("api:" + r.URL.Path))
		}),
		PageHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("page:" + r.URL.Path))
		}),
		Access: policy,
		Logger: zap.NewNop(),
	})
}

func do(h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var (
	tokenCookie     = &http.Cookie{Name: "accessToken", Value: "abc"}
	onboardedCookie = &http.Cookie{Name: "onboarding_complete", Value: "true"}
)

func TestRouterHealth(t *testing.T) {
	rec := do(testRouter(t), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRouterGatesPages(t *testing.T) {
	h := testRouter(t)

	tests := []struct {
		name     string
		path     string
		cookies  []*http.Cookie
		location string
		body     string
	}{
		{name: "anonymous protected", path: "/leads", location: "/login"},
		{name: "anonymous public", path: "/login", body: "page:/login"},
		{name: "anonymous root", path: "/", body: "page:/"},
		{name: "authenticated not onboarded", path: "/leads", cookies: []*http.Cookie{tokenCookie}, location: "/onboarding/form-builder"},
		{name: "onboarded on public", path: "/login", cookies: []*http.Cookie{tokenCookie, onboardedCookie}, location: "/dashboard-home"},
		{name: "onboarded on onboarding", path: "/onboarding/team", cookies: []*http.Cookie{tokenCookie, onboardedCookie}, location: "/dashboard-home"},
		{name: "onboarded protected", path: "/leads/42", cookies: []*http.Cookie{tokenCookie, onboardedCookie}, body: "page:/leads/42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.path, tt.cookies...)
			if tt.location != "" {
				assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
				return
			}
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestRouterAPIIsNotGated(t *testing.T) {
	h := testRouter(t)

	rec := do(h, "/api/leads")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "api:/api/leads", rec.Body.String())

	// A sibling of the prefix is an ordinary page.
	rec = do(h, "/apiary")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
}

func TestRouterDotSegmentsCannotReachPages(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("upstream:" + r.URL.Path))
	}))
	defer upstream.Close()

	pages, err := NewReverseProxy(upstream.URL, zap.NewNop())
	require.NoError(t, err)
	h := NewRouter(RouterOptions{
		Evaluator:   testEvaluator(),
		APIPrefix:   routes.DefaultAPIPrefix,
		PageHandler: pages,
	})

	for _, target := range []string{
		"/sign-in/../dashboard-home",
		"/reset-password/../../leads",
		"//dashboard-home",
		"/api/../dashboard-home",
	} {
		rec := do(h, target)
		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code, target)
		assert.NotContains(t, rec.Body.String(), "upstream:", target)
	}

	// Following the canonical redirect lands on the gate's own verdict.
	rec := do(h, "/sign-in/../dashboard-home")
	require.Equal(t, "/dashboard-home", rec.Header().Get("Location"))
	rec = do(h, "/dashboard-home")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestVerdictEndpointCleansPath(t *testing.T) {
	rec := do(testRouter(t), "/_gate/verdict?path=/sign-in/../dashboard-home")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VerdictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/dashboard-home", resp.Path)
	assert.Equal(t, "protected", resp.Class)
	assert.Equal(t, "redirect_login", resp.Verdict)
}

func TestRouterMissingAPIBackend(t *testing.T) {
	h := NewRouter(RouterOptions{
		Evaluator:   testEvaluator(),
		APIPrefix:   "/api",
		PageHandler: http.NotFoundHandler(),
	})
	rec := do(h, "/api/leads")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestVerdictEndpoint(t *testing.T) {
	h := testRouter(t)

	rec := do(h, "/_gate/verdict?path=/settings", tokenCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp VerdictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, VerdictResponse{
		Path:          "/settings",
		Class:         "protected",
		Authenticated: true,
		Verdict:       "redirect_onboarding",
		Reason:        string(gate.ReasonOnboardingIncomplete),
		Location:      "/onboarding/form-builder",
	}, resp)
}

func TestVerdictEndpointPass(t *testing.T) {
	rec := do(testRouter(t), "/_gate/verdict?path=/api/anything")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VerdictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pass", resp.Verdict)
	assert.Equal(t, "api", resp.Class)
	assert.Empty(t, resp.Location)
}

func TestVerdictEndpointRejectsBadPath(t *testing.T) {
	h := testRouter(t)

	for _, target := range []string{"/_gate/verdict", "/_gate/verdict?path=leads"} {
		rec := do(h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestAccessEndpoint(t *testing.T) {
	rec := do(testRouter(t), "/_gate/access?page=/settings/team")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/settings/team", resp.Page)
	assert.ElementsMatch(t, []identity.Role{identity.RoleAdmin, identity.RoleOwner}, resp.Roles)
}

func TestAccessEndpointWithoutPolicy(t *testing.T) {
	h := HandleAccess(nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_gate/access?page=/x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSPAHandler(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":       {Data: []byte("<html>app</html>")},
		"assets/app.js":    {Data: []byte("console.log(1)")},
		"assets/nested/ok": {Data: []byte("nested")},
	}
	h := NewSPAHandler(fsys)

	rec := do(h, "/assets/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	rec = do(h, "/leads/42")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>app</html>", rec.Body.String())
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	rec = do(h, "/assets/nested")
	assert.Equal(t, "<html>app</html>", rec.Body.String())
}

func TestReverseProxy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("backend:" + r.URL.Path))
	}))
	defer backend.Close()

	proxy, err := NewReverseProxy(backend.URL, zap.NewNop())
	require.NoError(t, err)

	rec := do(proxy, "/api/leads")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "backend:/api/leads", rec.Body.String())
}

func TestReverseProxyUnreachable(t *testing.T) {
	proxy, err := NewReverseProxy("http://127.0.0.1:1", zap.NewNop())
	require.NoError(t, err)

	rec := do(proxy, "/api/leads")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestReverseProxyRejectsBadTarget(t *testing.T) {
	for _, target := range []string{"ftp://x", "http://", "::"} {
		_, err := NewReverseProxy(target, zap.NewNop())
		assert.Error(t, err, target)
	}
}
