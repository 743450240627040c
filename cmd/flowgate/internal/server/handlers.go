package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/access"
	gatemiddleware "github.com/flowtrack/flowgate/cmd/flowgate/internal/middleware"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/routes"
	"github.com/flowtrack/flowgate/pkg/identity"
)

// VerdictResponse reports the edge decision for a prospective navigation.
type VerdictResponse struct {
	Path               string `json:"path"`
	Class              string `json:"class"`
	Authenticated      bool   `json:"authenticated"`
	OnboardingComplete bool   `json:"onboarding_complete"`
	Verdict            string `json:"verdict"`
	Reason             string `json:"reason"`
	Location           string `json:"location,omitempty"`
}

// AccessResponse lists the roles permitted to view a page.
type AccessResponse struct {
	Page  string          `json:"page"`
	Roles []identity.Role `json:"roles"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func pathParam(r *http.Request, name string) (string, error) {
	p := r.URL.Query().Get(name)
	if p == "" {
		return "", ErrPathRequired
	}
	if !strings.HasPrefix(p, "/") {
		return "", ErrPathNotAbsolute
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return routes.Clean(p), nil
}

// HandleVerdict evaluates the edge policy for ?path= using the caller's own
// cookies, so client-side navigations can ask before they move.
func HandleVerdict(e *gatemiddleware.Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := pathParam(r, "path")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		eval := e.Evaluate(r.Context(), r, path)
		writeJSON(w, http.StatusOK, VerdictResponse{
			Path:               eval.Path,
			Class:              eval.Class,
			Authenticated:      eval.Authenticated,
			OnboardingComplete: eval.OnboardingComplete,
			Verdict:            eval.Verdict.Name(),
			Reason:             string(eval.Verdict.Reason),
			Location:           eval.Location,
		})
	}
}

// HandleAccess returns the roles permitted on ?page=.
func HandleAccess(policy *access.Policy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if policy == nil {
			writeError(w, http.StatusServiceUnavailable, ErrAccessNotConfigured)
			return
		}

		page, err := pathParam(r, "page")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		roles, err := policy.PermittedRoles(r.Context(), page)
		if err != nil {
			writeError(w, http.StatusInternalServerError, errors.New("access lookup failed"))
			return
		}
		if roles == nil {
			roles = []identity.Role{}
		}
		writeJSON(w, http.StatusOK, AccessResponse{Page: page, Roles: roles})
	}
}
