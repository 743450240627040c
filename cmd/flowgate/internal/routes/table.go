// Package routes classifies request paths against the deploy-time route table.
package routes

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Class is the deploy-time classification of a route.
type Class string

const (
	ClassPublic     Class = "public"
	ClassProtected  Class = "protected"
	ClassOnboarding Class = "onboarding"
	ClassAPI        Class = "api"
)

// Defaults mirror the dashboard's route layout.
const (
	DefaultAPIPrefix        = "/api"
	DefaultOnboardingPrefix = "/onboarding"
)

// DefaultPublicPatterns is the public route table shipped with the dashboard.
var DefaultPublicPatterns = []string{
	"/",
	"/login",
	"/signup",
	"/sign-in/**",
	"/sign-up/**",
	"/forgot-password",
	"/reset-password/**",
	"/verify-email/**",
}

// Table is an immutable route classification table. Safe for concurrent use.
type Table struct {
	public           []string
	apiPrefix        string
	onboardingPrefix string
}

// NewTable validates the patterns and prefixes and returns a Table.
func NewTable(publicPatterns []string, apiPrefix, onboardingPrefix string) (*Table, error) {
	patterns := make([]string, 0, len(publicPatterns))
	for _, p := range publicPatterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			return nil, fmt.Errorf("public pattern %q must start with /", p)
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid public pattern %q", p)
		}
		patterns = append(patterns, p)
	}

	api, err := normalizePrefix(apiPrefix)
	if err != nil {
		return nil, fmt.Errorf("api prefix: %w", err)
	}
	onboarding, err := normalizePrefix(onboardingPrefix)
	if err != nil {
		return nil, fmt.Errorf("onboarding prefix: %w", err)
	}

	return &Table{
		public:           patterns,
		apiPrefix:        api,
		onboardingPrefix: onboarding,
	}, nil
}

// DefaultTable returns the table built from the shipped defaults.
func DefaultTable() *Table {
	t, err := NewTable(DefaultPublicPatterns, DefaultAPIPrefix, DefaultOnboardingPrefix)
	if err != nil {
		panic(err)
	}
	return t
}

func normalizePrefix(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || prefix == "/" {
		return "", fmt.Errorf("prefix %q must name a path segment", prefix)
	}
	if !strings.HasPrefix(prefix, "/") {
		return "", fmt.Errorf("prefix %q must start with /", prefix)
	}
	return strings.TrimRight(prefix, "/"), nil
}

// IsAPI reports whether the path is under the API prefix.
func (t *Table) IsAPI(path string) bool {
	return underPrefix(path, t.apiPrefix)
}

// IsOnboarding reports whether the path is under the onboarding prefix.
func (t *Table) IsOnboarding(path string) bool {
	return underPrefix(path, t.onboardingPrefix)
}

// IsPublic reports whether any public pattern matches the path.
func (t *Table) IsPublic(path string) bool {
	for _, pattern := range t.public {
		// Patterns are validated at construction, so Match never reports ErrBadPattern.
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// Classify returns the route class of path. API paths win over every other class.
func (t *Table) Classify(path string) Class {
	switch {
	case t.IsAPI(path):
		return ClassAPI
	case t.IsPublic(path):
		return ClassPublic
	case t.IsOnboarding(path):
		return ClassOnboarding
	default:
		return ClassProtected
	}
}

// PublicPatterns returns a copy of the public pattern list.
func (t *Table) PublicPatterns() []string {
	out := make([]string, len(t.public))
	copy(out, t.public)
	return out
}

func (t *Table) APIPrefix() string        { return t.apiPrefix }
func (t *Table) OnboardingPrefix() string { return t.onboardingPrefix }

// underPrefix matches whole segments: "/api" and "/api/x" but not "/apix".
func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Clean returns the canonical form of a request path: dot segments resolved,
// repeated slashes collapsed, a trailing slash kept. Classification is only
// meaningful on canonical paths.
func Clean(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	clean := path.Clean(p)
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}
	return clean
}
