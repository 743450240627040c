package gate

import (
	"fmt"
	"strings"
)

// Target is the closed set of places a gated navigation can be sent.
type Target int

const (
	TargetLogin Target = iota + 1
	TargetOnboarding
	TargetDashboard
	TargetUnauthorized
)

// AllTargets lists every Target in declaration order.
var AllTargets = []Target{TargetLogin, TargetOnboarding, TargetDashboard, TargetUnauthorized}

func (t Target) String() string {
	switch t {
	case TargetLogin:
		return "login"
	case TargetOnboarding:
		return "onboarding"
	case TargetDashboard:
		return "dashboard"
	case TargetUnauthorized:
		return "unauthorized"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// ParseTarget maps a target name back to its Target.
func ParseTarget(name string) (Target, error) {
	for _, t := range AllTargets {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown redirect target %q", name)
}

// DefaultTargetPaths are the dashboard's redirect destinations.
var DefaultTargetPaths = map[Target]string{
	TargetLogin:        "/login",
	TargetOnboarding:   "/onboarding/form-builder",
	TargetDashboard:    "/dashboard-home",
	TargetUnauthorized: "/unauthorized",
}

// Targets resolves each Target to a concrete path. It is built once at startup
// and never mutated afterwards.
type Targets struct {
	paths map[Target]string
}

// NewTargets merges overrides onto the defaults. Every path must be absolute
// and local so a redirect can never leave the site.
func NewTargets(overrides map[Target]string) (Targets, error) {
	paths := make(map[Target]string, len(AllTargets))
	for t, p := range DefaultTargetPaths {
		paths[t] = p
	}
	for t, p := range overrides {
		if !isKnown(t) {
			return Targets{}, fmt.Errorf("unknown redirect target %s", t)
		}
		if p == "" {
			continue
		}
		paths[t] = p
	}
	for _, t := range AllTargets {
		if err := validateLocalPath(paths[t]); err != nil {
			return Targets{}, fmt.Errorf("%s target: %w", t, err)
		}
	}
	return Targets{paths: paths}, nil
}

// DefaultTargets returns the default resolution table.
func DefaultTargets() Targets {
	t, err := NewTargets(nil)
	if err != nil {
		panic(err)
	}
	return t
}

// Path returns the concrete path for t.
func (ts Targets) Path(t Target) string {
	return ts.paths[t]
}

func isKnown(t Target) bool {
	for _, known := range AllTargets {
		if known == t {
			return true
		}
	}
	return false
}

func validateLocalPath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("path %q must start with /", p)
	}
	if strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return fmt.Errorf("path %q is not a local path", p)
	}
	return nil
}
