// Package gate holds the edge routing policy: a pure function from a request
// path and its credential flags to a Verdict.
package gate

import (
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/routes"
)

// Input is everything the edge policy may look at.
type Input struct {
	Path               string
	Authenticated      bool
	OnboardingComplete bool
}

// Policy evaluates edge verdicts against a route table.
type Policy struct {
	table *routes.Table
}

// NewPolicy binds the policy to a route table.
func NewPolicy(table *routes.Table) *Policy {
	return &Policy{table: table}
}

// Table exposes the route table the policy classifies against.
func (p *Policy) Table() *routes.Table {
	return p.table
}

// Evaluate returns the verdict for in. Rules are checked in order and the first
// match wins.
func (p *Policy) Evaluate(in Input) Verdict {
	if p.table.IsAPI(in.Path) {
		return pass(ReasonAPI)
	}

	if p.table.IsPublic(in.Path) {
		switch {
		case in.Authenticated && in.OnboardingComplete:
			return redirect(TargetDashboard, ReasonPublicOnboarded)
		case in.Authenticated:
			return redirect(TargetOnboarding, ReasonPublicNotOnboarded)
		default:
			return pass(ReasonPublicAnonymous)
		}
	}

	onboardingPath := p.table.IsOnboarding(in.Path)
	switch {
	case !in.Authenticated:
		return redirect(TargetLogin, ReasonAnonymous)
	case !in.OnboardingComplete && !onboardingPath:
		return redirect(TargetOnboarding, ReasonOnboardingIncomplete)
	case in.OnboardingComplete && onboardingPath:
		return redirect(TargetDashboard, ReasonOnboardingAlreadyDone)
	default:
		return pass(ReasonAllowed)
	}
}
