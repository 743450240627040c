package gate

import "fmt"

// Kind is the outcome class of an edge evaluation.
type Kind int

const (
	KindPass Kind = iota
	KindRedirect
)

// Verdict is the single outcome of evaluating one request at the edge.
// The zero value is pass-through.
type Verdict struct {
	Kind   Kind
	Target Target
	Reason Reason
}

// Reason names the rule that produced a verdict.
type Reason string

const (
	ReasonAPI                   Reason = "api_prefix"
	ReasonPublicAnonymous       Reason = "public_anonymous"
	ReasonPublicOnboarded       Reason = "public_authenticated_onboarded"
	ReasonPublicNotOnboarded    Reason = "public_authenticated_not_onboarded"
	ReasonAnonymous             Reason = "anonymous"
	ReasonOnboardingIncomplete  Reason = "onboarding_incomplete"
	ReasonOnboardingAlreadyDone Reason = "onboarding_complete"
	ReasonAllowed               Reason = "allowed"
)

func pass(reason Reason) Verdict {
	return Verdict{Kind: KindPass, Reason: reason}
}

func redirect(target Target, reason Reason) Verdict {
	return Verdict{Kind: KindRedirect, Target: target, Reason: reason}
}

// IsPass reports whether the verdict lets the request through.
func (v Verdict) IsPass() bool {
	return v.Kind == KindPass
}

// Name is the short wire name used in logs, metrics and the verdict endpoint.
func (v Verdict) Name() string {
	if v.IsPass() {
		return "pass"
	}
	return "redirect_" + v.Target.String()
}

func (v Verdict) String() string {
	return fmt.Sprintf("%s (%s)", v.Name(), v.Reason)
}
