// Package access decides which dashboard roles may view which pages.
//
// Rules are casbin policies persisted in page_access_rules:
//
//	p, admin, /settings/*, view
//	g, owner, admin
//
// The second line makes owner inherit every page admin can view.
package access

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"slices"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/access/bunadapter"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/telemetry"
	"github.com/flowtrack/flowgate/pkg/guard"
	"github.com/flowtrack/flowgate/pkg/identity"
)

//go:embed model.conf
var modelContent string

// ActionView is the only action pages are gated on.
const ActionView = "view"

// ErrInvalidRule is returned for rules with an empty role or page.
var ErrInvalidRule = errors.New("access: role and page are required")

// Grant is one stored page rule.
type Grant struct {
	Role string `json:"role"`
	Page string `json:"page"`
}

// Inheritance is one stored role inheritance edge: Role inherits Parent.
type Inheritance struct {
	Role   string `json:"role"`
	Parent string `json:"parent"`
}

// Policy answers page access questions. Safe for concurrent use.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

// NewPolicy loads rules from db.
func NewPolicy(db *bun.DB) (*Policy, error) {
	return newPolicy(bunadapter.NewAdapter(db))
}

// NewMemoryPolicy returns a policy with no storage, seeded with rules.
func NewMemoryPolicy(grants []Grant, inheritance []Inheritance) (*Policy, error) {
	p, err := newPolicy(nil)
	if err != nil {
		return nil, err
	}
	for _, in := range inheritance {
		if err := p.Inherit(in.Role, in.Parent); err != nil {
			return nil, err
		}
	}
	for _, g := range grants {
		if err := p.Grant(g.Role, g.Page); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func newPolicy(adapter persist.Adapter) (*Policy, error) {
	m, err := model.NewModelFromString(modelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter != nil {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	if adapter != nil {
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, fmt.Errorf("load page access rules: %w", err)
		}
	}
	return &Policy{enforcer: enforcer}, nil
}

// Reload re-reads rules from storage.
func (p *Policy) Reload() error {
	return p.enforcer.LoadPolicy()
}

// Permits reports whether role may view page, following inheritance.
func (p *Policy) Permits(ctx context.Context, role, page string) (bool, error) {
	_, span := telemetry.StartSpan(ctx, telemetry.TracerAccess, "access.Permits",
		attribute.String(telemetry.AttrAccessPage, page),
		attribute.String(telemetry.AttrAccessRole, role),
	)
	defer span.End()

	if role == "" {
		return false, nil
	}
	ok, err := p.enforcer.Enforce(role, page, ActionView)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, fmt.Errorf("enforce %s on %s: %w", role, page, err)
	}
	return ok, nil
}

// PermittedRoles lists every known role that may view page, sorted.
func (p *Policy) PermittedRoles(ctx context.Context, page string) ([]identity.Role, error) {
	candidates, err := p.roles()
	if err != nil {
		return nil, err
	}

	var out []identity.Role
	for _, role := range candidates {
		ok, err := p.Permits(ctx, role, page)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, identity.Role(role))
		}
	}
	return out, nil
}

// ForPage returns a guard.RolePolicy for page. Enforcement errors deny.
func (p *Policy) ForPage(ctx context.Context, page string) guard.RolePolicy {
	return guard.RolePolicyFunc(func(role identity.Role) bool {
		ok, err := p.Permits(ctx, string(role), page)
		return err == nil && ok
	})
}

// roles is the union of the built-in roles and every subject named in storage.
func (p *Policy) roles() ([]string, error) {
	seen := make(map[string]struct{})
	for _, r := range identity.KnownRoles {
		seen[string(r)] = struct{}{}
	}

	subjects, err := p.enforcer.GetAllSubjects()
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	grouping, err := p.enforcer.GetGroupingPolicy()
	if err != nil {
		return nil, fmt.Errorf("list inheritance: %w", err)
	}
	for _, s := range subjects {
		seen[s] = struct{}{}
	}
	for _, g := range grouping {
		for _, s := range g {
			seen[s] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	slices.Sort(out)
	return out, nil
}

// Grant lets role view pages matching page. Patterns use casbin keyMatch:
// a trailing * matches anything after it.
func (p *Policy) Grant(role, page string) error {
	if role == "" || page == "" {
		return ErrInvalidRule
	}
	if _, err := p.enforcer.AddPolicy(role, page, ActionView); err != nil {
		return fmt.Errorf("grant %s on %s: %w", role, page, err)
	}
	return nil
}

// Revoke removes a rule added by Grant. It reports whether a rule existed.
func (p *Policy) Revoke(role, page string) (bool, error) {
	if role == "" || page == "" {
		return false, ErrInvalidRule
	}
	removed, err := p.enforcer.RemovePolicy(role, page, ActionView)
	if err != nil {
		return false, fmt.Errorf("revoke %s on %s: %w", role, page, err)
	}
	return removed, nil
}

// Inherit makes role inherit every page parent can view.
func (p *Policy) Inherit(role, parent string) error {
	if role == "" || parent == "" {
		return ErrInvalidRule
	}
	if _, err := p.enforcer.AddGroupingPolicy(role, parent); err != nil {
		return fmt.Errorf("inherit %s from %s: %w", role, parent, err)
	}
	return nil
}

// Grants lists stored page rules, optionally filtered by role.
func (p *Policy) Grants(role string) ([]Grant, error) {
	var (
		rules [][]string
		err   error
	)
	if role == "" {
		rules, err = p.enforcer.GetPolicy()
	} else {
		rules, err = p.enforcer.GetFilteredPolicy(0, role)
	}
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}

	out := make([]Grant, 0, len(rules))
	for _, r := range rules {
		if len(r) < 2 {
			continue
		}
		out = append(out, Grant{Role: r[0], Page: r[1]})
	}
	return out, nil
}

// Inheritance lists stored role inheritance edges.
func (p *Policy) Inheritance() ([]Inheritance, error) {
	rules, err := p.enforcer.GetGroupingPolicy()
	if err != nil {
		return nil, fmt.Errorf("list inheritance: %w", err)
	}
	out := make([]Inheritance, 0, len(rules))
	for _, r := range rules {
		if len(r) < 2 {
			continue
		}
		out = append(out, Inheritance{Role: r[0], Parent: r[1]})
	}
	return out, nil
}
