package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowtrack/flowgate/pkg/identity"
)

func defaultPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewMemoryPolicy(DefaultGrants, DefaultInheritance)
	require.NoError(t, err)
	return p
}

func TestPermitsFollowsInheritance(t *testing.T) {
	p := defaultPolicy(t)
	ctx := context.Background()

	tests := []struct {
		role string
		page string
		want bool
	}{
		{"viewer", "/dashboard-home", true},
		{"owner", "/dashboard-home", true},
		{"viewer", "/leads/42", true},
		{"viewer", "/workflows/7", false},
		{"member", "/workflows/7", true},
		{"member", "/settings", false},
		{"admin", "/settings/team", true},
		{"owner", "/settings/team", true},
		{"admin", "/billing", false},
		{"owner", "/billing/invoices", true},
		{"", "/dashboard-home", false},
		{"guest", "/dashboard-home", false},
		{"owner", "/unknown-page", false},
	}

	for _, tt := range tests {
		t.Run(tt.role+tt.page, func(t *testing.T) {
			ok, err := p.Permits(ctx, tt.role, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestPermittedRoles(t *testing.T) {
	p := defaultPolicy(t)
	ctx := context.Background()

	roles, err := p.PermittedRoles(ctx, "/settings/team")
	require.NoError(t, err)
	assert.ElementsMatch(t, []identity.Role{identity.RoleOwner, identity.RoleAdmin}, roles)

	roles, err = p.PermittedRoles(ctx, "/dashboard-home")
	require.NoError(t, err)
	assert.ElementsMatch(t, identity.KnownRoles, roles)

	roles, err = p.PermittedRoles(ctx, "/nowhere")
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestGrantAndRevoke(t *testing.T) {
	p := defaultPolicy(t)
	ctx := context.Background()

	require.NoError(t, p.Grant("viewer", "/reports/*"))
	ok, err := p.Permits(ctx, "viewer", "/reports/weekly")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := p.Revoke("viewer", "/reports/*")
	require.NoError(t, err)
	assert.True(t, removed)

	ok, err = p.Permits(ctx, "viewer", "/reports/weekly")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err = p.Revoke("viewer", "/reports/*")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.ErrorIs(t, p.Grant("", "/x"), ErrInvalidRule)
	assert.ErrorIs(t, p.Inherit("owner", ""), ErrInvalidRule)
}

func TestCustomRoleIsListed(t *testing.T) {
	p := defaultPolicy(t)
	require.NoError(t, p.Inherit("auditor", "viewer"))

	roles, err := p.PermittedRoles(context.Background(), "/analytics/funnel")
	require.NoError(t, err)
	assert.Contains(t, roles, identity.Role("auditor"))
}

func TestForPage(t *testing.T) {
	p := defaultPolicy(t)
	policy := p.ForPage(context.Background(), "/workflows/1")

	assert.True(t, policy.Permits(identity.RoleMember))
	assert.True(t, policy.Permits(identity.RoleOwner))
	assert.False(t, policy.Permits(identity.RoleViewer))
}

func TestGrantsListing(t *testing.T) {
	p := defaultPolicy(t)

	all, err := p.Grants("")
	require.NoError(t, err)
	assert.Len(t, all, len(DefaultGrants))

	owner, err := p.Grants("owner")
	require.NoError(t, err)
	assert.ElementsMatch(t, []Grant{{Role: "owner", Page: "/billing"}, {Role: "owner", Page: "/billing/*"}}, owner)

	edges, err := p.Inheritance()
	require.NoError(t, err)
	assert.ElementsMatch(t, DefaultInheritance, edges)
}
