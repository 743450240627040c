package guard

import (
	"slices"
	"strings"

	"github.com/flowtrack/flowgate/pkg/identity"
)

// RolePolicy decides whether a role may view the guarded page.
type RolePolicy interface {
	Permits(role identity.Role) bool
}

// RolePolicyFunc adapts a function to RolePolicy.
type RolePolicyFunc func(role identity.Role) bool

func (f RolePolicyFunc) Permits(role identity.Role) bool { return f(role) }

// RoleSet is a static permitted-role set. The empty set permits nobody.
type RoleSet []identity.Role

// Roles builds a RoleSet.
func Roles(roles ...identity.Role) RoleSet {
	return RoleSet(roles)
}

// ParseRoles builds a RoleSet from a comma-separated list such as "owner,admin".
func ParseRoles(list string) RoleSet {
	var set RoleSet
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			set = append(set, identity.Role(part))
		}
	}
	return set
}

func (s RoleSet) Permits(role identity.Role) bool {
	return role != "" && slices.Contains(s, role)
}

func (s RoleSet) String() string {
	parts := make([]string, len(s))
	for i, r := range s {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}
