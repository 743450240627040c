// Package identity holds the client-side Current User: the /me fetch, its
// retry policy, and the Store that caches the result for role guards.
package identity

import "slices"

// Role is the dashboard role of the Current User.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// KnownRoles lists the roles the dashboard ships with, most privileged first.
var KnownRoles = []Role{RoleOwner, RoleAdmin, RoleMember, RoleViewer}

// Valid reports whether r is one of KnownRoles.
func (r Role) Valid() bool {
	return slices.Contains(KnownRoles, r)
}

// Workspace is a workspace the user belongs to.
type Workspace struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
	Slug string `json:"slug,omitempty" mapstructure:"slug"`
}

// User is the Current User as returned by the /me endpoint.
type User struct {
	ID         string      `json:"id" mapstructure:"id"`
	Email      string      `json:"email" mapstructure:"email"`
	Name       string      `json:"name" mapstructure:"name"`
	Role       Role        `json:"role" mapstructure:"role"`
	Workspaces []Workspace `json:"workspaces" mapstructure:"workspaces"`
}

// clone returns a deep copy so cached users cannot be mutated by callers.
func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Workspaces = slices.Clone(u.Workspaces)
	return &c
}
