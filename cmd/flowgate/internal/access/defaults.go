package access

// DefaultInheritance chains the dashboard roles: each inherits the next.
var DefaultInheritance = []Inheritance{
	{Role: "owner", Parent: "admin"},
	{Role: "admin", Parent: "member"},
	{Role: "member", Parent: "viewer"},
}

// DefaultGrants is the least privileged role for each dashboard section.
var DefaultGrants = []Grant{
	{Role: "viewer", Page: "/dashboard-home"},
	{Role: "viewer", Page: "/leads"},
	{Role: "viewer", Page: "/leads/*"},
	{Role: "viewer", Page: "/analytics"},
	{Role: "viewer", Page: "/analytics/*"},
	{Role: "member", Page: "/workflows"},
	{Role: "member", Page: "/workflows/*"},
	{Role: "member", Page: "/forms/*"},
	{Role: "admin", Page: "/settings"},
	{Role: "admin", Page: "/settings/*"},
	{Role: "admin", Page: "/integrations/*"},
	{Role: "owner", Page: "/billing"},
	{Role: "owner", Page: "/billing/*"},
}
