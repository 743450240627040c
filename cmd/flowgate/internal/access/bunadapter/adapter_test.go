package bunadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRuleRule(t *testing.T) {
	p := NewPageRule("p", []string{"admin", "/settings/*", "view"})
	assert.Equal(t, []string{"admin", "/settings/*", "view"}, p.Rule())
	assert.Equal(t, "p, admin, /settings/*, view", p.String())

	g := NewPageRule("g", []string{"owner", "admin"})
	assert.Equal(t, []string{"owner", "admin"}, g.Rule())
	assert.Equal(t, "g, owner, admin", g.String())

	empty := NewPageRule("p", nil)
	assert.Empty(t, empty.Rule())
}

func TestNewPageRuleIgnoresExtraFields(t *testing.T) {
	r := NewPageRule("p", []string{"a", "b", "c", "d"})
	assert.Equal(t, "c", r.V2)
	assert.Equal(t, []string{"a", "b", "c"}, r.Rule())
}
