package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleSet_Ranked(t *testing.T) {
	set := NewRoleSet("support", RoleCustomer, "billing", RoleAdmin)

	assert.Equal(t, []Role{RoleAdmin, RoleCustomer, "billing", "support"}, set.Ranked())
	assert.Empty(t, RoleSet(nil).Ranked())
}
