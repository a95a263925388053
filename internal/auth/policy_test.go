package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-gateway/internal/domain"
)

func TestDefaultRoutePolicy_IsValid(t *testing.T) {
	require.NoError(t, DefaultRoutePolicy().Validate())
}

func TestRoutePolicy_Matching(t *testing.T) {
	p := DefaultRoutePolicy()

	assert.True(t, p.IsStatic("/_next/static/chunk.js"))
	assert.True(t, p.IsStatic("/favicon.ico"))
	assert.True(t, p.IsStatic("/logo.svg"))
	assert.True(t, p.IsStatic("/home-services/hero.webp"))
	assert.False(t, p.IsStatic("/admin/reports"))
	assert.False(t, p.IsStatic("/admin/export.csv"), "extensions do not open role areas")
	assert.False(t, p.IsStatic("/api/me.json"))
	assert.False(t, p.IsStatic("/home-services/customer/invoice.pdf"))
	assert.False(t, p.IsStatic("/Admin/Export.csv"))

	assert.True(t, p.IsPublic("/"))
	assert.True(t, p.IsPublic("/auth/login"))
	assert.True(t, p.IsPublic("/home-services/plumbing"))
	assert.False(t, p.IsPublic("/home-services/customer"))
	assert.False(t, p.IsPublic("/home-services/customer/dashboard"))
	assert.False(t, p.IsPublic("/admin"))
	assert.False(t, p.IsPublic("/authority"), "prefix match is segment aware")
	assert.False(t, p.IsPublic("/home-services/Customer/dashboard"))
	assert.False(t, p.IsPublic("/HOME-SERVICES/CUSTOMER"))
	assert.True(t, p.IsPublic("/Auth/Login"))

	assert.True(t, p.IsAPI("/api/me"))
	assert.False(t, p.IsAPI("/apiary"))

	assert.True(t, p.Permits(domain.NewRoleSet(domain.RoleCustomer), "/home-services/customer/orders"))
	assert.False(t, p.Permits(domain.NewRoleSet(domain.RoleCustomer), "/professional/dashboard"))
	assert.True(t, p.Permits(domain.NewRoleSet(domain.RoleProfessional), "/api/me"))
	assert.True(t, p.Permits(domain.NewRoleSet(domain.RoleCustomer), "/Home-Services/Customer/orders"))
	assert.False(t, p.Permits(domain.NewRoleSet(domain.RoleCustomer), "/Professional/dashboard"))
	assert.True(t, p.IsAPI("/API/me"))
}

func TestRoutePolicy_LandingUsesPriority(t *testing.T) {
	p := DefaultRoutePolicy()

	landing, ok := p.Landing(domain.NewRoleSet(domain.RoleCustomer, domain.RoleProfessional))
	require.True(t, ok)
	assert.Equal(t, "/professional/dashboard", landing)

	_, ok = p.Landing(domain.NewRoleSet("support"))
	assert.False(t, ok)
}

func TestLoadRoutePolicy(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
roles:
  admin:
    prefixes: [/admin, /api]
    landing: /admin/home
  support:
    prefixes: [/support]
    landing: /support
return_param: next
role_table:
  version: "2025-02"
  ids:
    10: professional
    20: support
`), 0o600))

	p, err := LoadRoutePolicy(file)
	require.NoError(t, err)

	assert.Equal(t, "next", p.ReturnParam)
	assert.Equal(t, "/auth/login", p.LoginPath, "unset fields keep defaults")
	assert.Equal(t, "2025-02", p.RoleTable.Version)
	assert.Equal(t, []string{"support"}, p.RoleTable.Normalize(float64(20)).Names())

	landing, ok := p.Landing(domain.NewRoleSet("support"))
	require.True(t, ok)
	assert.Equal(t, "/support", landing)
}

func TestLoadRoutePolicy_RejectsUnreachableLanding(t *testing.T) {
	file := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
roles:
  customer:
    prefixes: [/shop]
    landing: /elsewhere
`), 0o600))

	_, err := LoadRoutePolicy(file)
	require.Error(t, err)
}

func TestLoadRoutePolicy_EmptyPathIsDefault(t *testing.T) {
	p, err := LoadRoutePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRoutePolicy(), p)
}
