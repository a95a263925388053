package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-gateway/internal/domain"
)

func TestRoleTable_Normalize(t *testing.T) {
	table := DefaultRoleTable()

	cases := []struct {
		name  string
		claim any
		want  []string
	}{
		{"nil", nil, []string{}},
		{"numeric professional", float64(10), []string{"professional"}},
		{"json number", json.Number("10"), []string{"professional"}},
		{"int", 10, []string{"professional"}},
		{"numeric string", "10", []string{"professional"}},
		{"unknown numeric", float64(3), []string{}},
		{"fractional numeric", 10.5, []string{}},
		{"single string", "Admin", []string{"admin"}},
		{"comma string", "customer, professional ,", []string{"customer", "professional"}},
		{"string array", []string{"ADMIN", " customer "}, []string{"admin", "customer"}},
		{"mixed array", []any{"customer", float64(10), float64(99), true}, []string{"customer", "professional"}},
		{"unsupported", map[string]any{"role": "admin"}, []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, table.Normalize(tc.claim).Names())
		})
	}
}

func TestRoleTable_OnlyTenTranslates(t *testing.T) {
	table := DefaultRoleTable()
	for id := -5; id <= 200; id++ {
		set := table.Normalize(float64(id))
		if id == 10 {
			assert.Equal(t, []string{"professional"}, set.Names())
			continue
		}
		assert.True(t, set.Empty(), "id %d", id)
	}
}

func TestRequireRole(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		switch c.Get("X-Test-Role") {
		case "":
		default:
			c.Locals(claimsKey, &Claims{Roles: domain.NewRoleSet(domain.Role(c.Get("X-Test-Role")))})
		}
		return c.Next()
	})
	app.Get("/pro", RequireRole(domain.RoleProfessional), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	cases := map[string]int{
		"":             http.StatusUnauthorized,
		"customer":     http.StatusForbidden,
		"professional": http.StatusNoContent,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/pro", nil)
		if role != "" {
			req.Header.Set("X-Test-Role", role)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, "role %q", role)
	}
}
