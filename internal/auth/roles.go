package auth

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-gateway/internal/domain"
)

// RoleTable maps numeric role ids issued by the identity backend to role names.
// It is configuration data; bump Version when the mapping changes.
type RoleTable struct {
	Version string              `yaml:"version"`
	ByID    map[int]domain.Role `yaml:"ids"`
}

// DefaultRoleTable returns the built-in mapping.
func DefaultRoleTable() *RoleTable {
	return &RoleTable{
		Version: "2024-01",
		ByID: map[int]domain.Role{
			10: domain.RoleProfessional,
		},
	}
}

// Normalize turns the raw role claim into a RoleSet. The claim may be a
// string array, a comma-joined string or a numeric id. Numeric ids (JSON
// numbers or integer strings) are looked up in the table; unknown ids add
// nothing. Other strings are trimmed and lower-cased.
func (t *RoleTable) Normalize(claim any) domain.RoleSet {
	set := domain.NewRoleSet()
	switch v := claim.(type) {
	case nil:
	case []any:
		for _, item := range v {
			t.addScalar(set, item)
		}
	case []string:
		for _, item := range v {
			t.addString(set, item)
		}
	default:
		t.addScalar(set, v)
	}
	return set
}

func (t *RoleTable) addScalar(set domain.RoleSet, v any) {
	switch val := v.(type) {
	case string:
		for _, part := range strings.Split(val, ",") {
			t.addString(set, part)
		}
	case float64:
		t.addID(set, val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			t.addID(set, f)
		}
	case int:
		t.addID(set, float64(val))
	case int64:
		t.addID(set, float64(val))
	}
}

func (t *RoleTable) addString(set domain.RoleSet, s string) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return
	}
	if id, err := strconv.Atoi(s); err == nil {
		t.addID(set, float64(id))
		return
	}
	set[domain.Role(s)] = struct{}{}
}

func (t *RoleTable) addID(set domain.RoleSet, f float64) {
	if f != math.Trunc(f) {
		return
	}
	if role, ok := t.ByID[int(f)]; ok {
		set[role] = struct{}{}
	}
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	}
	return ""
}

// RequireRole ensures the gated caller holds at least one of the allowed roles.
// It must run after GateMiddleware.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		for _, role := range allowed {
			if claims.Roles.Has(role) {
				return c.Next()
			}
		}
		return fiber.NewError(http.StatusForbidden, "insufficient role")
	}
}
