package auth

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/marketplace-gateway/internal/domain"
)

// RoleRoutes lists the path prefixes a role may access and where it lands by default.
type RoleRoutes struct {
	Prefixes []string `yaml:"prefixes"`
	Landing  string   `yaml:"landing"`
}

// RoutePolicy is the process-wide role to route table. It is read once at
// startup and never mutated afterwards.
type RoutePolicy struct {
	Roles            map[domain.Role]RoleRoutes `yaml:"roles"`
	PublicPrefixes   []string                   `yaml:"public_prefixes"`
	PublicExceptions []string                   `yaml:"public_exceptions"`
	StaticPrefixes   []string                   `yaml:"static_prefixes"`
	APIPrefix        string                     `yaml:"api_prefix"`
	LoginPath        string                     `yaml:"login_path"`
	UnauthorizedPath string                     `yaml:"unauthorized_path"`
	ReturnParam      string                     `yaml:"return_param"`
	RoleTable        *RoleTable                 `yaml:"role_table"`
}

// DefaultRoutePolicy is the built-in marketplace policy.
func DefaultRoutePolicy() *RoutePolicy {
	return &RoutePolicy{
		Roles: map[domain.Role]RoleRoutes{
			domain.RoleAdmin: {
				Prefixes: []string{"/admin", "/api"},
				Landing:  "/admin/dashboard",
			},
			domain.RoleProfessional: {
				Prefixes: []string{"/professional", "/api"},
				Landing:  "/professional/dashboard",
			},
			domain.RoleCustomer: {
				Prefixes: []string{"/home-services/customer", "/api"},
				Landing:  "/home-services/customer/dashboard",
			},
		},
		PublicPrefixes: []string{
			"/", "/auth", "/home-services", "/about", "/contact", "/services",
			"/unauthorized", "/health", "/metrics",
		},
		PublicExceptions: []string{"/home-services/customer"},
		StaticPrefixes:   []string{"/_next", "/static", "/images", "/favicon.ico"},
		APIPrefix:        "/api",
		LoginPath:        "/auth/login",
		UnauthorizedPath: "/unauthorized",
		ReturnParam:      "redirect",
		RoleTable:        DefaultRoleTable(),
	}
}

// LoadRoutePolicy reads a YAML policy. Fields left empty in the file keep their defaults.
func LoadRoutePolicy(file string) (*RoutePolicy, error) {
	policy := DefaultRoutePolicy()
	if file == "" {
		return policy, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read route policy: %w", err)
	}

	var loaded RoutePolicy
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse route policy: %w", err)
	}
	if len(loaded.Roles) > 0 {
		policy.Roles = loaded.Roles
	}
	if len(loaded.PublicPrefixes) > 0 {
		policy.PublicPrefixes = loaded.PublicPrefixes
	}
	if loaded.PublicExceptions != nil {
		policy.PublicExceptions = loaded.PublicExceptions
	}
	if len(loaded.StaticPrefixes) > 0 {
		policy.StaticPrefixes = loaded.StaticPrefixes
	}
	if loaded.APIPrefix != "" {
		policy.APIPrefix = loaded.APIPrefix
	}
	if loaded.LoginPath != "" {
		policy.LoginPath = loaded.LoginPath
	}
	if loaded.UnauthorizedPath != "" {
		policy.UnauthorizedPath = loaded.UnauthorizedPath
	}
	if loaded.ReturnParam != "" {
		policy.ReturnParam = loaded.ReturnParam
	}
	if loaded.RoleTable != nil && len(loaded.RoleTable.ByID) > 0 {
		policy.RoleTable = loaded.RoleTable
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// Validate rejects policies that would redirect in a loop.
func (p *RoutePolicy) Validate() error {
	if !p.IsPublic(p.LoginPath) {
		return fmt.Errorf("route policy: login path %q must be public", p.LoginPath)
	}
	if !p.IsPublic(p.UnauthorizedPath) {
		return fmt.Errorf("route policy: unauthorized path %q must be public", p.UnauthorizedPath)
	}
	for role, routes := range p.Roles {
		if routes.Landing == "" {
			return fmt.Errorf("route policy: role %q has no landing path", role)
		}
		if !p.Permits(domain.NewRoleSet(role), routes.Landing) {
			return fmt.Errorf("route policy: landing %q is outside role %q prefixes", routes.Landing, role)
		}
	}
	return nil
}

// IsStatic reports asset paths that bypass the gate. A file extension alone
// marks an asset only outside the API, role areas and public exceptions.
func (p *RoutePolicy) IsStatic(urlPath string) bool {
	for _, prefix := range p.StaticPrefixes {
		if hasPathPrefix(urlPath, prefix) {
			return true
		}
	}
	last := urlPath[strings.LastIndex(urlPath, "/")+1:]
	return path.Ext(last) != "" && !p.isProtected(urlPath)
}

func (p *RoutePolicy) isProtected(urlPath string) bool {
	if p.IsAPI(urlPath) {
		return true
	}
	for _, exception := range p.PublicExceptions {
		if hasPathPrefix(urlPath, exception) {
			return true
		}
	}
	for _, routes := range p.Roles {
		for _, prefix := range routes.Prefixes {
			if hasPathPrefix(urlPath, prefix) {
				return true
			}
		}
	}
	return false
}

// IsPublic reports whether urlPath is under a public prefix and not under an exception.
func (p *RoutePolicy) IsPublic(urlPath string) bool {
	for _, exception := range p.PublicExceptions {
		if hasPathPrefix(urlPath, exception) {
			return false
		}
	}
	for _, prefix := range p.PublicPrefixes {
		if hasPathPrefix(urlPath, prefix) {
			return true
		}
	}
	return false
}

// IsAPI reports JSON endpoints that get 401 instead of a login redirect.
func (p *RoutePolicy) IsAPI(urlPath string) bool {
	return p.APIPrefix != "" && hasPathPrefix(urlPath, p.APIPrefix)
}

// Permits reports whether any role in roles may access urlPath.
func (p *RoutePolicy) Permits(roles domain.RoleSet, urlPath string) bool {
	for role := range roles {
		for _, prefix := range p.Roles[role].Prefixes {
			if hasPathPrefix(urlPath, prefix) {
				return true
			}
		}
	}
	return false
}

// Landing returns the default path of the highest-ranked role in roles that
// has one. See domain.RoleSet.Ranked.
func (p *RoutePolicy) Landing(roles domain.RoleSet) (string, bool) {
	for _, role := range roles.Ranked() {
		if routes, ok := p.Roles[role]; ok && routes.Landing != "" {
			return routes.Landing, true
		}
	}
	return "", false
}

// hasPathPrefix matches whole path segments, ignoring case the way fiber's
// default router does. "/" only matches the root itself.
func hasPathPrefix(urlPath, prefix string) bool {
	if prefix == "" {
		return false
	}
	urlPath = strings.ToLower(urlPath)
	prefix = strings.ToLower(prefix)
	if prefix == "/" {
		return urlPath == "/"
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/")
}
