package auth

import (
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/marketplace-gateway/internal/domain"
	apperrors "github.com/spec-kit/marketplace-gateway/pkg/util/errorutil"
)

// ErrMalformedToken is returned for any token whose payload cannot be read.
var ErrMalformedToken = apperrors.NewDomainError(apperrors.CodeMalformedToken, "malformed token", http.StatusUnauthorized, nil)

var subjectClaimKeys = []string{"sub", "id", "user_id", "userId"}

// Claims is the decoded payload of an access token.
type Claims struct {
	Subject   string
	Roles     domain.RoleSet
	ExpiresAt time.Time
	IssuedAt  time.Time
	Raw       jwt.MapClaims
}

// Expired reports whether the token is past its exp claim. A token without
// exp counts as expired.
func (c *Claims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return true
	}
	return !c.ExpiresAt.After(now)
}

// ExpiresWithin reports whether exp falls at or before now+window.
func (c *Claims) ExpiresWithin(now time.Time, window time.Duration) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return true
	}
	return !c.ExpiresAt.After(now.Add(window))
}

// TokenCodec reads access-token claims without verifying the signature.
// Issuers verify their own tokens; the gateway uses claims for routing only.
type TokenCodec struct {
	parser *jwt.Parser
	roles  *RoleTable
}

// NewTokenCodec builds a codec. A nil table uses DefaultRoleTable.
func NewTokenCodec(roles *RoleTable) *TokenCodec {
	if roles == nil {
		roles = DefaultRoleTable()
	}
	return &TokenCodec{parser: jwt.NewParser(), roles: roles}
}

// Decode parses the payload segment of raw. It never panics; every failure
// is ErrMalformedToken.
func (tc *TokenCodec) Decode(raw string) (claims *Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = nil, ErrMalformedToken
		}
	}()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformedToken
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := tc.parser.ParseUnverified(raw, mapClaims); err != nil {
		return nil, ErrMalformedToken
	}

	claims = &Claims{
		Subject: subjectOf(mapClaims),
		Roles:   tc.roles.Normalize(roleClaim(mapClaims)),
		Raw:     mapClaims,
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	return claims, nil
}

func subjectOf(claims jwt.MapClaims) string {
	for _, key := range subjectClaimKeys {
		if v, ok := claims[key]; ok {
			if s := scalarString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func roleClaim(claims jwt.MapClaims) any {
	if v, ok := claims["roles"]; ok && v != nil {
		return v
	}
	if v, ok := claims["role"]; ok && v != nil {
		return v
	}
	return claims["role_id"]
}
