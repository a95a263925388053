package auth

import (
	"net/url"

	"github.com/juju/clock"
)

// Outcome is the result class of an authorization decision.
type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeRedirectLogin
	OutcomeRedirectUnauthorized
	OutcomeRedirectLanding
	OutcomeReject
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeRedirectLogin:
		return "redirect_login"
	case OutcomeRedirectUnauthorized:
		return "redirect_unauthorized"
	case OutcomeRedirectLanding:
		return "redirect_landing"
	case OutcomeReject:
		return "reject"
	default:
		return "unknown"
	}
}

// GateRequest is what the gate needs to know about an incoming request.
type GateRequest struct {
	Path            string
	RawQuery        string
	AccessToken     string
	HasRefreshToken bool
}

// Decision is the gate verdict. Location is set for every redirect outcome.
type Decision struct {
	Outcome          Outcome
	Location         string
	ClearAccessToken bool
	Claims           *Claims
	Reason           string
}

// Gate evaluates the route policy for each request. It holds no per-request state.
type Gate struct {
	policy *RoutePolicy
	codec  *TokenCodec
	clock  clock.Clock
}

// NewGate builds a gate. A nil clock means wall time.
func NewGate(policy *RoutePolicy, codec *TokenCodec, clk clock.Clock) *Gate {
	if policy == nil {
		policy = DefaultRoutePolicy()
	}
	if codec == nil {
		codec = NewTokenCodec(policy.RoleTable)
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Gate{policy: policy, codec: codec, clock: clk}
}

// Policy exposes the route policy the gate evaluates.
func (g *Gate) Policy() *RoutePolicy {
	return g.policy
}

// Authorize maps every path and credential combination to exactly one outcome.
func (g *Gate) Authorize(req GateRequest) Decision {
	p := g.policy
	if req.Path == "" {
		req.Path = "/"
	}

	if p.IsStatic(req.Path) {
		return Decision{Outcome: OutcomeAllow, Reason: "static"}
	}
	if p.IsPublic(req.Path) {
		return Decision{Outcome: OutcomeAllow, Reason: "public"}
	}

	if req.AccessToken == "" {
		return g.unauthenticated(req, "missing_token", false)
	}

	claims, err := g.codec.Decode(req.AccessToken)
	switch {
	case err != nil && req.HasRefreshToken:
		return g.unauthenticated(req, "malformed_token", false)
	case err != nil:
		return g.unauthenticated(req, "malformed_token", true)
	case claims.Expired(g.clock.Now()):
		return g.unauthenticated(req, "expired_token", false)
	}

	if claims.Roles.Empty() {
		return Decision{
			Outcome:  OutcomeRedirectUnauthorized,
			Location: p.UnauthorizedPath,
			Claims:   claims,
			Reason:   "no_role",
		}
	}

	if !p.Permits(claims.Roles, req.Path) {
		if landing, ok := p.Landing(claims.Roles); ok {
			return Decision{
				Outcome:  OutcomeRedirectLanding,
				Location: landing,
				Claims:   claims,
				Reason:   "role_mismatch",
			}
		}
		return Decision{
			Outcome:  OutcomeRedirectUnauthorized,
			Location: p.UnauthorizedPath,
			Claims:   claims,
			Reason:   "role_mismatch",
		}
	}

	return Decision{Outcome: OutcomeAllow, Claims: claims, Reason: "ok"}
}

// unauthenticated sends pages to login with a return path and rejects API calls.
func (g *Gate) unauthenticated(req GateRequest, reason string, clearToken bool) Decision {
	if g.policy.IsAPI(req.Path) {
		return Decision{Outcome: OutcomeReject, ClearAccessToken: clearToken, Reason: reason}
	}
	return Decision{
		Outcome:          OutcomeRedirectLogin,
		Location:         g.LoginLocation(req.Path, req.RawQuery),
		ClearAccessToken: clearToken,
		Reason:           reason,
	}
}

// LoginLocation builds the login URL carrying the originally requested path and query.
func (g *Gate) LoginLocation(path, rawQuery string) string {
	target := path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return g.policy.LoginPath + "?" + url.Values{g.policy.ReturnParam: {target}}.Encode()
}
