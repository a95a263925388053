package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-gateway/internal/credential"
	"github.com/spec-kit/marketplace-gateway/internal/observability"
	apperrors "github.com/spec-kit/marketplace-gateway/pkg/util/errorutil"
)

const claimsKey = "auth_claims"

// GateMiddleware applies Gate decisions to fiber requests.
type GateMiddleware struct {
	gate    *Gate
	stores  credential.Provider
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewGateMiddleware constructs middleware.
func NewGateMiddleware(gate *Gate, stores credential.Provider, metrics *observability.Metrics, logger *zap.Logger) *GateMiddleware {
	return &GateMiddleware{gate: gate, stores: stores, metrics: metrics, logger: logger}
}

// Handle enforces the route policy for every request.
func (m *GateMiddleware) Handle(c *fiber.Ctx) error {
	ctx := c.UserContext()
	req := GateRequest{
		Path:     c.Path(),
		RawQuery: string(c.Request().URI().QueryString()),
	}

	policy := m.gate.Policy()
	if !policy.IsStatic(req.Path) && !policy.IsPublic(req.Path) {
		store := m.stores.For(c)
		req.AccessToken = credential.Lookup(ctx, store, credential.AccessTokenKey)
		req.HasRefreshToken = credential.Lookup(ctx, store, credential.RefreshTokenKey) != ""
	}

	decision := m.gate.Authorize(req)
	m.metrics.RecordGateDecision(decision.Outcome.String(), decision.Reason)

	if decision.ClearAccessToken {
		if err := m.stores.For(c).Clear(ctx, credential.AccessTokenKey); err != nil {
			m.logger.Warn("clear invalid access token", zap.Error(err))
		}
	}

	switch decision.Outcome {
	case OutcomeAllow:
		if decision.Claims != nil {
			c.Locals(claimsKey, decision.Claims)
		}
		setHardeningHeaders(c)
		return c.Next()
	case OutcomeReject:
		m.logger.Debug("request rejected", zap.String("path", req.Path), zap.String("reason", decision.Reason))
		return apperrors.NewUnauthorized("authentication required")
	default:
		m.logger.Debug("request redirected",
			zap.String("path", req.Path),
			zap.String("outcome", decision.Outcome.String()),
			zap.String("reason", decision.Reason),
			zap.String("location", decision.Location))
		return c.Redirect(decision.Location, http.StatusFound)
	}
}

// ClaimsFromContext retrieves the claims of an allowed, authenticated request.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

func setHardeningHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderXFrameOptions, "DENY")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderReferrerPolicy, "strict-origin-when-cross-origin")
}
