package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-gateway/internal/api/dto"
	"github.com/spec-kit/marketplace-gateway/internal/auth"
	"github.com/spec-kit/marketplace-gateway/internal/credential"
	"github.com/spec-kit/marketplace-gateway/internal/onboarding"
	apperrors "github.com/spec-kit/marketplace-gateway/pkg/util/errorutil"
)

// OnboardingHandler routes professionals through onboarding.
type OnboardingHandler struct {
	source onboarding.SnapshotSource
	stores credential.Provider
	logger *zap.Logger
}

// NewOnboardingHandler constructs handler.
func NewOnboardingHandler(source onboarding.SnapshotSource, stores credential.Provider, logger *zap.Logger) *OnboardingHandler {
	return &OnboardingHandler{source: source, stores: stores, logger: logger}
}

// Status handles GET /api/professional/onboarding.
func (h *OnboardingHandler) Status(c *fiber.Ctx) error {
	step, err := h.current(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.OnboardingResponse{
		Step:     step.String(),
		Complete: step.Complete(),
		Route:    step.Route(),
	}})
}

// Dashboard handles GET /professional/dashboard, sending professionals with
// unfinished onboarding to their next step.
func (h *OnboardingHandler) Dashboard(c *fiber.Ctx) error {
	step, err := h.current(c)
	if err != nil {
		return err
	}
	if !step.Complete() {
		h.logger.Debug("onboarding incomplete", zap.String("step", step.String()))
		return c.Redirect(step.Route(), http.StatusFound)
	}
	return c.JSON(fiber.Map{"data": dto.OnboardingResponse{
		Step:     step.String(),
		Complete: true,
		Route:    step.Route(),
	}})
}

func (h *OnboardingHandler) current(c *fiber.Ctx) (onboarding.Step, error) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok || claims.Subject == "" {
		return onboarding.StepBusinessProfile, apperrors.NewUnauthorized("authentication required")
	}
	ctx := c.UserContext()
	access := credential.Lookup(ctx, h.stores.For(c), credential.AccessTokenKey)
	return onboarding.Current(ctx, h.source, access, claims.Subject)
}
