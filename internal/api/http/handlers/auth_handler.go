package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-gateway/internal/api/dto"
	"github.com/spec-kit/marketplace-gateway/internal/auth"
	"github.com/spec-kit/marketplace-gateway/internal/credential"
	"github.com/spec-kit/marketplace-gateway/internal/domain"
	"github.com/spec-kit/marketplace-gateway/internal/session"
	apperrors "github.com/spec-kit/marketplace-gateway/pkg/util/errorutil"
)

// AuthHandler exposes the session endpoints under /auth.
type AuthHandler struct {
	sessions *session.Service
	stores   credential.Provider
	policy   *auth.RoutePolicy
	codec    *auth.TokenCodec
}

// NewAuthHandler constructs handler.
func NewAuthHandler(sessions *session.Service, stores credential.Provider, policy *auth.RoutePolicy, codec *auth.TokenCodec) *AuthHandler {
	if policy == nil {
		policy = auth.DefaultRoutePolicy()
	}
	if codec == nil {
		codec = auth.NewTokenCodec(policy.RoleTable)
	}
	return &AuthHandler{sessions: sessions, stores: stores, policy: policy, codec: codec}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}

	user, cred, err := h.sessions.Login(c.UserContext(), h.stores.For(c), req.Login(), req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.authResponse(c, user, cred)})
}

// SendOTP handles POST /auth/otp/send.
func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	var req dto.SendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if err := h.sessions.SendOTP(c.UserContext(), req.Phone); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"sent": true}})
}

// VerifyOTP handles POST /auth/otp/verify.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req dto.VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}

	user, cred, err := h.sessions.VerifyOTP(c.UserContext(), h.stores.For(c), req.Phone, req.OTP)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.authResponse(c, user, cred)})
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	if _, err := h.sessions.RefreshTokens(c.UserContext(), h.stores.For(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"refreshed": true}})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.sessions.Logout(c.UserContext(), h.stores.For(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) authResponse(c *fiber.Ctx, user *domain.Identity, cred *domain.Credential) dto.AuthResponse {
	resp := dto.AuthResponse{
		User:                  dto.NewUserResponse(user),
		AccessTokenExpiresAt:  cred.AccessTokenExpiry,
		RefreshTokenExpiresAt: cred.RefreshTokenExpiry,
	}

	claims, err := h.codec.Decode(cred.AccessToken)
	if err != nil {
		return resp
	}
	if target := c.Query(h.policy.ReturnParam); localPath(target) && h.policy.Permits(claims.Roles, pathOnly(target)) {
		resp.Redirect = target
		return resp
	}
	if landing, ok := h.policy.Landing(claims.Roles); ok {
		resp.Redirect = landing
	}
	return resp
}

// localPath accepts same-origin absolute paths only.
func localPath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.Contains(target, `\`)
}

func pathOnly(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		return target[:i]
	}
	return target
}
