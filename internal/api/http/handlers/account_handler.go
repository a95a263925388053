package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-gateway/internal/api/dto"
	"github.com/spec-kit/marketplace-gateway/internal/credential"
	"github.com/spec-kit/marketplace-gateway/internal/session"
)

const refreshedKey = "session_refreshed"

// AccountHandler serves the caller's own profile and session status.
type AccountHandler struct {
	sessions  *session.Service
	stores    credential.Provider
	threshold time.Duration
}

// NewAccountHandler constructs handler. threshold drives the lazy refresh.
func NewAccountHandler(sessions *session.Service, stores credential.Provider, threshold time.Duration) *AccountHandler {
	return &AccountHandler{sessions: sessions, stores: stores, threshold: threshold}
}

// KeepFresh refreshes the session before the handler runs when the access
// token is within the refresh threshold.
func (h *AccountHandler) KeepFresh(c *fiber.Ctx) error {
	if h.threshold <= 0 {
		return c.Next()
	}
	refreshed, err := h.sessions.EnsureFresh(c.UserContext(), h.stores.For(c), h.threshold)
	if err != nil {
		return err
	}
	if refreshed {
		c.Locals(refreshedKey, true)
		c.Set("X-Session-Refreshed", strconv.FormatBool(true))
	}
	return c.Next()
}

// Me handles GET /api/me.
func (h *AccountHandler) Me(c *fiber.Ctx) error {
	user, err := h.sessions.CurrentUser(c.UserContext(), h.stores.For(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Session handles GET /auth/session. It never fails; anonymous callers get
// authenticated=false.
func (h *AccountHandler) Session(c *fiber.Ctx) error {
	ctx := c.UserContext()
	store := h.stores.For(c)

	resp := dto.SessionStatusResponse{
		Authenticated: h.sessions.IsAuthenticated(ctx, store),
		ExpiringSoon:  h.sessions.IsTokenExpiringSoon(ctx, store, h.threshold),
	}
	resp.Refreshed, _ = c.Locals(refreshedKey).(bool)
	if resp.Authenticated {
		if claims, ok := h.sessions.Claims(ctx, store); ok {
			resp.Subject = claims.Subject
			resp.Roles = claims.Roles.Names()
		}
	}
	return c.JSON(fiber.Map{"data": resp})
}
