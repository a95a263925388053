package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-gateway/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-gateway/internal/auth"
	"github.com/spec-kit/marketplace-gateway/internal/credential"
	"github.com/spec-kit/marketplace-gateway/internal/domain"
	"github.com/spec-kit/marketplace-gateway/internal/identity"
	"github.com/spec-kit/marketplace-gateway/internal/observability"
	"github.com/spec-kit/marketplace-gateway/internal/onboarding"
	"github.com/spec-kit/marketplace-gateway/internal/session"
	apperrors "github.com/spec-kit/marketplace-gateway/pkg/util/errorutil"
)

type stubIdentity struct {
	loginResult  *identity.AuthResult
	loginErr     error
	refreshPair  *domain.TokenPair
	user         *domain.Identity
	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
}

func (s *stubIdentity) Login(context.Context, string, string) (*identity.AuthResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubIdentity) SendOTP(context.Context, string) error { return nil }

func (s *stubIdentity) VerifyOTP(context.Context, string, string) (*identity.AuthResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubIdentity) Refresh(context.Context, string) (*domain.TokenPair, error) {
	s.refreshCalls.Add(1)
	if s.refreshPair == nil {
		return nil, apperrors.NewInvalidCredentials("Session expired. Please log in again.")
	}
	return s.refreshPair, nil
}

func (s *stubIdentity) Logout(context.Context, string) error {
	s.logoutCalls.Add(1)
	return nil
}

func (s *stubIdentity) GetUser(_ context.Context, _, id string) (*domain.Identity, error) {
	if s.user == nil {
		return nil, apperrors.NewNotFound("User not found.")
	}
	return s.user, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type fixture struct {
	app      *fiber.App
	identity *stubIdentity
	snapshot *domain.OnboardingSnapshot
	lookups  []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{identity: &stubIdentity{}, snapshot: &domain.OnboardingSnapshot{}}

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	policy := auth.DefaultRoutePolicy()
	codec := auth.NewTokenCodec(policy.RoleTable)
	stores := credential.NewCookieProvider(credential.CookieOptions{HTTPOnly: true}, nil)
	sessions := session.NewService(session.Dependencies{
		API:     f.identity,
		Codec:   codec,
		Logger:  logger,
		Metrics: metrics,
	})
	source := onboarding.SourceFunc(func(_ context.Context, accessToken, userID string) (*domain.OnboardingSnapshot, error) {
		f.lookups = append(f.lookups, userID)
		if accessToken == "" {
			return nil, errors.New("no token forwarded")
		}
		return f.snapshot, nil
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:     handlers.NewHealthHandler("gateway", "test", map[string]handlers.Pinger{"redis": failingPinger{}}),
		Auth:       handlers.NewAuthHandler(sessions, stores, policy, codec),
		Account:    handlers.NewAccountHandler(sessions, stores, 5*time.Minute),
		Onboarding: handlers.NewOnboardingHandler(source, stores, logger),
		Gate:       auth.NewGateMiddleware(auth.NewGate(policy, codec, nil), stores, metrics, logger),
		Metrics:    metrics.Handler(),
	})
	f.app = app
	return f
}

func token(t *testing.T, sub, role string, ttl time.Duration) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
	}).SignedString([]byte("upstream-secret"))
	require.NoError(t, err)
	return raw
}

func (f *fixture) do(t *testing.T, method, target, body string, cookies map[string]string) *stdhttp.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for name, value := range cookies {
		req.AddCookie(&stdhttp.Cookie{Name: name, Value: value})
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *stdhttp.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func errorCode(t *testing.T, resp *stdhttp.Response) string {
	t.Helper()
	body := decode(t, resp)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %v", body)
	return errBody["code"].(string)
}

func cookiesByName(resp *stdhttp.Response) map[string]*stdhttp.Cookie {
	out := map[string]*stdhttp.Cookie{}
	for _, ck := range resp.Cookies() {
		out[ck.Name] = ck
	}
	return out
}

func (f *fixture) professionalLogin(t *testing.T) {
	f.identity.loginResult = &identity.AuthResult{
		Tokens:   domain.TokenPair{AccessToken: token(t, "7", "professional", time.Hour), RefreshToken: "refresh-1"},
		Identity: &domain.Identity{ID: "7", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: "professional"},
	}
}

func TestLogin_EstablishesSessionAndLandsByRole(t *testing.T) {
	f := newFixture(t)
	f.professionalLogin(t)

	resp := f.do(t, fiber.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"pw"}`, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	cookies := cookiesByName(resp)
	require.Contains(t, cookies, credential.AccessTokenKey)
	require.Contains(t, cookies, credential.RefreshTokenKey)
	require.Contains(t, cookies, credential.IdentityKey)
	assert.True(t, cookies[credential.AccessTokenKey].HttpOnly)

	data := decode(t, resp)["data"].(map[string]any)
	assert.Equal(t, "/professional/dashboard", data["redirect"])
	user := data["user"].(map[string]any)
	assert.Equal(t, "7", user["id"])
	assert.Equal(t, "Ada Lovelace", user["name"])
	assert.NotContains(t, data, "access_token")
}

func TestLogin_HonorsPermittedReturnPath(t *testing.T) {
	f := newFixture(t)
	f.professionalLogin(t)

	resp := f.do(t, fiber.MethodPost, "/auth/login?redirect=%2Fprofessional%2Fsettings%3Ftab%3D2", `{"identifier":"ada@example.com","password":"pw"}`, nil)
	data := decode(t, resp)["data"].(map[string]any)
	assert.Equal(t, "/professional/settings?tab=2", data["redirect"])

	for _, target := range []string{"%2F%2Fevil.example", "https%3A%2F%2Fevil.example", "%2Fadmin%2Fusers"} {
		resp = f.do(t, fiber.MethodPost, "/auth/login?redirect="+target, `{"identifier":"ada@example.com","password":"pw"}`, nil)
		data = decode(t, resp)["data"].(map[string]any)
		assert.Equal(t, "/professional/dashboard", data["redirect"], target)
	}
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, fiber.MethodPost, "/auth/login", `{"email":"","password":""}`, nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, apperrors.CodeValidationFailed, errorCode(t, resp))

	f.identity.loginErr = apperrors.NewInvalidCredentials("Invalid email or password")
	resp = f.do(t, fiber.MethodPost, "/auth/login", `{"email":"a@b.c","password":"nope"}`, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apperrors.CodeInvalidCredentials, errorCode(t, resp))
	assert.Empty(t, resp.Cookies())

	resp = f.do(t, fiber.MethodPost, "/auth/login", `{"email":`, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestOTP_SendValidatesPhone(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, fiber.MethodPost, "/auth/otp/send", `{"phone":"(555) 010-2000"}`, nil)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp = f.do(t, fiber.MethodPost, "/auth/otp/send", `{"phone":"  "}`, nil)
	assert.Equal(t, apperrors.CodeValidationFailed, errorCode(t, resp))
}

func TestAPI_RequiresSession(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, fiber.MethodGet, "/api/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(t, resp))
}

func TestMe_LooksUpProfileForSubject(t *testing.T) {
	f := newFixture(t)
	f.identity.user = &domain.Identity{ID: "7", Email: "ada@example.com"}

	resp := f.do(t, fiber.MethodGet, "/api/me", "", map[string]string{
		credential.AccessTokenKey: token(t, "7", "customer", time.Hour),
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, cookiesByName(resp), credential.IdentityKey)
	data := decode(t, resp)["data"].(map[string]any)
	assert.Equal(t, "ada@example.com", data["email"])
	assert.Zero(t, f.identity.refreshCalls.Load())
}

func TestKeepFresh_RefreshesExpiringToken(t *testing.T) {
	f := newFixture(t)
	f.identity.user = &domain.Identity{ID: "7"}
	fresh := token(t, "7", "customer", time.Hour)
	f.identity.refreshPair = &domain.TokenPair{AccessToken: fresh, RefreshToken: "refresh-2"}

	resp := f.do(t, fiber.MethodGet, "/api/me", "", map[string]string{
		credential.AccessTokenKey:  token(t, "7", "customer", time.Minute),
		credential.RefreshTokenKey: "refresh-1",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("X-Session-Refreshed"))
	assert.Equal(t, int32(1), f.identity.refreshCalls.Load())
	assert.Equal(t, fresh, cookiesByName(resp)[credential.AccessTokenKey].Value)
}

func TestKeepFresh_FailedRefreshEndsSession(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, fiber.MethodGet, "/api/me", "", map[string]string{
		credential.AccessTokenKey:  token(t, "7", "customer", time.Minute),
		credential.RefreshTokenKey: "revoked",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	cookies := cookiesByName(resp)
	for _, name := range credential.AllKeys {
		require.Contains(t, cookies, name)
		assert.Empty(t, cookies[name].Value)
	}
	assert.Equal(t, apperrors.CodeSessionExpired, errorCode(t, resp))
}

func TestSessionStatus(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, fiber.MethodGet, "/auth/session", "", nil)
	data := decode(t, resp)["data"].(map[string]any)
	assert.Equal(t, false, data["authenticated"])
	assert.Equal(t, true, data["expiring_soon"])

	resp = f.do(t, fiber.MethodGet, "/auth/session", "", map[string]string{
		credential.AccessTokenKey: token(t, "9", "admin", time.Hour),
	})
	data = decode(t, resp)["data"].(map[string]any)
	assert.Equal(t, true, data["authenticated"])
	assert.Equal(t, false, data["expiring_soon"])
	assert.Equal(t, "9", data["subject"])
	assert.Equal(t, []any{"admin"}, data["roles"])
}

func TestLogout_ClearsEverything(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, fiber.MethodPost, "/auth/logout", "", map[string]string{
		credential.AccessTokenKey:  token(t, "7", "customer", time.Hour),
		credential.RefreshTokenKey: "refresh-1",
	})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(1), f.identity.logoutCalls.Load())
	cookies := cookiesByName(resp)
	for _, name := range credential.AllKeys {
		require.Contains(t, cookies, name)
		assert.Empty(t, cookies[name].Value)
	}

	resp = f.do(t, fiber.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(1), f.identity.logoutCalls.Load())
}

func TestRefresh_WithoutRefreshTokenExpiresSession(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, fiber.MethodPost, "/auth/refresh", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apperrors.CodeSessionExpired, errorCode(t, resp))
	assert.Zero(t, f.identity.refreshCalls.Load())
}

func TestDashboard_RedirectsToNextOnboardingStep(t *testing.T) {
	f := newFixture(t)
	cookies := map[string]string{credential.AccessTokenKey: token(t, "7", "professional", time.Hour)}

	resp := f.do(t, fiber.MethodGet, "/professional/dashboard", "", cookies)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/professional/onboarding/step/3", resp.Header.Get("Location"))
	assert.Equal(t, []string{"7"}, f.lookups)

	f.snapshot = &domain.OnboardingSnapshot{
		Professional:   &domain.ProfessionalProfile{Introduction: "hi", FoundedYear: "2001", BusinessType: "llc"},
		BusinessHours:  []domain.BusinessHour{{Day: "mon"}},
		PaymentMethods: []domain.PaymentMethod{{ID: "1", Type: "card"}},
	}
	resp = f.do(t, fiber.MethodGet, "/professional/dashboard", "", cookies)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]any)
	assert.Equal(t, true, data["complete"])
}

func TestOnboardingStatus_RequiresProfessional(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, fiber.MethodGet, "/api/professional/onboarding", "", map[string]string{
		credential.AccessTokenKey: token(t, "3", "customer", time.Hour),
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, apperrors.CodeForbidden, errorCode(t, resp))

	resp = f.do(t, fiber.MethodGet, "/api/professional/onboarding", "", map[string]string{
		credential.AccessTokenKey: token(t, "7", "professional", time.Hour),
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]any)
	assert.Equal(t, "3", data["step"])
	assert.Equal(t, "/professional/onboarding/step/3", data["route"])
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = f.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(t, resp))

	resp = f.do(t, fiber.MethodGet, "/auth/unknown", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(t, resp))

	resp = f.do(t, fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
