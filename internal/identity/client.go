// Package identity talks to the remote identity API: password login, OTP,
// token refresh, logout, profile and onboarding lookups.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-gateway/internal/config"
	"github.com/spec-kit/marketplace-gateway/internal/domain"
	apperrors "github.com/spec-kit/marketplace-gateway/pkg/util/errorutil"
)

// AuthResult is the decoded body of a successful login or OTP verification.
// Tokens may be empty; callers decide whether that is acceptable.
type AuthResult struct {
	Tokens   domain.TokenPair
	Identity *domain.Identity
}

// Client calls the identity API with a bounded timeout per request.
type Client struct {
	baseURL    string
	otpBaseURL string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient builds a client from config.
func NewClient(cfg config.IdentityConfig, logger *zap.Logger) *Client {
	otpBase := cfg.OTPBaseURL
	if otpBase == "" {
		otpBase = cfg.BaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		otpBaseURL: strings.TrimSuffix(otpBase, "/"),
		timeout:    cfg.Timeout(),
		logger:     logger,
	}
}

type tokensPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type authPayload struct {
	Tokens       *tokensPayload   `json:"tokens"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	User         *domain.Identity `json:"-"`
}

// decodeAuthPayload reads tokens and user independently so an unreadable
// user never hides tokens that were present.
func decodeAuthPayload(data []byte) (authPayload, error) {
	var envelope struct {
		Tokens       json.RawMessage `json:"tokens"`
		AccessToken  json.RawMessage `json:"accessToken"`
		RefreshToken json.RawMessage `json:"refreshToken"`
		User         json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return authPayload{}, err
	}

	var (
		payload authPayload
		errs    []error
	)
	if len(envelope.Tokens) > 0 {
		var tokens tokensPayload
		if err := json.Unmarshal(envelope.Tokens, &tokens); err != nil {
			errs = append(errs, fmt.Errorf("tokens: %w", err))
		} else {
			payload.Tokens = &tokens
		}
	}
	if len(envelope.AccessToken) > 0 {
		if err := json.Unmarshal(envelope.AccessToken, &payload.AccessToken); err != nil {
			errs = append(errs, fmt.Errorf("accessToken: %w", err))
		}
	}
	if len(envelope.RefreshToken) > 0 {
		if err := json.Unmarshal(envelope.RefreshToken, &payload.RefreshToken); err != nil {
			errs = append(errs, fmt.Errorf("refreshToken: %w", err))
		}
	}
	if len(envelope.User) > 0 {
		var user domain.Identity
		if err := json.Unmarshal(envelope.User, &user); err != nil {
			errs = append(errs, fmt.Errorf("user: %w", err))
		} else {
			payload.User = &user
		}
	}
	return payload, errors.Join(errs...)
}

func (p authPayload) tokens() domain.TokenPair {
	pair := domain.TokenPair{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
	if p.Tokens != nil {
		if p.Tokens.AccessToken != "" {
			pair.AccessToken = p.Tokens.AccessToken
		}
		if p.Tokens.RefreshToken != "" {
			pair.RefreshToken = p.Tokens.RefreshToken
		}
	}
	return pair
}

// Login exchanges an identifier (email or phone) and password for tokens.
func (c *Client) Login(ctx context.Context, identifier, secret string) (*AuthResult, error) {
	body := map[string]string{"email": identifier, "password": secret}
	payload, err := c.callAuth(ctx, FlowLogin, c.baseURL+"/auth/login", body)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Tokens: payload.tokens(), Identity: payload.User}, nil
}

// SendOTP asks the OTP service to text a one-time password to phone.
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	body := map[string]string{"phone_number": phone}
	status, resp, err := c.do(ctx, fiber.MethodPost, c.otpBaseURL+"/authentication/sendOtp/", "", body)
	if err != nil {
		return err
	}
	if !success(status) {
		return Classify(FlowOTP, status, resp)
	}
	return nil
}

// VerifyOTP exchanges a phone number and OTP for tokens.
func (c *Client) VerifyOTP(ctx context.Context, phone, otp string) (*AuthResult, error) {
	body := map[string]string{"phone_number": phone, "otp": otp}
	payload, err := c.callAuth(ctx, FlowOTP, c.otpBaseURL+"/authentication/verify_otp/", body)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Tokens: payload.tokens(), Identity: payload.User}, nil
}

// Refresh exchanges a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	body := map[string]string{"refreshToken": refreshToken}
	payload, err := c.callAuth(ctx, FlowRefresh, c.baseURL+"/auth/refresh", body)
	if err != nil {
		return nil, err
	}
	pair := payload.tokens()
	return &pair, nil
}

// Logout revokes the access token upstream.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	status, resp, err := c.do(ctx, fiber.MethodPost, c.baseURL+"/auth/logout", accessToken, nil)
	if err != nil {
		return err
	}
	if !success(status) {
		return Classify(FlowLogin, status, resp)
	}
	return nil
}

// GetUser fetches the profile for id. The body may be the identity itself or
// wrap it in "user" or "data".
func (c *Client) GetUser(ctx context.Context, accessToken, id string) (*domain.Identity, error) {
	endpoint := c.baseURL + "/user/getById/" + url.PathEscape(id)
	status, resp, err := c.do(ctx, fiber.MethodGet, endpoint, accessToken, nil)
	if err != nil {
		return nil, err
	}
	if !success(status) {
		return nil, Classify(FlowProfile, status, resp)
	}

	var wrapped struct {
		User *domain.Identity `json:"user"`
		Data *domain.Identity `json:"data"`
	}
	if err := json.Unmarshal(resp, &wrapped); err == nil {
		if wrapped.User.Valid() {
			return wrapped.User, nil
		}
		if wrapped.Data.Valid() {
			return wrapped.Data, nil
		}
	}

	var user domain.Identity
	if err := json.Unmarshal(resp, &user); err != nil {
		return nil, apperrors.NewServerError("Unexpected response from the identity service.")
	}
	return &user, nil
}

// OnboardingSnapshot fetches a professional's setup progress.
func (c *Client) OnboardingSnapshot(ctx context.Context, accessToken, userID string) (*domain.OnboardingSnapshot, error) {
	endpoint := c.baseURL + "/professional/onboarding/" + url.PathEscape(userID)
	status, resp, err := c.do(ctx, fiber.MethodGet, endpoint, accessToken, nil)
	if err != nil {
		return nil, err
	}
	if !success(status) {
		return nil, Classify(FlowProfile, status, resp)
	}

	var snapshot domain.OnboardingSnapshot
	// lenient decoding never fails
	_ = json.Unmarshal(resp, &snapshot)
	return &snapshot, nil
}

func (c *Client) callAuth(ctx context.Context, flow Flow, endpoint string, body any) (authPayload, error) {
	var payload authPayload
	status, resp, err := c.do(ctx, fiber.MethodPost, endpoint, "", body)
	if err != nil {
		return payload, err
	}
	if !success(status) {
		return payload, Classify(flow, status, resp)
	}
	payload, err = decodeAuthPayload(resp)
	if err != nil {
		c.logger.Warn("identity response partly undecodable", zap.String("endpoint", endpoint), zap.Error(err))
	}
	return payload, nil
}

// do performs one request. Transport failures, timeouts included, come back as
// NETWORK_ERROR; any HTTP status is returned to the caller for classification.
func (c *Client) do(ctx context.Context, method, endpoint, bearer string, body any) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, apperrors.NewNetworkError(err)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(endpoint)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	if body != nil {
		agent.JSON(body)
	}
	agent.Timeout(timeout)

	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return 0, nil, apperrors.NewNetworkError(err)
	}

	start := time.Now()
	status, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		c.logger.Warn("identity request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return 0, nil, apperrors.NewNetworkError(fmt.Errorf("%s %s: %w", method, endpoint, err))
	}

	c.logger.Debug("identity request",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)),
	)
	return status, resp, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}
