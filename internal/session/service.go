// Package session establishes, refreshes and tears down a client's
// authenticated session on top of a credential.Store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/marketplace-gateway/internal/auth"
	"github.com/spec-kit/marketplace-gateway/internal/credential"
	"github.com/spec-kit/marketplace-gateway/internal/domain"
	"github.com/spec-kit/marketplace-gateway/internal/events"
	"github.com/spec-kit/marketplace-gateway/internal/identity"
	"github.com/spec-kit/marketplace-gateway/internal/observability"
	apperrors "github.com/spec-kit/marketplace-gateway/pkg/util/errorutil"
)

const (
	msgInvalidLogin   = "Invalid email or password"
	msgInvalidOTP     = "Invalid or expired OTP. Please request a new one."
	msgSessionExpired = "Session expired. Please log in again."
)

var errMissingTokens = errors.New("refresh response missing tokens")

// IdentityAPI is the remote identity service as seen by the session layer.
type IdentityAPI interface {
	Login(ctx context.Context, identifier, secret string) (*identity.AuthResult, error)
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, otp string) (*identity.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken, id string) (*domain.Identity, error)
}

// Dependencies bundles the collaborators of Service.
type Dependencies struct {
	API            IdentityAPI
	Codec          *auth.TokenCodec
	Clock          clock.Clock
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	NormalizePhone PhoneNormalizer
	Events         events.Dispatcher
}

// Service coordinates login, OTP, refresh, logout and profile resolution.
type Service struct {
	api       IdentityAPI
	codec     *auth.TokenCodec
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *observability.Metrics
	normalize PhoneNormalizer
	events    events.Dispatcher
	inflight  singleflight.Group
}

// NewService builds the service.
func NewService(deps Dependencies) *Service {
	s := &Service{
		api:       deps.API,
		codec:     deps.Codec,
		clock:     deps.Clock,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		normalize: deps.NormalizePhone,
		events:    deps.Events,
	}
	if s.codec == nil {
		s.codec = auth.NewTokenCodec(nil)
	}
	if s.clock == nil {
		s.clock = clock.WallClock
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.normalize == nil {
		s.normalize = PhoneDigitsAndPlus
	}
	return s
}

// Login authenticates with an identifier and password and caches the result.
// The store is only written once the response is known to be complete.
func (s *Service) Login(ctx context.Context, store credential.Store, identifier, secret string) (*domain.Identity, *domain.Credential, error) {
	identifier = strings.TrimSpace(identifier)
	if fields := requiredFields(map[string]string{"identifier": identifier, "password": secret}); len(fields) > 0 {
		err := apperrors.NewValidationError("Validation failed", fields)
		s.record("login", err)
		return nil, nil, err
	}

	res, err := s.api.Login(ctx, identifier, secret)
	if err != nil {
		s.record("login", err)
		return nil, nil, err
	}

	user, cred, err := s.establish(ctx, store, res, msgInvalidLogin)
	s.record("login", err)
	if err == nil {
		s.publish(ctx, events.EventSessionEstablished, string(user.ID), "password")
	}
	return user, cred, err
}

// SendOTP normalizes phone and requests a one-time password.
func (s *Service) SendOTP(ctx context.Context, phone string) error {
	phone = s.normalize(phone)
	if phone == "" {
		err := apperrors.NewValidationError("Validation failed", map[string]string{"phone": "is required"})
		s.record("otp_send", err)
		return err
	}
	err := s.api.SendOTP(ctx, phone)
	s.record("otp_send", err)
	return err
}

// VerifyOTP exchanges phone and otp for a session, with the same checks as Login.
func (s *Service) VerifyOTP(ctx context.Context, store credential.Store, phone, otp string) (*domain.Identity, *domain.Credential, error) {
	phone = s.normalize(phone)
	otp = strings.TrimSpace(otp)
	if fields := requiredFields(map[string]string{"phone": phone, "otp": otp}); len(fields) > 0 {
		err := apperrors.NewValidationError("Validation failed", fields)
		s.record("otp_verify", err)
		return nil, nil, err
	}

	res, err := s.api.VerifyOTP(ctx, phone, otp)
	if err != nil {
		s.record("otp_verify", err)
		return nil, nil, err
	}

	user, cred, err := s.establish(ctx, store, res, msgInvalidOTP)
	s.record("otp_verify", err)
	if err == nil {
		s.publish(ctx, events.EventSessionEstablished, string(user.ID), "otp")
	}
	return user, cred, err
}

func (s *Service) establish(ctx context.Context, store credential.Store, res *identity.AuthResult, invalidMsg string) (*domain.Identity, *domain.Credential, error) {
	if res == nil || res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" || !res.Identity.Valid() {
		return nil, nil, apperrors.NewInvalidCredentials(invalidMsg)
	}

	serialized, err := json.Marshal(res.Identity)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}

	now := s.clock.Now()
	writes := []struct {
		name  string
		value string
		ttl   time.Duration
	}{
		{credential.AccessTokenKey, res.Tokens.AccessToken, credential.AccessTokenTTL},
		{credential.RefreshTokenKey, res.Tokens.RefreshToken, credential.RefreshTokenTTL},
		{credential.IdentityKey, string(serialized), credential.IdentityTTL},
	}
	for _, w := range writes {
		if err := store.Put(ctx, w.name, w.value, w.ttl); err != nil {
			s.clearAll(ctx, store)
			return nil, nil, apperrors.NewInternalError(err)
		}
	}

	cred := &domain.Credential{
		AccessToken:        res.Tokens.AccessToken,
		AccessTokenExpiry:  now.Add(credential.AccessTokenTTL),
		RefreshToken:       res.Tokens.RefreshToken,
		RefreshTokenExpiry: now.Add(credential.RefreshTokenTTL),
		Identity:           res.Identity,
	}
	return res.Identity, cred, nil
}

// RefreshTokens exchanges the cached refresh token for a new pair.
//
// Concurrent callers holding the same refresh token share one upstream call.
// Any failure clears every cached value in a single step and reports
// SESSION_EXPIRED.
func (s *Service) RefreshTokens(ctx context.Context, store credential.Store) (*domain.TokenPair, error) {
	refresh := credential.Lookup(ctx, store, credential.RefreshTokenKey)
	if refresh == "" {
		err := apperrors.NewSessionExpired(msgSessionExpired)
		s.record("refresh", err)
		return nil, err
	}

	v, err, shared := s.inflight.Do(refresh, func() (any, error) {
		pair, err := s.api.Refresh(context.WithoutCancel(ctx), refresh)
		if err != nil {
			return nil, err
		}
		if pair == nil || pair.AccessToken == "" || pair.RefreshToken == "" {
			return nil, errMissingTokens
		}
		return pair, nil
	})
	if err != nil {
		if pair, ok := s.rotatedElsewhere(ctx, store, refresh); ok {
			s.logger.Debug("refresh token already rotated by another request", zap.Error(err))
			s.record("refresh", nil)
			return pair, nil
		}
		s.logger.Warn("token refresh failed", zap.Bool("shared", shared), zap.Error(err))
		return nil, s.expire(ctx, store)
	}

	pair := v.(*domain.TokenPair)
	if err := store.Put(ctx, credential.AccessTokenKey, pair.AccessToken, credential.AccessTokenTTL); err != nil {
		s.logger.Warn("caching refreshed access token failed", zap.Error(err))
		return nil, s.expire(ctx, store)
	}
	if err := store.Put(ctx, credential.RefreshTokenKey, pair.RefreshToken, credential.RefreshTokenTTL); err != nil {
		s.logger.Warn("caching refreshed refresh token failed", zap.Error(err))
		return nil, s.expire(ctx, store)
	}

	s.record("refresh", nil)
	s.publish(ctx, events.EventSessionRefreshed, s.subjectOf(pair.AccessToken), "")
	return &domain.TokenPair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// rotatedElsewhere reports the store's current pair when another request
// replaced the refresh token while this one was being rejected. Such a
// session is live and must not be cleared.
func (s *Service) rotatedElsewhere(ctx context.Context, store credential.Store, stale string) (*domain.TokenPair, bool) {
	current := credential.Lookup(ctx, store, credential.RefreshTokenKey)
	if current == "" || current == stale {
		return nil, false
	}
	access := credential.Lookup(ctx, store, credential.AccessTokenKey)
	if access == "" {
		return nil, false
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: current}, true
}

func (s *Service) expire(ctx context.Context, store credential.Store) error {
	s.clearAll(ctx, store)
	err := apperrors.NewSessionExpired(msgSessionExpired)
	s.record("refresh", err)
	s.publish(ctx, events.EventSessionExpired, "", "")
	return err
}

// Logout clears the session locally, then tells the identity API on a best
// effort basis. It never fails: when the store cannot be cleared the client is
// detached from it instead. Calling it on an empty store is a no-op.
func (s *Service) Logout(ctx context.Context, store credential.Store) error {
	access := credential.Lookup(ctx, store, credential.AccessTokenKey)

	if err := store.Clear(ctx, credential.AllKeys...); err != nil {
		s.logger.Error("clearing session on logout failed", zap.Error(err))
		if f, ok := store.(credential.Forgetter); ok {
			f.Forget()
		}
	}

	if access != "" {
		if err := s.api.Logout(ctx, access); err != nil {
			s.logger.Warn("remote logout failed", zap.Error(err))
		}
		s.publish(ctx, events.EventSessionEnded, s.subjectOf(access), "")
	}
	s.record("logout", nil)
	return nil
}

// CurrentUser returns the cached identity, falling back to a profile lookup
// for the access token's subject.
func (s *Service) CurrentUser(ctx context.Context, store credential.Store) (*domain.Identity, error) {
	if raw := credential.Lookup(ctx, store, credential.IdentityKey); raw != "" {
		var cached domain.Identity
		if err := json.Unmarshal([]byte(raw), &cached); err == nil && cached.Valid() {
			return &cached, nil
		}
		s.logger.Debug("discarding unreadable cached identity")
	}

	access := credential.Lookup(ctx, store, credential.AccessTokenKey)
	if access == "" {
		return nil, apperrors.NewSessionExpired(msgSessionExpired)
	}
	claims, err := s.codec.Decode(access)
	if err != nil || claims.Subject == "" {
		return nil, apperrors.NewSessionExpired(msgSessionExpired)
	}

	user, err := s.api.GetUser(ctx, access, claims.Subject)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeInvalidCredentials) {
			return nil, apperrors.NewSessionExpired(msgSessionExpired)
		}
		return nil, err
	}
	if !user.Valid() {
		return nil, apperrors.NewNotFound("User not found.")
	}

	if serialized, err := json.Marshal(user); err == nil {
		if err := store.Put(ctx, credential.IdentityKey, string(serialized), credential.IdentityTTL); err != nil {
			s.logger.Warn("caching identity failed", zap.Error(err))
		}
	}
	return user, nil
}

// IsAuthenticated reports whether a decodable, unexpired access token is cached.
func (s *Service) IsAuthenticated(ctx context.Context, store credential.Store) bool {
	claims, ok := s.accessClaims(ctx, store)
	return ok && !claims.Expired(s.clock.Now())
}

// IsTokenExpiringSoon is true when the access token is missing, undecodable,
// has no expiry, or expires within threshold.
func (s *Service) IsTokenExpiringSoon(ctx context.Context, store credential.Store, threshold time.Duration) bool {
	claims, ok := s.accessClaims(ctx, store)
	if !ok {
		return true
	}
	return claims.ExpiresWithin(s.clock.Now(), threshold)
}

// EnsureFresh refreshes the session when the access token is about to lapse.
// It reports whether a refresh took place.
func (s *Service) EnsureFresh(ctx context.Context, store credential.Store, threshold time.Duration) (bool, error) {
	if !s.IsTokenExpiringSoon(ctx, store, threshold) {
		return false, nil
	}
	if _, err := s.RefreshTokens(ctx, store); err != nil {
		return false, err
	}
	return true, nil
}

// Claims decodes the cached access token without checking expiry.
func (s *Service) Claims(ctx context.Context, store credential.Store) (*auth.Claims, bool) {
	return s.accessClaims(ctx, store)
}

func (s *Service) accessClaims(ctx context.Context, store credential.Store) (*auth.Claims, bool) {
	access := credential.Lookup(ctx, store, credential.AccessTokenKey)
	if access == "" {
		return nil, false
	}
	claims, err := s.codec.Decode(access)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func (s *Service) subjectOf(access string) string {
	claims, err := s.codec.Decode(access)
	if err != nil {
		return ""
	}
	return claims.Subject
}

func (s *Service) publish(ctx context.Context, eventType events.EventType, subject, method string) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events.NewEvent(eventType, subject, method, s.clock.Now())); err != nil {
		s.logger.Warn("publish session event failed", zap.String("type", string(eventType)), zap.Error(err))
	}
}

func (s *Service) clearAll(ctx context.Context, store credential.Store) {
	if err := store.Clear(ctx, credential.AllKeys...); err != nil {
		s.logger.Error("clearing session failed", zap.Error(err))
		if f, ok := store.(credential.Forgetter); ok {
			f.Forget()
		}
	}
}

func (s *Service) record(event string, err error) {
	if err == nil {
		s.metrics.RecordSessionEvent(event, "ok")
		return
	}
	s.metrics.RecordSessionEvent(event, apperrors.ToDomainError(err).Code)
}

func requiredFields(values map[string]string) map[string]string {
	missing := map[string]string{}
	for field, value := range values {
		if strings.TrimSpace(value) == "" {
			missing[field] = "is required"
		}
	}
	return missing
}
