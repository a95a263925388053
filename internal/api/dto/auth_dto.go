package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/marketplace-gateway/internal/domain"
)

// LoginRequest payload. Email is accepted as an alias of Identifier.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// Login returns the identifier the client supplied.
func (r LoginRequest) Login() string {
	if strings.TrimSpace(r.Identifier) != "" {
		return r.Identifier
	}
	return r.Email
}

// SendOTPRequest payload.
type SendOTPRequest struct {
	Phone string `json:"phone"`
}

// VerifyOTPRequest payload.
type VerifyOTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

// UserResponse is the public view of an identity.
type UserResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Role       string `json:"role,omitempty"`
	RoleID     int    `json:"role_id,omitempty"`
	IsVerified bool   `json:"is_verified"`
}

// NewUserResponse maps an identity. Nil yields nil.
func NewUserResponse(identity *domain.Identity) *UserResponse {
	if identity == nil {
		return nil
	}
	return &UserResponse{
		ID:         string(identity.ID),
		Name:       identity.FullName(),
		Email:      identity.Email,
		Phone:      identity.Phone,
		Role:       identity.Role,
		RoleID:     int(identity.RoleID),
		IsVerified: bool(identity.IsVerified),
	}
}

// AuthResponse describes an established session. Tokens stay in the credential store.
type AuthResponse struct {
	User                  *UserResponse `json:"user"`
	AccessTokenExpiresAt  time.Time     `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time     `json:"refresh_token_expires_at"`
	Redirect              string        `json:"redirect,omitempty"`
}

// SessionStatusResponse reports the state of the caller's session.
type SessionStatusResponse struct {
	Authenticated bool     `json:"authenticated"`
	ExpiringSoon  bool     `json:"expiring_soon"`
	Refreshed     bool     `json:"refreshed"`
	Subject       string   `json:"subject,omitempty"`
	Roles         []string `json:"roles,omitempty"`
}

// OnboardingResponse reports the next onboarding step of a professional.
type OnboardingResponse struct {
	Step     string `json:"step"`
	Complete bool   `json:"complete"`
	Route    string `json:"route"`
}
