package domain

import "time"

// TokenPair is the result of a token refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Credential is the client-side secret bundle written after a successful login.
type Credential struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
	Identity           *Identity
}
