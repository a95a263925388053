// Package credential holds the per-client cache for the access token, the
// refresh token and the serialized identity, each with its own expiry.
package credential

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Cache entry names. They double as cookie names for the cookie backend.
const (
	AccessTokenKey  = "auth-token"
	RefreshTokenKey = "refresh-token"
	IdentityKey     = "user-data"
)

// Lifetimes of the three cached values.
const (
	AccessTokenTTL  = 30 * time.Minute
	RefreshTokenTTL = 30 * 24 * time.Hour
	IdentityTTL     = 24 * time.Hour
)

// AllKeys lists every cached value; Clear(ctx, AllKeys...) is a full logout.
var AllKeys = []string{AccessTokenKey, RefreshTokenKey, IdentityKey}

// ErrAbsent is returned by Get when no live value exists for the name.
var ErrAbsent = errors.New("credential: absent")

// Store is a client-scoped key/value cache with per-entry expiry.
//
// Put with a non-positive ttl clears the entry. Clear removes every named entry
// in one step, so a reader never observes some of them removed and others kept.
type Store interface {
	Put(ctx context.Context, name, value string, ttl time.Duration) error
	Get(ctx context.Context, name string) (string, error)
	Clear(ctx context.Context, names ...string) error
}

// Forgetter is implemented by stores whose data lives server-side. Forget
// drops the client's handle on that data, so a failed Clear still ends the
// session for the client.
type Forgetter interface {
	Forget()
}

// Provider resolves the store belonging to the client behind a request.
type Provider interface {
	For(c *fiber.Ctx) Store
}

// Lookup returns the value or "" when absent or unreadable.
func Lookup(ctx context.Context, store Store, name string) string {
	value, err := store.Get(ctx, name)
	if err != nil {
		return ""
	}
	return value
}
