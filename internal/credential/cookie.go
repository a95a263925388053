package credential

import (
	"context"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/juju/clock"
)

const storeLocalsKey = "credential_store"

// CookieOptions controls the attributes of credential cookies.
type CookieOptions struct {
	Secure   bool
	HTTPOnly bool
	Domain   string
}

// CookieStore keeps credentials in the browser cookie jar of one request.
// Writes made during the request are overlaid on the incoming cookies so a
// later Get in the same request sees them.
type CookieStore struct {
	c       *fiber.Ctx
	opts    CookieOptions
	clock   clock.Clock
	pending map[string]*string
}

// NewCookieStore binds a store to the request.
func NewCookieStore(c *fiber.Ctx, opts CookieOptions, clk clock.Clock) *CookieStore {
	if clk == nil {
		clk = clock.WallClock
	}
	return &CookieStore{c: c, opts: opts, clock: clk, pending: make(map[string]*string)}
}

func (s *CookieStore) Put(_ context.Context, name, value string, ttl time.Duration) error {
	if ttl <= 0 {
		s.expire(name)
		return nil
	}
	s.c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    url.QueryEscape(value),
		Path:     "/",
		Domain:   s.opts.Domain,
		MaxAge:   int(ttl.Seconds()),
		Expires:  s.clock.Now().Add(ttl),
		Secure:   s.opts.Secure,
		HTTPOnly: s.opts.HTTPOnly,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	v := value
	s.pending[name] = &v
	return nil
}

func (s *CookieStore) Get(_ context.Context, name string) (string, error) {
	if v, ok := s.pending[name]; ok {
		if v == nil {
			return "", ErrAbsent
		}
		return *v, nil
	}
	raw := s.c.Cookies(name)
	if raw == "" {
		return "", ErrAbsent
	}
	value, err := url.QueryUnescape(raw)
	if err != nil {
		return raw, nil
	}
	return value, nil
}

func (s *CookieStore) Clear(_ context.Context, names ...string) error {
	for _, name := range names {
		s.expire(name)
	}
	return nil
}

func (s *CookieStore) expire(name string) {
	s.c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   s.opts.Domain,
		Expires:  time.Unix(0, 0),
		Secure:   s.opts.Secure,
		HTTPOnly: s.opts.HTTPOnly,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	s.pending[name] = nil
}

// CookieProvider hands out one CookieStore per request.
type CookieProvider struct {
	opts  CookieOptions
	clock clock.Clock
}

// NewCookieProvider constructs a provider.
func NewCookieProvider(opts CookieOptions, clk clock.Clock) *CookieProvider {
	return &CookieProvider{opts: opts, clock: clk}
}

// For returns the request's store, creating it on first use.
func (p *CookieProvider) For(c *fiber.Ctx) Store {
	if store, ok := c.Locals(storeLocalsKey).(Store); ok {
		return store
	}
	store := NewCookieStore(c, p.opts, p.clock)
	c.Locals(storeLocalsKey, store)
	return store
}
