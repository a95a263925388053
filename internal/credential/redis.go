package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClientCookie carries the client id for the server-side session table.
const ClientCookie = "sid"

// RedisStore keeps one client's credentials in Redis with native key TTLs.
type RedisStore struct {
	client   redis.Cmdable
	clientID string
	forget   func()
}

// NewRedisStore scopes a store to clientID.
func NewRedisStore(client redis.Cmdable, clientID string) *RedisStore {
	return &RedisStore{client: client, clientID: clientID}
}

// Forget runs the detach hook installed by RedisProvider, if any.
func (s *RedisStore) Forget() {
	if s.forget != nil {
		s.forget()
	}
}

func (s *RedisStore) key(name string) string {
	return fmt.Sprintf("credential:%s:%s", s.clientID, name)
}

func (s *RedisStore) Put(ctx context.Context, name, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Clear(ctx, name)
	}
	if err := s.client.Set(ctx, s.key(name), value, ttl).Err(); err != nil {
		return fmt.Errorf("store credential %s: %w", name, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, name string) (string, error) {
	value, err := s.client.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrAbsent
	}
	if err != nil {
		return "", fmt.Errorf("load credential %s: %w", name, err)
	}
	return value, nil
}

// Clear deletes all names with a single DEL.
func (s *RedisStore) Clear(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, 0, len(names))
	for _, name := range names {
		keys = append(keys, s.key(name))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// RedisProvider identifies the client by the sid cookie, issuing one when missing.
type RedisProvider struct {
	client redis.Cmdable
	opts   CookieOptions
}

// NewRedisProvider constructs a provider.
func NewRedisProvider(client redis.Cmdable, opts CookieOptions) *RedisProvider {
	return &RedisProvider{client: client, opts: opts}
}

func (p *RedisProvider) For(c *fiber.Ctx) Store {
	if store, ok := c.Locals(storeLocalsKey).(Store); ok {
		return store
	}
	clientID := c.Cookies(ClientCookie)
	if _, err := uuid.Parse(clientID); err != nil {
		clientID = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     ClientCookie,
			Value:    clientID,
			Path:     "/",
			Domain:   p.opts.Domain,
			MaxAge:   int(RefreshTokenTTL.Seconds()),
			Secure:   p.opts.Secure,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteStrictMode,
		})
	}
	store := NewRedisStore(p.client, clientID)
	store.forget = func() {
		c.Cookie(&fiber.Cookie{
			Name:     ClientCookie,
			Value:    "",
			Path:     "/",
			Domain:   p.opts.Domain,
			Expires:  time.Unix(0, 0),
			Secure:   p.opts.Secure,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteStrictMode,
		})
	}
	c.Locals(storeLocalsKey, store)
	return store
}
