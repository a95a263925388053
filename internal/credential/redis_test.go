package credential

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisProvider_ForgetExpiresClientCookie(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })
	provider := NewRedisProvider(client, CookieOptions{})

	app := fiber.New()
	app.Post("/logout", func(c *fiber.Ctx) error {
		forgetter, ok := provider.For(c).(Forgetter)
		require.True(t, ok)
		forgetter.Forget()
		return c.SendStatus(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookie, Value: "0b6c5f0e-8a7e-4d0c-9a55-3f2f4c1e9d21"})
	resp, err := app.Test(req)
	require.NoError(t, err)

	var sid *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == ClientCookie {
			sid = c
		}
	}
	require.NotNil(t, sid)
	assert.Empty(t, sid.Value)
	assert.True(t, sid.Expires.Before(time.Now()))
}
