package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthApp() *fiber.App {
	app := fiber.New()
	rl := NewRateLimiter(nil)
	app.Get("/", NewAuthMiddleware().Authenticate(), rl.JobsLimit(1), func(c *fiber.Ctx) error {
		return c.SendString(GetToken(c))
	})
	return app
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()})
	s, err := token.SignedString([]byte("any-key"))
	require.NoError(t, err)
	return s
}

func call(t *testing.T, app *fiber.App, header string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	return resp.StatusCode, string(buf[:n])
}

func TestAuthenticate(t *testing.T) {
	app := newAuthApp()

	status, _ := call(t, app, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = call(t, app, "Basic abc")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := call(t, app, "Bearer opaque-token")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "opaque-token", body)

	live := signed(t, time.Now().Add(time.Hour))
	status, body = call(t, app, "bearer "+live)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, live, body)

	status, body = call(t, app, "Bearer "+signed(t, time.Now().Add(-time.Minute)))
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, body, "Token expired")
}

func TestRateLimiter_NilRedisPassesThrough(t *testing.T) {
	app := newAuthApp()
	for i := 0; i < 3; i++ {
		status, _ := call(t, app, "Bearer t")
		assert.Equal(t, fiber.StatusOK, status)
	}
}
