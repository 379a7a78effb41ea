package security

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(cfg HeadersConfig) *fiber.App {
	app := fiber.New()
	app.Use(HeadersMiddleware(cfg))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestHeadersMiddleware(t *testing.T) {
	resp, err := newApp(HeadersConfig{}).Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", resp.Header.Get("Referrer-Policy"))
	assert.Equal(t, apiCSP, resp.Header.Get("Content-Security-Policy"))
	assert.Empty(t, resp.Header.Get("Strict-Transport-Security"))
}

func TestHeadersMiddleware_HSTSRequiresTLS(t *testing.T) {
	app := newApp(HeadersConfig{HSTS: true})

	// HSTS is only emitted on https requests.
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Strict-Transport-Security"), "max-age=31536000")
}
