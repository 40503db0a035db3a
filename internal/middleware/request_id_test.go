package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	newApp := func(config ...RequestIDConfig) *fiber.App {
		app := fiber.New()
		app.Use(RequestID(config...))
		app.Get("/test", func(c *fiber.Ctx) error {
			return c.SendStatus(200)
		})
		return app
	}

	t.Run("generates request ID when not present", func(t *testing.T) {
		app := newApp()

		resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		require.NoError(t, err)

		assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))
	})

	t.Run("keeps the client-supplied request ID", func(t *testing.T) {
		app := newApp()

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(HeaderRequestID, "existing-request-id-12345")

		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, "existing-request-id-12345", resp.Header.Get(HeaderRequestID))
	})

	t.Run("stores request ID in locals", func(t *testing.T) {
		app := fiber.New()

		var localRequestID string
		app.Use(RequestID())
		app.Get("/test", func(c *fiber.Ctx) error {
			localRequestID = c.Locals("requestID").(string)
			return c.SendStatus(200)
		})

		_, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		require.NoError(t, err)

		assert.NotEmpty(t, localRequestID)
	})

	t.Run("uses custom header and generator", func(t *testing.T) {
		app := newApp(RequestIDConfig{
			Header:    "X-Correlation-ID",
			Generator: func() string { return "custom-generated-id" },
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		require.NoError(t, err)

		assert.Equal(t, "custom-generated-id", resp.Header.Get("X-Correlation-ID"))
	})

	t.Run("does not call generator when ID exists", func(t *testing.T) {
		callCount := 0
		app := newApp(RequestIDConfig{
			Header: HeaderRequestID,
			Generator: func() string {
				callCount++
				return "generated-id"
			},
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(HeaderRequestID, "existing-id")
		_, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, 0, callCount)
	})
}

func TestDefaultRequestIDConfig(t *testing.T) {
	cfg := DefaultRequestIDConfig()

	assert.Equal(t, "X-Request-ID", cfg.Header)

	id := cfg.Generator()
	assert.Len(t, id, 36)
	assert.Contains(t, id, "-")
}
