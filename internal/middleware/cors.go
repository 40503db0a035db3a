package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig configures the CORS middleware
type CORSConfig struct {
	// AllowOrigins is a list of allowed origins, "*" allows any
	AllowOrigins []string
	// AllowMethods is a list of allowed methods
	AllowMethods []string
	// AllowHeaders is a list of allowed request headers
	AllowHeaders []string
	// ExposeHeaders is a list of response headers visible to browsers
	ExposeHeaders []string
	// AllowCredentials indicates whether credentials are allowed
	AllowCredentials bool
	// MaxAge is how long a preflight result may be cached, in seconds
	MaxAge int
}

// DefaultCORSConfig returns the config used for the public API. Browser
// clients are a minority here (most traffic is server-side SDKs) so the
// defaults reflect the origin rather than restricting it.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodPatch,
			fiber.MethodDelete,
			fiber.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-API-Key",
			HeaderRequestID,
		},
		ExposeHeaders: []string{
			HeaderRequestID,
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}
}

// CORSMiddleware handles cross-origin requests
type CORSMiddleware struct {
	config CORSConfig
}

// NewCORSMiddleware creates a new CORS middleware
func NewCORSMiddleware(config CORSConfig) *CORSMiddleware {
	return &CORSMiddleware{config: config}
}

// Handler returns the CORS handler
func (m *CORSMiddleware) Handler() fiber.Handler {
	allowMethods := strings.Join(m.config.AllowMethods, ", ")
	allowHeaders := strings.Join(m.config.AllowHeaders, ", ")
	exposeHeaders := strings.Join(m.config.ExposeHeaders, ", ")

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)

		allowOrigin := m.resolveOrigin(origin)
		if allowOrigin == "" && origin != "" {
			// Unknown origin: skip the CORS headers and let the browser
			// enforce its same-origin policy.
			return c.Next()
		}

		c.Set(fiber.HeaderAccessControlAllowOrigin, allowOrigin)
		if m.config.AllowCredentials {
			c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		}
		if exposeHeaders != "" {
			c.Set(fiber.HeaderAccessControlExposeHeaders, exposeHeaders)
		}

		if c.Method() == fiber.MethodOptions {
			c.Set(fiber.HeaderAccessControlAllowMethods, allowMethods)
			c.Set(fiber.HeaderAccessControlAllowHeaders, allowHeaders)
			if m.config.MaxAge > 0 {
				c.Set(fiber.HeaderAccessControlMaxAge, strconv.Itoa(m.config.MaxAge))
			}
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}

// resolveOrigin returns the Access-Control-Allow-Origin value for the
// given request origin, or "" when the origin is not allowed.
func (m *CORSMiddleware) resolveOrigin(origin string) string {
	for _, o := range m.config.AllowOrigins {
		if o == "*" {
			if m.config.AllowCredentials {
				// "*" is invalid with credentials, reflect instead.
				return origin
			}
			return "*"
		}
		if o == origin {
			return origin
		}
		// Wildcard subdomains, e.g. *.example.com
		if strings.HasPrefix(o, "*.") && strings.HasSuffix(origin, o[1:]) {
			return origin
		}
	}
	return ""
}
