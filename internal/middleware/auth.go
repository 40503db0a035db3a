package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/forprompt/forprompt/api/internal/domain"
)

// ContextKey type for context keys
type ContextKey string

const (
	ContextKeyProjectID ContextKey = "projectID"
	ContextKeyOrgID     ContextKey = "orgID"
)

// apiKeyPrefix is the required prefix of every project API key.
const apiKeyPrefix = "fp_"

// ProjectResolver looks a project up by the SHA-256 hash of its API key.
type ProjectResolver interface {
	GetByAPIKey(ctx context.Context, keyHash string) (*domain.Project, error)
}

// AuthMiddleware authenticates SDK requests by project API key
type AuthMiddleware struct {
	projects ProjectResolver
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(projects ProjectResolver) *AuthMiddleware {
	return &AuthMiddleware{
		projects: projects,
	}
}

// RequireAPIKey validates the X-API-Key header and resolves its project.
// Only the key's hash ever reaches storage or logs.
func (m *AuthMiddleware) RequireAPIKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKey(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Unauthorized",
				"message": "API key required",
			})
		}

		if !strings.HasPrefix(apiKey, apiKeyPrefix) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Unauthorized",
				"message": "Invalid API key",
			})
		}

		project, err := m.projects.GetByAPIKey(c.Context(), HashAPIKey(apiKey))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Unauthorized",
				"message": "Invalid API key",
			})
		}

		c.Locals(string(ContextKeyProjectID), project.ID)
		if project.OrganizationID != nil {
			c.Locals(string(ContextKeyOrgID), *project.OrganizationID)
		}

		return c.Next()
	}
}

// extractAPIKey pulls the API key from the X-API-Key header, falling back
// to a Bearer token for SDKs that only support Authorization headers.
func extractAPIKey(c *fiber.Ctx) string {
	if key := c.Get("X-API-Key"); key != "" {
		return key
	}

	auth := c.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	return ""
}

// HashAPIKey returns the hex SHA-256 digest stored for an API key
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// GetProjectID retrieves the authenticated project ID from the request
func GetProjectID(c *fiber.Ctx) (uuid.UUID, bool) {
	projectID, ok := c.Locals(string(ContextKeyProjectID)).(uuid.UUID)
	return projectID, ok
}

// GetOrgID retrieves the authenticated project's organization ID, when set
func GetOrgID(c *fiber.Ctx) (uuid.UUID, bool) {
	orgID, ok := c.Locals(string(ContextKeyOrgID)).(uuid.UUID)
	return orgID, ok
}
