package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"tokostore/internal/models"
	"tokostore/internal/services"
)

// Locals keys set by the auth middleware.
const (
	LocalUserID   = "user_id"
	LocalUsername = "username"
	LocalRole     = "role"
)

// TokenValidator turns a bearer token into the caller's claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*services.Claims, error)
}

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}
		return authenticate(c, validator, authHeader)
	}
}

// OptionalAuth authenticates the caller when an Authorization header is
// present and lets anonymous requests through otherwise. A bad token is
// still rejected.
func OptionalAuth(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Next()
		}
		return authenticate(c, validator, authHeader)
	}
}

func authenticate(c *fiber.Ctx, validator TokenValidator, authHeader string) error {
	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authorization header format must be 'Bearer <token>'",
		})
	}

	claims, err := validator.ValidateToken(parts[1])
	if err != nil {
		logrus.WithError(err).WithField("path", c.Path()).Debug("JWT validation failed")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid or expired token",
			"error":   err.Error(),
		})
	}

	c.Locals(LocalUserID, claims.UserID)
	c.Locals(LocalUsername, claims.Username)
	c.Locals(LocalRole, claims.Role)
	return c.Next()
}

// AdminOnly rejects callers without the ADMIN role. Mount it after AuthRequired.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !CallerFrom(c).IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Admin access required",
			})
		}
		return c.Next()
	}
}

// CallerFrom returns the identity stored by the auth middleware; anonymous
// requests yield the zero Caller.
func CallerFrom(c *fiber.Ctx) services.Caller {
	userID, _ := c.Locals(LocalUserID).(string)
	role, _ := c.Locals(LocalRole).(models.Role)
	return services.Caller{UserID: userID, Role: role}
}
