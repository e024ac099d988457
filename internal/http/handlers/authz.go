package handlers

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"variantsync/internal/log"
)

// RequireAdminKey guards mutating routes. The caller presents the raw key in
// X-Admin-Key; only its bcrypt hash is ever configured on the server.
func RequireAdminKey(hash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if hash == "" {
			log.Security(c, "admin.key.unconfigured", nil)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access disabled"})
		}
		key := c.Get("X-Admin-Key")
		if key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
			log.Security(c, "admin.key.fail", nil)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		return c.Next()
	}
}
