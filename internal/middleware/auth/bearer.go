package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RequireBearer rejects requests without "Authorization: Bearer <token>".
// An empty token disables the check. Browsers cannot set headers on a
// websocket handshake, so ?token= is accepted on upgrade requests too.
func RequireBearer(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}

		got := ""
		if h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization)); strings.HasPrefix(h, "Bearer ") {
			got = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		} else if strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket") {
			got = c.Query("token")
		}

		if got == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid bearer token"})
		}
		return c.Next()
	}
}
