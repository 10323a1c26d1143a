package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
)

// OptionalBasicAuth protects a route with basic auth when user and password
// are both configured and passes through otherwise.
func OptionalBasicAuth(user, password string) fiber.Handler {
	if user == "" || password == "" {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	return basicauth.New(basicauth.Config{
		Users: map[string]string{
			user: password,
		},
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="metrics"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		},
	})
}
