package middleware

import (
	"github.com/gofiber/fiber/v2"

	"trainhub/backend/config"
	"trainhub/backend/utils"
)

// AuthMiddleware rejects requests without a valid token and stores the
// caller's id and role in the request locals.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, role, err := utils.ExtractClaimsFromToken(c, cfg)
		if err != nil {
			return utils.Unauthorized(c, "Unauthorized")
		}
		c.Locals("user_id", userID)
		c.Locals("role", role)
		return c.Next()
	}
}

// RequireRole allows only callers whose token carries one of the given
// roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		for _, allowed := range roles {
			if role == allowed {
				return c.Next()
			}
		}
		return utils.Forbidden(c, "Insufficient role")
	}
}
