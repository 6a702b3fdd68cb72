package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/auth"
)

// RequireAuth verifies the bearer token and binds the authenticated
// principal into the request context, where the engine's authorizer
// reads it back.
func RequireAuth(secret string, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "missing authorization header"})
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "invalid authorization format"})
		}

		claims, err := auth.ParseToken(secret, token)
		if err != nil {
			log.Debug().Err(err).Msg("token rejected")
			return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "invalid or expired token"})
		}

		c.SetUserContext(auth.WithPrincipal(c.UserContext(), claims.Principal))
		return c.Next()
	}
}
