package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/alert-engine/internal/domain"
	"github.com/spec-kit/alert-engine/pkg/util/errorutil"
)

// RequireAgent ensures an authenticated agent principal is present.
func RequireAgent() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return errorutil.NewUnauthorized("agent authentication required")
		}
		return c.Next()
	}
}

// RequireRole restricts a route to the given roles.
func RequireRole(roles ...domain.AgentRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return errorutil.NewUnauthorized("agent authentication required")
		}
		for _, role := range roles {
			if principal.Role == role {
				return c.Next()
			}
		}
		return errorutil.NewForbidden("insufficient role")
	}
}
