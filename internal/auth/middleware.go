package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/alert-engine/internal/domain"
	"github.com/spec-kit/alert-engine/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal is the authenticated agent acting on a request.
type Principal struct {
	AgentID string
	Role    domain.AgentRole
}

// AuthMiddleware resolves bearer tokens into a request principal.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware builds the middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle validates the Authorization header and stores the principal.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return errorutil.NewUnauthorized("missing authorization header")
	}
	tokenStr, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(tokenStr) == "" {
		return errorutil.NewUnauthorized("malformed authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(tokenStr))
	if err != nil {
		return errorutil.NewUnauthorized("invalid or expired token")
	}

	c.Locals(principalKey, Principal{AgentID: claims.AgentID, Role: claims.Role})
	return c.Next()
}

// PrincipalFromContext returns the authenticated agent, if any.
func PrincipalFromContext(c *fiber.Ctx) (Principal, bool) {
	principal, ok := c.Locals(principalKey).(Principal)
	return principal, ok
}
