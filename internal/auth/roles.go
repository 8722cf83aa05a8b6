package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/orderline/orders-bff/internal/domain"
	apperrors "github.com/orderline/orders-bff/pkg/util"
)

// RequireRole ensures the principal has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireFullSession rejects hyperlink principals from routes beyond their bound opportunity.
func RequireFullSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.TokenType == TokenTypeHyperlink {
			return apperrors.NewForbidden("hyperlink access is limited to its opportunity")
		}
		return c.Next()
	}
}
