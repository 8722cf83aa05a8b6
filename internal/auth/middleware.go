package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/orderline/orders-bff/internal/domain"
	"github.com/orderline/orders-bff/internal/scope"
	apperrors "github.com/orderline/orders-bff/pkg/util"
)

const principalKey = "auth_principal"

// ErrContactGone signals that a token's contact no longer exists in the CRM.
var ErrContactGone = errors.New("contact no longer exists")

// Principal represents the authenticated caller.
type Principal struct {
	Contact   *domain.Contact
	Role      domain.Role
	TokenType TokenType
	// HyperlinkOpportunityID restricts a hyperlink principal to one opportunity.
	HyperlinkOpportunityID string
}

// Caller projects the principal for scoping decisions.
func (p *Principal) Caller() scope.Caller {
	caller := scope.Caller{Role: p.Role}
	if p.Contact != nil {
		caller.ContactID = p.Contact.ID
		caller.CustomFields = p.Contact.CustomFields
	}
	return caller
}

// ContactResolver revalidates a token's contact against the CRM.
type ContactResolver interface {
	ResolveContact(ctx context.Context, email, phone string) (*domain.Contact, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	contacts ContactResolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, contacts ContactResolver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, contacts: contacts}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	var principal *Principal
	switch claims.Type {
	case TokenTypeAccess:
		contact, err := m.contacts.ResolveContact(c.UserContext(), claims.Email, claims.Phone)
		if err != nil {
			if errors.Is(err, ErrContactGone) {
				return apperrors.NewUnauthorized("user no longer exists")
			}
			return err
		}
		principal = &Principal{Contact: contact, Role: contact.Role(), TokenType: TokenTypeAccess}
	case TokenTypeHyperlink:
		principal = &Principal{
			Contact: &domain.Contact{
				ID:    claims.ContactID,
				Email: claims.Email,
				Phone: claims.Phone,
				Type:  string(claims.Role),
			},
			Role:                   claims.Role,
			TokenType:              TokenTypeHyperlink,
			HyperlinkOpportunityID: claims.OpportunityID,
		}
	default:
		return apperrors.NewUnauthorized("token type not accepted here")
	}

	if principal.Role == "" {
		return apperrors.NewForbidden("contact has no recognised role")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// WithPrincipal stores a principal on the request; used by alternative authenticators and tests.
func WithPrincipal(c *fiber.Ctx, principal *Principal) {
	c.Locals(principalKey, principal)
}
