package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/orderline/orders-bff/internal/api/dto"
	"github.com/orderline/orders-bff/internal/service"
	apperrors "github.com/orderline/orders-bff/pkg/util"
)

// AuthHandler exposes login, refresh and hyperlink issuance.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	pair, err := h.service.Login(c.UserContext(), service.Credentials{Email: req.Email, Phone: req.Phone})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Refresh POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	pair, err := h.service.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Hyperlink POST /auth/hyperlink/:opportunityId.
func (h *AuthHandler) Hyperlink(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	link, err := h.service.Hyperlink(c.UserContext(), service.Credentials{Email: req.Email, Phone: req.Phone}, c.Params("opportunityId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.HyperlinkResponse{URL: link}})
}
