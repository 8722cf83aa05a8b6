package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/orderline/orders-bff/internal/api/dto"
	"github.com/orderline/orders-bff/internal/auth"
	"github.com/orderline/orders-bff/internal/service"
	apperrors "github.com/orderline/orders-bff/pkg/util"
)

// AdminHandler serves the reconciliation report and bulk invoice updates.
type AdminHandler struct {
	service *service.ReportService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(reportService *service.ReportService) *AdminHandler {
	return &AdminHandler{service: reportService}
}

// Installers GET /admin/installers?month=&year=.
func (h *AdminHandler) Installers(c *fiber.Ctx) error {
	grouped, err := h.service.Installers(c.UserContext(), c.Query("month"), c.Query("year"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": grouped})
}

// UpdateInstallers PATCH /admin/installers.
func (h *AdminHandler) UpdateInstallers(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateInstallersRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.RecordInvoice(c.UserContext(), principal, req.OpportunityIDs, req.InvoiceNumber)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
