package handlers

import (
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/orderline/orders-bff/internal/api/dto"
	"github.com/orderline/orders-bff/internal/auth"
	"github.com/orderline/orders-bff/internal/domain"
	"github.com/orderline/orders-bff/internal/service"
	apperrors "github.com/orderline/orders-bff/pkg/util"
)

// MaxImageBytes bounds a single uploaded image.
const MaxImageBytes = 10 << 20

// OpportunitiesHandler manages the order endpoints.
type OpportunitiesHandler struct {
	service *service.OpportunityService
}

// NewOpportunitiesHandler constructs handler.
func NewOpportunitiesHandler(opportunityService *service.OpportunityService) *OpportunitiesHandler {
	return &OpportunitiesHandler{service: opportunityService}
}

// List GET /orders/opportunities.
func (h *OpportunitiesHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	query, err := parseListQuery(c)
	if err != nil {
		return err
	}
	result, err := h.service.List(c.UserContext(), principal, query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// Get GET /orders/opportunities/:opportunityId.
func (h *OpportunitiesHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	opp, err := h.service.Get(c.UserContext(), principal, c.Params("opportunityId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": opp})
}

// Update PATCH /orders/opportunities/:opportunityId.
func (h *OpportunitiesHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateOpportunityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input := service.UpdateInput{
		Status:        req.Status,
		StuckReason:   req.StuckReason,
		InstallDate:   req.InstallDate,
		InvoiceNumber: req.InvoiceNumber,
	}
	var err error
	if input.ResultImage, err = attachment(c, "resultImage", req.ResultImage); err != nil {
		return err
	}
	if input.InvoiceImage, err = attachment(c, "invoiceImage", req.InvoiceImage); err != nil {
		return err
	}
	if input.PreInstallImage, err = attachment(c, "preInstallImage", req.PreInstallImage); err != nil {
		return err
	}

	result, err := h.service.Update(c.UserContext(), principal, c.Params("opportunityId"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": result.Opportunity,
		"meta": dto.UpdateOpportunityMeta{
			Applied: result.Applied,
			Status:  string(result.Status),
			StageID: result.StageID,
		},
	})
}

// Pipelines GET /orders/pipelines.
func (h *OpportunitiesHandler) Pipelines(c *fiber.Ctx) error {
	pipelines, err := h.service.Pipelines(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pipelines})
}

func parseListQuery(c *fiber.Ctx) (service.ListQuery, error) {
	query := service.ListQuery{
		StartAfter:   strings.TrimSpace(c.Query("startAfter")),
		StartAfterID: strings.TrimSpace(c.Query("startAfterId")),
	}
	if raw := strings.TrimSpace(c.Query("stageIds")); raw != "" {
		query.StageIDs = strings.Split(raw, ",")
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return query, apperrors.NewValidationError("limit must be a positive integer", map[string]any{"field": "limit"})
		}
		query.Limit = limit
	}
	return query, nil
}

// attachment prefers an uploaded file over a URL sent under the same name.
func attachment(c *fiber.Ctx, name, url string) (*domain.Attachment, error) {
	header, err := c.FormFile(name)
	if err != nil {
		url = strings.TrimSpace(url)
		if url == "" {
			return nil, nil
		}
		return &domain.Attachment{URL: url}, nil
	}
	if header.Size > MaxImageBytes {
		return nil, apperrors.NewValidationError(name+" exceeds the size limit", map[string]any{"field": name, "maxBytes": MaxImageBytes})
	}
	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("unable to read "+name, map[string]any{"field": name})
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewValidationError("unable to read "+name, map[string]any{"field": name})
	}
	if len(data) == 0 {
		return nil, apperrors.NewValidationError(name+" is empty", map[string]any{"field": name})
	}
	return &domain.Attachment{File: &domain.FileUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}}, nil
}
