package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderline/orders-bff/internal/auth"
	"github.com/orderline/orders-bff/internal/config"
	"github.com/orderline/orders-bff/internal/crm"
	"github.com/orderline/orders-bff/internal/domain"
	"github.com/orderline/orders-bff/internal/events"
	"github.com/orderline/orders-bff/internal/report"
	apperrors "github.com/orderline/orders-bff/pkg/util"
)

const reportPageSize = 100

// ReportService backs the admin reconciliation endpoints.
type ReportService struct {
	gateway    OpportunityGateway
	table      *config.CRMTable
	builder    *report.Builder
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewReportService creates the service.
func NewReportService(gateway OpportunityGateway, table *config.CRMTable, builder *report.Builder, dispatcher events.Dispatcher, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{gateway: gateway, table: table, builder: builder, dispatcher: dispatcher, logger: logger}
}

// Installers returns the month's opportunities grouped by installer with their payment status.
func (s *ReportService) Installers(ctx context.Context, month, year string) (map[string][]report.Entry, error) {
	start, end, err := report.DateRange(month, year)
	if err != nil {
		return nil, err
	}
	opps, _, err := s.gateway.FetchAllOpportunities(ctx, crm.OpportunityQuery{Limit: reportPageSize, Date: start, EndDate: end})
	if err != nil {
		return nil, err
	}
	return s.builder.Build(opps), nil
}

// BulkInvoiceResult lists the opportunities that received the invoice number.
type BulkInvoiceResult struct {
	OpportunityIDs []string `json:"opportunityIds"`
	InvoiceNumber  string   `json:"invoiceNumber"`
}

// RecordInvoice writes the invoice number to each opportunity in order. The first failure aborts the
// run naming that id; updates already applied are kept. An empty invoice number writes nothing.
func (s *ReportService) RecordInvoice(ctx context.Context, principal *auth.Principal, opportunityIDs []string, invoiceNumber string) (*BulkInvoiceResult, error) {
	if len(opportunityIDs) == 0 {
		return nil, apperrors.NewValidationError("no opportunities provided for update", map[string]any{"field": "opportunityIds"})
	}
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	result := &BulkInvoiceResult{OpportunityIDs: []string{}, InvoiceNumber: invoiceNumber}
	if invoiceNumber == "" {
		return result, nil
	}
	fieldID := s.table.FieldID(domain.FieldInvoiceNumber)
	if fieldID == "" {
		return nil, apperrors.NewInternalError(errors.New("invoice number field is not configured"))
	}

	updates := []domain.FieldUpdate{{ID: fieldID, Value: invoiceNumber}}
	for _, raw := range opportunityIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, apperrors.NewValidationError("opportunity ids must not be empty", map[string]any{"field": "opportunityIds"})
		}
		if _, err := s.gateway.EditOpportunity(ctx, id, "", updates); err != nil {
			s.logger.Error("bulk invoice update aborted",
				zap.String("opportunity_id", id),
				zap.Int("applied", len(result.OpportunityIDs)),
				zap.Error(err))
			details := map[string]any{"opportunityId": id, "applied": result.OpportunityIDs}
			if errors.Is(err, crm.ErrNotFound) {
				return nil, apperrors.NewNotFound("opportunity", details)
			}
			return nil, apperrors.NewUpstreamError(fmt.Sprintf("failed to update opportunity %s", id), err, details)
		}
		result.OpportunityIDs = append(result.OpportunityIDs, id)
		s.publish(ctx, principal, id, invoiceNumber)
	}
	return result, nil
}

func (s *ReportService) publish(ctx context.Context, principal *auth.Principal, opportunityID, invoiceNumber string) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:            uuid.NewString(),
		Type:          events.EventOpportunityInvoiceRecorded,
		OpportunityID: opportunityID,
		Actor:         actorOf(principal),
		Timestamp:     time.Now(),
		Payload:       events.OpportunityInvoiceRecordedPayload{InvoiceNumber: invoiceNumber},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
