package events

import (
	"time"

	"github.com/orderline/orders-bff/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventOpportunityStatusChanged   EventType = "opportunity_status_changed"
	EventOpportunityInvoiceRecorded EventType = "opportunity_invoice_recorded"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Role      domain.Role `json:"role"`
	ContactID string      `json:"contact_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID            string      `json:"id"`
	Type          EventType   `json:"type"`
	OpportunityID string      `json:"opportunity_id"`
	Actor         Actor       `json:"actor"`
	Timestamp     time.Time   `json:"timestamp"`
	Payload       interface{} `json:"payload"`
}

// OpportunityStatusChangedPayload payload.
type OpportunityStatusChangedPayload struct {
	Status        string `json:"status"`
	PreviousStage string `json:"previous_stage,omitempty"`
	NewStage      string `json:"new_stage,omitempty"`
	FieldsWritten int    `json:"fields_written"`
}

// OpportunityInvoiceRecordedPayload payload.
type OpportunityInvoiceRecordedPayload struct {
	InvoiceNumber string `json:"invoice_number"`
}
