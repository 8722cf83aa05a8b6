package service

import (
	"context"
	"errors"

	"github.com/orderline/orders-bff/internal/crm"
	"github.com/orderline/orders-bff/internal/domain"
	apperrors "github.com/orderline/orders-bff/pkg/util"
)

// ContactDirectory looks contacts up by their login credentials.
type ContactDirectory interface {
	SearchContacts(ctx context.Context, email, phone string) ([]domain.Contact, error)
}

// OpportunityReader loads a single opportunity by id.
type OpportunityReader interface {
	FetchOpportunity(ctx context.Context, id string) (*domain.Opportunity, error)
}

// OpportunityGateway is the part of the CRM the order flows depend on.
type OpportunityGateway interface {
	FetchOpportunities(ctx context.Context, q crm.OpportunityQuery) (*crm.OpportunityPage, error)
	FetchAllOpportunities(ctx context.Context, q crm.OpportunityQuery) ([]domain.Opportunity, int, error)
	FetchOpportunity(ctx context.Context, id string) (*domain.Opportunity, error)
	EditOpportunity(ctx context.Context, id, stageID string, updates []domain.FieldUpdate) (*domain.Opportunity, error)
	UploadFieldPhoto(ctx context.Context, fieldID string, file domain.FileUpload) (*crm.UploadResult, error)
	FetchPipelines(ctx context.Context) ([]domain.Pipeline, error)
}

var (
	_ ContactDirectory   = (*crm.Gateway)(nil)
	_ OpportunityReader  = (*crm.Gateway)(nil)
	_ OpportunityGateway = (*crm.Gateway)(nil)
)

func opportunityError(err error, id string) error {
	if errors.Is(err, crm.ErrNotFound) {
		return apperrors.NewNotFound("opportunity", map[string]any{"opportunityId": id})
	}
	return err
}
