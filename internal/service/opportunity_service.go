package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orderline/orders-bff/internal/auth"
	"github.com/orderline/orders-bff/internal/cache"
	"github.com/orderline/orders-bff/internal/config"
	"github.com/orderline/orders-bff/internal/crm"
	"github.com/orderline/orders-bff/internal/domain"
	"github.com/orderline/orders-bff/internal/events"
	"github.com/orderline/orders-bff/internal/lifecycle"
	"github.com/orderline/orders-bff/internal/scope"
	apperrors "github.com/orderline/orders-bff/pkg/util"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// OpportunityService serves role-scoped reads and lifecycle updates of opportunities.
type OpportunityService struct {
	gateway    OpportunityGateway
	table      *config.CRMTable
	engine     *lifecycle.Engine
	filter     *scope.Filter
	dispatcher events.Dispatcher
	pipelines  *cache.JSONCache[[]domain.Pipeline]
	logger     *zap.Logger
}

// OpportunityDependencies bundles collaborators.
type OpportunityDependencies struct {
	Gateway     OpportunityGateway
	Table       *config.CRMTable
	Engine      *lifecycle.Engine
	Filter      *scope.Filter
	Dispatcher  events.Dispatcher
	Cache       cache.Store
	CachePrefix string
	PipelineTTL time.Duration
	Logger      *zap.Logger
}

// NewOpportunityService creates the service.
func NewOpportunityService(deps OpportunityDependencies) *OpportunityService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpportunityService{
		gateway:    deps.Gateway,
		table:      deps.Table,
		engine:     deps.Engine,
		filter:     deps.Filter,
		dispatcher: deps.Dispatcher,
		pipelines:  cache.NewJSONCache[[]domain.Pipeline](deps.Cache, deps.CachePrefix+"pipelines:", deps.PipelineTTL, logger),
		logger:     logger,
	}
}

// ListQuery selects opportunities across stages.
type ListQuery struct {
	StageIDs     []string
	Limit        int
	StartAfter   string
	StartAfterID string
}

// ListResult is the combined listing; stages with nothing visible are omitted from Stages.
type ListResult struct {
	Opportunities []domain.Opportunity       `json:"opportunities"`
	Stages        map[string]domain.PageMeta `json:"stages"`
}

// List fetches each requested stage concurrently and returns the visible opportunities in stage order.
func (s *OpportunityService) List(ctx context.Context, principal *auth.Principal, q ListQuery) (*ListResult, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	stageIDs, err := s.stagesFor(principal.Role, q.StageIDs)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	switch {
	case limit < 0:
		return nil, apperrors.NewValidationError("limit must be positive", map[string]any{"field": "limit"})
	case limit == 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	pages := make([]*crm.OpportunityPage, len(stageIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, stageID := range stageIDs {
		g.Go(func() error {
			page, err := s.gateway.FetchOpportunities(gctx, crm.OpportunityQuery{
				StageID:      stageID,
				Limit:        limit,
				StartAfter:   q.StartAfter,
				StartAfterID: q.StartAfterID,
			})
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ListResult{Opportunities: []domain.Opportunity{}, Stages: map[string]domain.PageMeta{}}
	caller := principal.Caller()
	for i, stageID := range stageIDs {
		visible := s.filter.Apply(pages[i].Opportunities, caller)
		if len(visible) == 0 {
			continue
		}
		result.Opportunities = append(result.Opportunities, visible...)
		result.Stages[stageID] = domain.PageMeta{Total: len(visible), NextPageURL: pages[i].NextPageURL}
	}
	return result, nil
}

// Get returns one opportunity the principal may access.
func (s *OpportunityService) Get(ctx context.Context, principal *auth.Principal, id string) (*domain.Opportunity, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewValidationError("opportunity id is required", map[string]any{"field": "opportunityId"})
	}
	if principal.TokenType == auth.TokenTypeHyperlink && principal.HyperlinkOpportunityID != id {
		return nil, apperrors.NewForbidden("hyperlink does not grant access to this opportunity")
	}

	opp, err := s.gateway.FetchOpportunity(ctx, id)
	if err != nil {
		return nil, opportunityError(err, id)
	}
	if principal.TokenType != auth.TokenTypeHyperlink && !s.filter.CanAccess(*opp, principal.Caller()) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return opp, nil
}

// UpdateInput carries a status change and its role-conditional attributes.
type UpdateInput struct {
	Status          string
	StuckReason     string
	InstallDate     string
	InvoiceNumber   string
	ResultImage     *domain.Attachment
	InvoiceImage    *domain.Attachment
	PreInstallImage *domain.Attachment
}

// UpdateResult reports the outcome of an update. Applied is false when nothing needed writing.
type UpdateResult struct {
	Opportunity *domain.Opportunity
	Applied     bool
	Status      lifecycle.Status
	StageID     string
}

// Update validates the transition, uploads supplied files and submits all writes in one edit call.
// Nothing is written when validation fails.
func (s *OpportunityService) Update(ctx context.Context, principal *auth.Principal, id string, input UpdateInput) (*UpdateResult, error) {
	opp, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	plan, err := s.engine.Plan(lifecycle.Request{
		Role:            principal.Role,
		Status:          input.Status,
		StuckReason:     input.StuckReason,
		InstallDate:     input.InstallDate,
		InvoiceNumber:   input.InvoiceNumber,
		ResultImage:     input.ResultImage,
		InvoiceImage:    input.InvoiceImage,
		PreInstallImage: input.PreInstallImage,
		CurrentFields:   opp.CustomFields,
	})
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return &UpdateResult{Opportunity: opp, Status: plan.Status}, nil
	}

	updates := plan.Updates
	for _, upload := range plan.Uploads {
		res, err := s.gateway.UploadFieldPhoto(ctx, upload.FieldID, upload.File)
		if err != nil {
			return nil, err
		}
		stored := res.Meta[0]
		name := stored.OriginalName
		if name == "" {
			name = upload.File.Name
		}
		updates = append(updates, domain.FieldUpdate{
			ID:    upload.FieldID,
			Value: lifecycle.UploadedFile(stored.URL, stored.MimeType, name, stored.Size),
		})
	}

	updated, err := s.gateway.EditOpportunity(ctx, opp.ID, plan.StageID, updates)
	if err != nil {
		return nil, opportunityError(err, opp.ID)
	}
	s.logger.Info("opportunity updated",
		zap.String("opportunity_id", opp.ID),
		zap.String("role", string(principal.Role)),
		zap.String("status", string(plan.Status)),
		zap.String("stage_id", plan.StageID),
		zap.Int("fields", len(updates)))

	s.publish(ctx, principal, events.EventOpportunityStatusChanged, opp.ID, events.OpportunityStatusChangedPayload{
		Status:        string(plan.Status),
		PreviousStage: opp.PipelineStageID,
		NewStage:      plan.StageID,
		FieldsWritten: len(updates),
	})
	return &UpdateResult{Opportunity: updated, Applied: true, Status: plan.Status, StageID: plan.StageID}, nil
}

// Pipelines lists the location's pipelines, served from cache when possible.
func (s *OpportunityService) Pipelines(ctx context.Context) ([]domain.Pipeline, error) {
	const key = "all"
	if cached, ok := s.pipelines.Get(ctx, key); ok {
		return cached, nil
	}
	pipelines, err := s.gateway.FetchPipelines(ctx)
	if err != nil {
		return nil, err
	}
	s.pipelines.Set(ctx, key, pipelines)
	return pipelines, nil
}

func (s *OpportunityService) stagesFor(role domain.Role, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return s.table.DefaultStageIDs(role), nil
	}
	seen := make(map[string]struct{}, len(requested))
	ids := make([]string, 0, len(requested))
	for _, raw := range requested {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if !s.table.KnownStage(id) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown stage id %q", id), map[string]any{"field": "stageIds"})
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return s.table.DefaultStageIDs(role), nil
	}
	return ids, nil
}

func (s *OpportunityService) publish(ctx context.Context, principal *auth.Principal, typ events.EventType, opportunityID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:            uuid.NewString(),
		Type:          typ,
		OpportunityID: opportunityID,
		Actor:         actorOf(principal),
		Timestamp:     time.Now(),
		Payload:       payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(typ)), zap.Error(err))
	}
}

func actorOf(principal *auth.Principal) events.Actor {
	if principal == nil {
		return events.Actor{}
	}
	actor := events.Actor{Role: principal.Role}
	if principal.Contact != nil {
		actor.ContactID = principal.Contact.ID
	}
	return actor
}
