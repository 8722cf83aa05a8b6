package crm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/orderline/orders-bff/internal/domain"
)

// GatewayConfig locates this service's data inside the CRM.
type GatewayConfig struct {
	LocationID string
	PipelineID string
	// PublicURL is the base URL that paging links are rewritten onto.
	PublicURL string
}

// Gateway is the typed boundary to the CRM. Every failure is logged and returned as *UpstreamError;
// absent records are reported with ErrNotFound.
type Gateway struct {
	client *Client
	cfg    GatewayConfig
	logger *zap.Logger
}

// NewGateway constructs the gateway.
func NewGateway(client *Client, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{client: client, cfg: cfg, logger: logger}
}

// OpportunityQuery selects a page of opportunities.
type OpportunityQuery struct {
	StageID      string
	Limit        int
	StartAfter   string
	StartAfterID string
	Page         int
	Date         string
	EndDate      string
}

// OpportunityPage is one page of search results.
type OpportunityPage struct {
	Opportunities []domain.Opportunity
	Total         int
	// NextPageURL is already rewritten into this service's route shape.
	NextPageURL string
	NextPage    int
}

// UploadedFile describes a file stored by the CRM.
type UploadedFile struct {
	URL          string `json:"url"`
	MimeType     string `json:"mimetype"`
	OriginalName string `json:"originalname"`
	Size         int64  `json:"size"`
}

// UploadResult is the CRM response to a custom-field upload.
type UploadResult struct {
	Meta []UploadedFile `json:"meta"`
}

type searchMeta struct {
	Total       int    `json:"total"`
	NextPageURL string `json:"nextPageUrl"`
	NextPage    *int   `json:"nextPage"`
}

type searchOpportunitiesResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
	Meta          *searchMeta          `json:"meta"`
}

type opportunityResponse struct {
	Opportunity *domain.Opportunity `json:"opportunity"`
}

type searchContactsResponse struct {
	Contacts []domain.Contact `json:"contacts"`
}

type pipelinesResponse struct {
	Pipelines []domain.Pipeline `json:"pipelines"`
}

type contactFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type contactFilterGroup struct {
	Group   string          `json:"group"`
	Filters []contactFilter `json:"filters"`
}

type searchContactsRequest struct {
	LocationID string               `json:"locationId"`
	PageLimit  int                  `json:"pageLimit"`
	Filters    []contactFilterGroup `json:"filters"`
}

type editOpportunityRequest struct {
	PipelineStageID string               `json:"pipelineStageId,omitempty"`
	CustomFields    []domain.FieldUpdate `json:"customFields"`
}

// SearchContacts finds contacts matching both email and phone.
func (g *Gateway) SearchContacts(ctx context.Context, email, phone string) ([]domain.Contact, error) {
	const op = "searchContacts"
	payload := searchContactsRequest{
		LocationID: g.cfg.LocationID,
		PageLimit:  1,
		Filters: []contactFilterGroup{{
			Group: "AND",
			Filters: []contactFilter{
				{Field: "email", Operator: "eq", Value: email},
				{Field: "phone", Operator: "eq", Value: NormalizePhone(phone)},
			},
		}},
	}
	var resp searchContactsResponse
	if err := g.client.CallJSON(ctx, http.MethodPost, "/contacts/search", nil, payload, &resp); err != nil {
		return nil, g.fail(op, err)
	}
	if resp.Contacts == nil {
		return []domain.Contact{}, nil
	}
	return resp.Contacts, nil
}

// FetchOpportunities returns one page of opportunities of the configured pipeline.
func (g *Gateway) FetchOpportunities(ctx context.Context, q OpportunityQuery) (*OpportunityPage, error) {
	const op = "fetchOpportunities"
	params := url.Values{}
	params.Set("location_id", g.cfg.LocationID)
	if g.cfg.PipelineID != "" {
		params.Set("pipeline_id", g.cfg.PipelineID)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	setIfPresent(params, "pipeline_stage_id", q.StageID)
	setIfPresent(params, "startAfter", q.StartAfter)
	setIfPresent(params, "startAfterId", q.StartAfterID)
	setIfPresent(params, "date", q.Date)
	setIfPresent(params, "endDate", q.EndDate)
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}

	var resp searchOpportunitiesResponse
	if err := g.client.CallJSON(ctx, http.MethodGet, "/opportunities/search", params, nil, &resp); err != nil {
		return nil, g.fail(op, err)
	}
	if resp.Opportunities == nil || resp.Meta == nil {
		return nil, g.fail(op, errors.New("response missing opportunities or meta"))
	}

	page := &OpportunityPage{
		Opportunities: resp.Opportunities,
		Total:         resp.Meta.Total,
		NextPageURL:   RewriteNextPageURL(g.cfg.PublicURL, resp.Meta.NextPageURL),
	}
	if resp.Meta.NextPage != nil {
		page.NextPage = *resp.Meta.NextPage
	}
	return page, nil
}

// FetchAllOpportunities follows page numbers until the CRM reports no next page
// or points back at a page already fetched.
func (g *Gateway) FetchAllOpportunities(ctx context.Context, q OpportunityQuery) ([]domain.Opportunity, int, error) {
	var (
		all   []domain.Opportunity
		total int
	)
	q.Page = 0
	q.StartAfter, q.StartAfterID = "", ""
	visited := map[int]struct{}{}
	for {
		visited[q.Page] = struct{}{}
		page, err := g.FetchOpportunities(ctx, q)
		if err != nil {
			return nil, 0, err
		}
		all = append(all, page.Opportunities...)
		total += page.Total
		if page.NextPage <= 0 {
			break
		}
		if _, seen := visited[page.NextPage]; seen {
			g.logger.Warn("crm pagination revisits a page; stopping",
				zap.Int("page", q.Page), zap.Int("next_page", page.NextPage))
			break
		}
		q.Page = page.NextPage
	}
	return all, total, nil
}

// FetchOpportunity loads a single opportunity.
func (g *Gateway) FetchOpportunity(ctx context.Context, id string) (*domain.Opportunity, error) {
	const op = "fetchOpportunity"
	if id == "" {
		return nil, fmt.Errorf("opportunity id required: %w", ErrNotFound)
	}
	var resp opportunityResponse
	if err := g.client.CallJSON(ctx, http.MethodGet, "/opportunities/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
		}
		return nil, g.fail(op, err)
	}
	if resp.Opportunity == nil {
		return nil, fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
	}
	return resp.Opportunity, nil
}

// EditOpportunity writes custom fields and, when stageID is set, moves the opportunity.
func (g *Gateway) EditOpportunity(ctx context.Context, id, stageID string, updates []domain.FieldUpdate) (*domain.Opportunity, error) {
	const op = "editOpportunity"
	if id == "" {
		return nil, fmt.Errorf("opportunity id required: %w", ErrNotFound)
	}
	if updates == nil {
		updates = []domain.FieldUpdate{}
	}
	payload := editOpportunityRequest{PipelineStageID: stageID, CustomFields: updates}
	var resp opportunityResponse
	if err := g.client.CallJSON(ctx, http.MethodPut, "/opportunities/"+url.PathEscape(id), nil, payload, &resp); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
		}
		return nil, g.fail(op, err)
	}
	if resp.Opportunity == nil {
		return nil, g.fail(op, errors.New("response missing opportunity"))
	}
	return resp.Opportunity, nil
}

// UploadFieldPhoto stores a file against a file custom field.
func (g *Gateway) UploadFieldPhoto(ctx context.Context, fieldID string, file domain.FileUpload) (*UploadResult, error) {
	const op = "uploadFieldPhoto"
	if fieldID == "" || len(file.Data) == 0 {
		return nil, g.fail(op, errors.New("field id and file content required"))
	}

	name := file.Name
	if name == "" {
		name = "upload.png"
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldID, name))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, g.fail(op, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, g.fail(op, err)
	}
	if err := writer.WriteField("id", fieldID); err != nil {
		return nil, g.fail(op, err)
	}
	if err := writer.WriteField("maxFiles", "1"); err != nil {
		return nil, g.fail(op, err)
	}
	if err := writer.Close(); err != nil {
		return nil, g.fail(op, err)
	}

	endpoint := "/locations/" + url.PathEscape(g.cfg.LocationID) + "/customFields/upload"
	var resp UploadResult
	if err := g.client.Call(ctx, http.MethodPost, endpoint, nil, &body, writer.FormDataContentType(), &resp); err != nil {
		return nil, g.fail(op, err)
	}
	if len(resp.Meta) == 0 || resp.Meta[0].URL == "" {
		return nil, g.fail(op, errors.New("upload response missing file meta"))
	}
	return &resp, nil
}

// FetchPipelines lists the location's pipelines.
func (g *Gateway) FetchPipelines(ctx context.Context) ([]domain.Pipeline, error) {
	const op = "fetchPipelines"
	params := url.Values{}
	params.Set("locationId", g.cfg.LocationID)
	var resp pipelinesResponse
	if err := g.client.CallJSON(ctx, http.MethodGet, "/opportunities/pipelines", params, nil, &resp); err != nil {
		return nil, g.fail(op, err)
	}
	if resp.Pipelines == nil {
		return []domain.Pipeline{}, nil
	}
	return resp.Pipelines, nil
}

func (g *Gateway) fail(op string, err error) error {
	g.logger.Error("crm call failed", zap.String("operation", op), zap.Error(err))
	return &UpstreamError{Op: op, Err: err}
}

func setIfPresent(params url.Values, key, val string) {
	if val != "" {
		params.Set(key, val)
	}
}
