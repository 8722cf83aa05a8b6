package crm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderline/orders-bff/internal/domain"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "secret-token", "2021-07-28", 5*time.Second)
	return NewGateway(client, GatewayConfig{LocationID: "loc-1", PipelineID: "pipe-1", PublicURL: "https://api.example.com"}, nil)
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestSearchContactsSendsNormalizedPhone(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/contacts/search", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2021-07-28", r.Header.Get("Version"))

		var body searchContactsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "loc-1", body.LocationID)
		require.Len(t, body.Filters, 1)
		assert.Equal(t, []contactFilter{
			{Field: "email", Operator: "eq", Value: "dana@example.com"},
			{Field: "phone", Operator: "eq", Value: "+972501234567"},
		}, body.Filters[0].Filters)

		writeJSON(t, w, http.StatusOK, map[string]any{
			"contacts": []map[string]any{{"id": "c1", "email": "dana@example.com", "type": "installer"}},
		})
	})

	contacts, err := gw.SearchContacts(context.Background(), "dana@example.com", "0501234567")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, domain.RoleInstaller, contacts[0].Role())
}

func TestSearchContactsEmptyResult(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{})
	})

	contacts, err := gw.SearchContacts(context.Background(), "x@example.com", "1")
	require.NoError(t, err)
	assert.NotNil(t, contacts)
	assert.Empty(t, contacts)
}

func TestFetchOpportunitiesRewritesPaging(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/opportunities/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "loc-1", q.Get("location_id"))
		assert.Equal(t, "pipe-1", q.Get("pipeline_id"))
		assert.Equal(t, "stage-a", q.Get("pipeline_stage_id"))
		assert.Equal(t, "20", q.Get("limit"))
		assert.Equal(t, "100", q.Get("startAfter"))
		assert.Equal(t, "opp-0", q.Get("startAfterId"))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"opportunities": []map[string]any{{"id": "opp-1", "pipelineStageId": "stage-a"}},
			"meta": map[string]any{
				"total":       1,
				"nextPageUrl": "https://crm.example.com/opportunities/search?pipeline_stage_id=stage-a&limit=20&startAfter=200&startAfterId=opp-1",
			},
		})
	})

	page, err := gw.FetchOpportunities(context.Background(), OpportunityQuery{
		StageID: "stage-a", Limit: 20, StartAfter: "100", StartAfterID: "opp-0",
	})
	require.NoError(t, err)
	require.Len(t, page.Opportunities, 1)
	assert.Equal(t, "stage-a", page.Opportunities[0].PipelineStageID)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "https://api.example.com/orders/opportunities?limit=20&stageIds=stage-a&startAfter=200&startAfterId=opp-1", page.NextPageURL)
}

func TestFetchOpportunitiesMissingMetaIsUpstreamError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"opportunities": []any{}})
	})

	_, err := gw.FetchOpportunities(context.Background(), OpportunityQuery{StageID: "s"})
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "fetchOpportunities", upstream.Operation())
}

func TestFetchAllOpportunitiesFollowsPages(t *testing.T) {
	var pages []string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		assert.Equal(t, "06-01-2025", r.URL.Query().Get("date"))
		assert.Equal(t, "06-30-2025", r.URL.Query().Get("endDate"))
		switch page {
		case "":
			writeJSON(t, w, http.StatusOK, map[string]any{
				"opportunities": []map[string]any{{"id": "a"}, {"id": "b"}},
				"meta":          map[string]any{"total": 2, "nextPage": 2},
			})
		case "2":
			writeJSON(t, w, http.StatusOK, map[string]any{
				"opportunities": []map[string]any{{"id": "c"}},
				"meta":          map[string]any{"total": 1, "nextPage": nil},
			})
		default:
			t.Fatalf("unexpected page %q", page)
		}
	})

	opps, total, err := gw.FetchAllOpportunities(context.Background(), OpportunityQuery{Limit: 100, Date: "06-01-2025", EndDate: "06-30-2025"})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "2"}, pages)
	assert.Equal(t, 3, total)
	require.Len(t, opps, 3)
	assert.Equal(t, "c", opps[2].ID)
}

func TestFetchAllOpportunitiesStopsOnRepeatedPage(t *testing.T) {
	var pages []string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		next := map[string]int{"": 2, "2": 1, "1": 2}[page]
		writeJSON(t, w, http.StatusOK, map[string]any{
			"opportunities": []map[string]any{{"id": "p" + page}},
			"meta":          map[string]any{"total": 1, "nextPage": next},
		})
	})

	opps, total, err := gw.FetchAllOpportunities(context.Background(), OpportunityQuery{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "2", "1"}, pages)
	assert.Equal(t, 3, total)
	assert.Len(t, opps, 3)
}

func TestFetchOpportunityNotFound(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "Opportunity not found"})
	})

	_, err := gw.FetchOpportunity(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	var upstream *UpstreamError
	assert.False(t, errors.As(err, &upstream))
}

func TestFetchOpportunityServerErrorIsUpstream(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusInternalServerError, map[string]any{"message": []string{"boom", "again"}})
	})

	_, err := gw.FetchOpportunity(context.Background(), "opp-1")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "fetchOpportunity", upstream.Op)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom; again", apiErr.Message)
}

func TestEditOpportunitySendsStageAndFields(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/opportunities/opp-1", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "stage-paid", body["pipelineStageId"])
		assert.Equal(t, []any{map[string]any{"id": "f1", "field_value": "paid"}}, body["customFields"])

		writeJSON(t, w, http.StatusOK, map[string]any{"opportunity": map[string]any{"id": "opp-1", "pipelineStageId": "stage-paid"}})
	})

	opp, err := gw.EditOpportunity(context.Background(), "opp-1", "stage-paid", []domain.FieldUpdate{{ID: "f1", Value: "paid"}})
	require.NoError(t, err)
	assert.Equal(t, "stage-paid", opp.PipelineStageID)
}

func TestEditOpportunityOmitsEmptyStage(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasStage := body["pipelineStageId"]
		assert.False(t, hasStage)
		writeJSON(t, w, http.StatusOK, map[string]any{"opportunity": map[string]any{"id": "opp-1"}})
	})

	_, err := gw.EditOpportunity(context.Background(), "opp-1", "", []domain.FieldUpdate{{ID: "f1", Value: "x"}})
	require.NoError(t, err)
}

func TestUploadFieldPhoto(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/locations/loc-1/customFields/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "field-img", r.FormValue("id"))
		assert.Equal(t, "1", r.FormValue("maxFiles"))

		file, header, err := r.FormFile("field-img")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "photo.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		assert.Equal(t, "jpeg-bytes", string(data))

		writeJSON(t, w, http.StatusOK, map[string]any{"meta": []map[string]any{{
			"url": "https://cdn.example.com/photo.jpg", "mimetype": "image/jpeg", "originalname": "photo.jpg", "size": 10,
		}}})
	})

	res, err := gw.UploadFieldPhoto(context.Background(), "field-img", domain.FileUpload{
		Name: "photo.jpg", ContentType: "image/jpeg", Data: []byte("jpeg-bytes"),
	})
	require.NoError(t, err)
	require.Len(t, res.Meta, 1)
	assert.Equal(t, "https://cdn.example.com/photo.jpg", res.Meta[0].URL)
	assert.Equal(t, int64(10), res.Meta[0].Size)
}

func TestUploadFieldPhotoRejectsEmptyFile(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := gw.UploadFieldPhoto(context.Background(), "field-img", domain.FileUpload{Name: "x"})
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
}

func TestFetchPipelines(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/opportunities/pipelines", r.URL.Path)
		assert.Equal(t, "loc-1", r.URL.Query().Get("locationId"))
		writeJSON(t, w, http.StatusOK, map[string]any{"pipelines": []map[string]any{{
			"id": "pipe-1", "name": "Orders", "stages": []map[string]any{{"id": "s1", "name": "New", "position": 0}},
		}}})
	})

	pipelines, err := gw.FetchPipelines(context.Background())
	require.NoError(t, err)
	require.Len(t, pipelines, 1)
	assert.Equal(t, "Orders", pipelines[0].Name)
	require.Len(t, pipelines[0].Stages, 1)
}

func TestClientHonoursContextCancellation(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gw.FetchPipelines(ctx)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "fetchPipelines"))
}
