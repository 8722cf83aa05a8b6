package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orderline/orders-bff/internal/cache"
	"github.com/orderline/orders-bff/internal/config"
	"github.com/orderline/orders-bff/internal/crm"
	"github.com/orderline/orders-bff/internal/domain"
	"github.com/orderline/orders-bff/internal/events"
)

const (
	invoiceField          = "invoice-field"
	oppInstallerField     = "opp-installer-field"
	contactInstallerField = "contact-installer-field"
)

func testTable(t *testing.T) *config.CRMTable {
	t.Helper()
	table, err := config.LoadCRMTable("")
	require.NoError(t, err)
	table.Fields[domain.FieldInvoiceNumber] = invoiceField
	table.Fields[domain.FieldInstallationCost] = "cost-field"
	table.Fields[domain.FieldTotalPrice] = "total-field"
	table.Fields[domain.FieldOpportunityInstaller] = oppInstallerField
	table.Fields[domain.FieldContactInstaller] = contactInstallerField
	return table
}

type editCall struct {
	ID      string
	StageID string
	Updates []domain.FieldUpdate
}

type uploadCall struct {
	FieldID string
	File    domain.FileUpload
}

type fakeGateway struct {
	mu sync.Mutex

	pages       map[string]*crm.OpportunityPage
	pageErr     map[string]error
	queries     []crm.OpportunityQuery
	all         []domain.Opportunity
	opps        map[string]*domain.Opportunity
	editErr     map[string]error
	edits       []editCall
	uploads     []uploadCall
	uploadMeta  crm.UploadedFile
	pipelines   []domain.Pipeline
	pipelineHit int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		pages:   map[string]*crm.OpportunityPage{},
		pageErr: map[string]error{},
		opps:    map[string]*domain.Opportunity{},
		editErr: map[string]error{},
	}
}

func (f *fakeGateway) FetchOpportunities(_ context.Context, q crm.OpportunityQuery) (*crm.OpportunityPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err := f.pageErr[q.StageID]; err != nil {
		return nil, err
	}
	if page, ok := f.pages[q.StageID]; ok {
		return page, nil
	}
	return &crm.OpportunityPage{Opportunities: []domain.Opportunity{}}, nil
}

func (f *fakeGateway) FetchAllOpportunities(_ context.Context, q crm.OpportunityQuery) ([]domain.Opportunity, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.all, len(f.all), nil
}

func (f *fakeGateway) FetchOpportunity(_ context.Context, id string) (*domain.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	opp, ok := f.opps[id]
	if !ok {
		return nil, fmt.Errorf("opportunity %s: %w", id, crm.ErrNotFound)
	}
	clone := *opp
	return &clone, nil
}

func (f *fakeGateway) EditOpportunity(_ context.Context, id, stageID string, updates []domain.FieldUpdate) (*domain.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editErr[id]; err != nil {
		return nil, err
	}
	f.edits = append(f.edits, editCall{ID: id, StageID: stageID, Updates: updates})
	opp := domain.Opportunity{ID: id, PipelineStageID: stageID}
	if current, ok := f.opps[id]; ok {
		opp = *current
		if stageID != "" {
			opp.PipelineStageID = stageID
		}
	}
	return &opp, nil
}

func (f *fakeGateway) UploadFieldPhoto(_ context.Context, fieldID string, file domain.FileUpload) (*crm.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, uploadCall{FieldID: fieldID, File: file})
	return &crm.UploadResult{Meta: []crm.UploadedFile{f.uploadMeta}}, nil
}

func (f *fakeGateway) FetchPipelines(_ context.Context) ([]domain.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pipelineHit++
	return f.pipelines, nil
}

type fakeDirectory struct {
	mu       sync.Mutex
	contacts []domain.Contact
	err      error
	calls    int
}

func (f *fakeDirectory) SearchContacts(_ context.Context, _, _ string) ([]domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.contacts, f.err
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string][]byte{}}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return val, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// recorder subscribes to every event type and keeps what it sees.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func newRecorder() (events.Dispatcher, *recorder) {
	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	handler := func(_ context.Context, event events.Event) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.events = append(rec.events, event)
		return nil
	}
	dispatcher.Subscribe(events.EventOpportunityStatusChanged, handler)
	dispatcher.Subscribe(events.EventOpportunityInvoiceRecorded, handler)
	return dispatcher, rec
}
