package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderline/orders-bff/internal/auth"
	"github.com/orderline/orders-bff/internal/config"
	"github.com/orderline/orders-bff/internal/domain"
	"github.com/orderline/orders-bff/internal/scope"
)

func testConfig() config.Config {
	return config.Config{
		App:   config.AppConfig{Name: "bff", HyperlinkBaseURL: "https://app.example.com"},
		Auth:  config.AuthConfig{JWTSecret: "secret", AccessTokenTTLMinutes: 60, RefreshTokenTTLMinutes: 600, HyperlinkTokenTTLMinutes: 120},
		Cache: config.CacheConfig{ContactTTLSeconds: 60},
	}
}

func newAuthService(dir *fakeDirectory, store *memoryStore) *AuthService {
	return newAuthServiceWith(nil, dir, newFakeGateway(), store)
}

func newAuthServiceWith(t *testing.T, dir *fakeDirectory, gw *fakeGateway, store *memoryStore) *AuthService {
	deps := AuthDependencies{Directory: dir, Opportunities: gw}
	if t != nil {
		deps.Filter = scope.NewFilter(testTable(t))
	}
	if store != nil {
		deps.Cache = store
	}
	return NewAuthService(testConfig(), deps)
}

var validCreds = Credentials{Email: "ana@example.com", Phone: "+1 555 0100"}

func TestLoginIssuesTokenPair(t *testing.T) {
	dir := &fakeDirectory{contacts: []domain.Contact{{ID: "c-1", Type: "installer"}}}
	svc := newAuthService(dir, nil)

	pair, err := svc.Login(context.Background(), validCreds)
	require.NoError(t, err)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	claims, err := svc.TokenManager().ParseToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeAccess, claims.Type)
	assert.Equal(t, "c-1", claims.ContactID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, "+1 555 0100", claims.Phone)
	assert.Equal(t, domain.RoleInstaller, claims.Role)

	refresh, err := svc.TokenManager().ParseToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeRefresh, refresh.Type)
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()

	_, err := newAuthService(&fakeDirectory{}, nil).Login(ctx, Credentials{Email: "ana@example.com"})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))

	_, err = newAuthService(&fakeDirectory{}, nil).Login(ctx, validCreds)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, err))

	noRole := &fakeDirectory{contacts: []domain.Contact{{ID: "c-1", Type: "lead"}}}
	_, err = newAuthService(noRole, nil).Login(ctx, validCreds)
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))
}

func TestResolveContactUsesCache(t *testing.T) {
	dir := &fakeDirectory{contacts: []domain.Contact{{ID: "c-1", Type: "admin"}}}
	store := newMemoryStore()
	svc := newAuthService(dir, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		contact, err := svc.ResolveContact(ctx, "Ana@Example.com", "+1 555 0100")
		require.NoError(t, err)
		assert.Equal(t, "c-1", contact.ID)
	}
	assert.Equal(t, 1, dir.calls)
	require.Len(t, store.entries, 1)
	for key := range store.entries {
		assert.True(t, strings.HasPrefix(key, "bff:contact:"))
		assert.NotContains(t, key, "example")
	}
}

func TestResolveContactGone(t *testing.T) {
	svc := newAuthService(&fakeDirectory{}, nil)
	_, err := svc.ResolveContact(context.Background(), "ana@example.com", "+15550100")
	assert.ErrorIs(t, err, auth.ErrContactGone)
}

func TestRefresh(t *testing.T) {
	dir := &fakeDirectory{contacts: []domain.Contact{{ID: "c-1", Type: "warehouse"}}}
	store := newMemoryStore()
	svc := newAuthService(dir, store)
	ctx := context.Background()

	pair, err := svc.Login(ctx, validCreds)
	require.NoError(t, err)
	callsAfterLogin := dir.calls

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, callsAfterLogin+1, dir.calls, "refresh always revalidates against the directory")

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, err))

	_, err = svc.Refresh(ctx, "")
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))

	dir.contacts = nil
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, err))

	dir.err = errors.New("crm down")
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.EqualError(t, err, "crm down")
}

func TestHyperlink(t *testing.T) {
	dir := &fakeDirectory{contacts: []domain.Contact{{ID: "c-1", Type: "customer"}}}
	gw := newFakeGateway()
	gw.opps["opp 1"] = &domain.Opportunity{ID: "opp 1", ContactID: "c-1"}
	svc := newAuthServiceWith(t, dir, gw, nil)

	link, err := svc.Hyperlink(context.Background(), validCreds, "opp 1")
	require.NoError(t, err)

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", parsed.Host)
	assert.Equal(t, "/order/opp 1/view", parsed.Path)

	claims, err := svc.TokenManager().ParseToken(parsed.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeHyperlink, claims.Type)
	assert.Equal(t, "opp 1", claims.OpportunityID)
	assert.Equal(t, domain.RoleCustomer, claims.Role)

	_, err = svc.Hyperlink(context.Background(), validCreds, " ")
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))
}

func TestHyperlinkRequiresAccessToOpportunity(t *testing.T) {
	ctx := context.Background()
	installer := func(name string) *fakeDirectory {
		return &fakeDirectory{contacts: []domain.Contact{{
			ID:           "c-" + name,
			Type:         "installer",
			CustomFields: []domain.CustomField{{ID: contactInstallerField, Value: name}},
		}}}
	}
	gw := newFakeGateway()
	opp := assignedTo("o1", "alice")
	gw.opps["o1"] = &opp

	link, err := newAuthServiceWith(t, installer("alice"), gw, nil).Hyperlink(ctx, validCreds, "o1")
	require.NoError(t, err)
	assert.Contains(t, link, "/order/o1/view?token=")

	_, err = newAuthServiceWith(t, installer("bob"), gw, nil).Hyperlink(ctx, validCreds, "o1")
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))

	_, err = newAuthServiceWith(t, installer("alice"), gw, nil).Hyperlink(ctx, validCreds, "missing")
	assert.Equal(t, "NOT_FOUND", errorCode(t, err))

	customer := &fakeDirectory{contacts: []domain.Contact{{ID: "someone-else", Type: "customer"}}}
	_, err = newAuthServiceWith(t, customer, gw, nil).Hyperlink(ctx, validCreds, "o1")
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))

	admin := &fakeDirectory{contacts: []domain.Contact{{ID: "c-admin", Type: "admin"}}}
	_, err = newAuthServiceWith(t, admin, gw, nil).Hyperlink(ctx, validCreds, "o1")
	assert.NoError(t, err)
}
