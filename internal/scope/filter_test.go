package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderline/orders-bff/internal/config"
	"github.com/orderline/orders-bff/internal/domain"
)

const (
	oppInstallerField     = "opp-installer-field"
	contactInstallerField = "contact-installer-field"
)

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	table, err := config.LoadCRMTable("")
	require.NoError(t, err)
	table.Fields[domain.FieldOpportunityInstaller] = oppInstallerField
	table.Fields[domain.FieldContactInstaller] = contactInstallerField
	return NewFilter(table)
}

func opportunity(id, installer string) domain.Opportunity {
	opp := domain.Opportunity{ID: id, ContactID: "contact-" + id}
	if installer != "" {
		opp.CustomFields = []domain.CustomField{{ID: oppInstallerField, Value: installer}}
	}
	return opp
}

func installerCaller(identity string) Caller {
	caller := Caller{Role: domain.RoleInstaller, ContactID: "installer-contact"}
	if identity != "" {
		caller.CustomFields = []domain.CustomField{{ID: contactInstallerField, Value: identity}}
	}
	return caller
}

func ids(opps []domain.Opportunity) []string {
	out := make([]string, 0, len(opps))
	for _, o := range opps {
		out = append(out, o.ID)
	}
	return out
}

func TestApplyUnfilteredRoles(t *testing.T) {
	filter := newTestFilter(t)
	opps := []domain.Opportunity{opportunity("1", "alice"), opportunity("2", ""), opportunity("3", "bob")}

	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleWarehouse, domain.RoleEmployee} {
		got := filter.Apply(opps, Caller{Role: role})
		assert.Equal(t, []string{"1", "2", "3"}, ids(got), role)
	}
}

func TestApplyInstallerSeesOnlyOwnOpportunities(t *testing.T) {
	filter := newTestFilter(t)
	opps := []domain.Opportunity{
		opportunity("1", "alice"),
		opportunity("2", ""),
		opportunity("3", "bob"),
		opportunity("4", "alice"),
	}

	got := filter.Apply(opps, installerCaller("alice"))
	assert.Equal(t, []string{"1", "4"}, ids(got))
}

func TestApplyInstallerWithoutIdentitySeesNothing(t *testing.T) {
	filter := newTestFilter(t)
	got := filter.Apply([]domain.Opportunity{opportunity("1", "alice")}, installerCaller(""))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestApplyOtherRolesSeeNothing(t *testing.T) {
	filter := newTestFilter(t)
	opps := []domain.Opportunity{opportunity("1", "alice")}

	assert.Empty(t, filter.Apply(opps, Caller{Role: domain.RoleCustomer, ContactID: "contact-1"}))
	assert.Empty(t, filter.Apply(opps, Caller{Role: "robot"}))
}

func TestCanAccess(t *testing.T) {
	filter := newTestFilter(t)
	opp := opportunity("1", "alice")

	assert.True(t, filter.CanAccess(opp, Caller{Role: domain.RoleAdmin}))
	assert.True(t, filter.CanAccess(opp, installerCaller("alice")))
	assert.False(t, filter.CanAccess(opp, installerCaller("bob")))
	assert.False(t, filter.CanAccess(opportunity("2", ""), installerCaller("alice")))

	assert.True(t, filter.CanAccess(opp, Caller{Role: domain.RoleCustomer, ContactID: "contact-1"}))
	assert.False(t, filter.CanAccess(opp, Caller{Role: domain.RoleCustomer, ContactID: "someone-else"}))
	assert.False(t, filter.CanAccess(domain.Opportunity{ID: "3"}, Caller{Role: domain.RoleCustomer}))
}
