// Package scope decides which opportunities a caller may see.
package scope

import (
	"github.com/orderline/orders-bff/internal/config"
	"github.com/orderline/orders-bff/internal/domain"
	"github.com/orderline/orders-bff/internal/fields"
)

// Caller is the part of the authenticated contact that scoping depends on.
type Caller struct {
	Role         domain.Role
	ContactID    string
	CustomFields []domain.CustomField
}

// Filter applies the per-role visibility of the CRM table.
type Filter struct {
	table *config.CRMTable
}

// NewFilter constructs a filter.
func NewFilter(table *config.CRMTable) *Filter {
	return &Filter{table: table}
}

// Apply keeps the opportunities the caller may list, preserving order.
func (f *Filter) Apply(opps []domain.Opportunity, caller Caller) []domain.Opportunity {
	visible := make([]domain.Opportunity, 0, len(opps))
	switch f.visibility(caller.Role) {
	case config.VisibilityAll:
		return append(visible, opps...)
	case config.VisibilityInstaller:
		identity, ok := f.callerIdentity(caller)
		if !ok {
			return visible
		}
		for _, opp := range opps {
			if f.assignedTo(opp, identity) {
				visible = append(visible, opp)
			}
		}
		return visible
	default:
		return visible
	}
}

// CanAccess reports whether the caller may read or update a single opportunity. Roles that cannot
// list at all may still reach opportunities linked to their own contact.
func (f *Filter) CanAccess(opp domain.Opportunity, caller Caller) bool {
	switch f.visibility(caller.Role) {
	case config.VisibilityAll:
		return true
	case config.VisibilityInstaller:
		identity, ok := f.callerIdentity(caller)
		return ok && f.assignedTo(opp, identity)
	default:
		return caller.ContactID != "" && opp.ContactID == caller.ContactID
	}
}

func (f *Filter) visibility(role domain.Role) config.Visibility {
	rule, ok := f.table.Rule(role)
	if !ok {
		return config.VisibilityNone
	}
	return rule.Visibility
}

func (f *Filter) callerIdentity(caller Caller) (string, bool) {
	identity, ok := fields.LookupString(caller.CustomFields, f.table.FieldID(domain.FieldContactInstaller))
	if !ok || identity == "" {
		return "", false
	}
	return identity, true
}

func (f *Filter) assignedTo(opp domain.Opportunity, identity string) bool {
	assigned, ok := fields.LookupString(opp.CustomFields, f.table.FieldID(domain.FieldOpportunityInstaller))
	return ok && assigned == identity
}
