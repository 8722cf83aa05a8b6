// Package report builds the admin reconciliation view.
package report

import (
	"github.com/orderline/orders-bff/internal/config"
	"github.com/orderline/orders-bff/internal/domain"
	"github.com/orderline/orders-bff/internal/fields"
	"github.com/orderline/orders-bff/internal/payment"
)

// Entry is one opportunity in the installer report.
type Entry struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	MonetaryValue float64              `json:"monetaryValue"`
	CustomFields  []domain.CustomField `json:"customFields"`
	PaymentStatus payment.Status       `json:"paymentStatus"`
}

// Builder groups opportunities by installer and annotates each with its payment status.
type Builder struct {
	table *config.CRMTable
	calc  *payment.Calculator
}

// NewBuilder constructs a builder.
func NewBuilder(table *config.CRMTable, calc *payment.Calculator) *Builder {
	return &Builder{table: table, calc: calc}
}

// Build returns installer name to entries. Opportunities with no installer, or marked as not
// needing one, are left out; entries keep only known custom fields.
func (b *Builder) Build(opps []domain.Opportunity) map[string][]Entry {
	known := b.table.KnownFieldIDs()
	installerField := b.table.FieldID(domain.FieldOpportunityInstaller)

	grouped := make(map[string][]Entry)
	for _, opp := range opps {
		if len(opp.CustomFields) == 0 {
			continue
		}
		installer, ok := fields.LookupString(opp.CustomFields, installerField)
		if !ok || installer == "" || installer == b.table.NoInstallerLabel {
			continue
		}

		kept := make([]domain.CustomField, 0, len(opp.CustomFields))
		for _, cf := range opp.CustomFields {
			if _, ok := known[cf.ID]; ok {
				kept = append(kept, cf)
			}
		}
		trimmed := opp
		trimmed.CustomFields = kept

		grouped[installer] = append(grouped[installer], Entry{
			ID:            opp.ID,
			Name:          opp.Name,
			MonetaryValue: opp.MonetaryValue,
			CustomFields:  kept,
			PaymentStatus: b.calc.Calculate(b.calc.InputFor(trimmed)),
		})
	}
	return grouped
}
