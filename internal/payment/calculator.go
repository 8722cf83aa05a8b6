// Package payment derives who owes whom for a finished opportunity.
package payment

import (
	"math"

	"github.com/orderline/orders-bff/internal/config"
	"github.com/orderline/orders-bff/internal/domain"
	"github.com/orderline/orders-bff/internal/fields"
)

// InstallMarkup is applied to the installation cost (tax included).
const InstallMarkup = 1.18

// Direction of the money flow.
type Direction string

const (
	DirectionCompanyToInstaller Direction = "Company → Installer"
	DirectionInstallerToCompany Direction = "Installer → Company"
	DirectionNone               Direction = "None"
)

// Method is how the installer settles with the company.
type Method string

const (
	MethodCash Method = "cash"
	MethodCard Method = "card"
)

// Input holds resolved custom-field values; nil means absent.
type Input struct {
	PaymentOption string
	InvoiceNumber any
	InstallCost   any
	TotalPrice    any
	StageID       string
}

// Status is the reconciliation outcome of one opportunity.
type Status struct {
	InvoiceNumber              any       `json:"invoiceNumber"`
	CompanyOwesInstaller       bool      `json:"companyOwesInstaller"`
	CompanyOwesInstallerAmount *float64  `json:"companyOwesInstallerAmount"`
	InstallerOwesCompany       bool      `json:"installerOwesCompany"`
	InstallerOwesCompanyAmount *float64  `json:"installerOwesCompanyAmount"`
	Direction                  Direction `json:"direction"`
	Method                     *Method   `json:"method"`
}

// Calculator is pure; identical input always yields identical output.
type Calculator struct {
	options     config.PaymentOptions
	unpaidStage string
	table       *config.CRMTable
}

// NewCalculator binds the payment labels and the unpaid-final stage.
func NewCalculator(table *config.CRMTable) *Calculator {
	return &Calculator{options: table.PaymentOptions, unpaidStage: table.Stages.UnpaidFinal, table: table}
}

// InputFor resolves the calculator input from an opportunity's custom fields.
func (c *Calculator) InputFor(opp domain.Opportunity) Input {
	in := Input{StageID: opp.PipelineStageID}
	if option, ok := fields.LookupString(opp.CustomFields, c.table.FieldID(domain.FieldPaymentOption)); ok {
		in.PaymentOption = option
	}
	in.InvoiceNumber, _ = fields.Lookup(opp.CustomFields, c.table.FieldID(domain.FieldInvoiceNumber))
	in.InstallCost, _ = fields.Lookup(opp.CustomFields, c.table.FieldID(domain.FieldInstallationCost))
	in.TotalPrice, _ = fields.Lookup(opp.CustomFields, c.table.FieldID(domain.FieldTotalPrice))
	return in
}

// Calculate derives the payment status.
func (c *Calculator) Calculate(in Input) Status {
	out := Status{InvoiceNumber: in.InvoiceNumber, Direction: DirectionNone}

	upfront := c.options.IsUpfront(in.PaymentOption)
	out.CompanyOwesInstaller = in.PaymentOption != "" &&
		in.PaymentOption == c.options.Complete &&
		!fields.Truthy(in.InvoiceNumber)
	out.InstallerOwesCompany = upfront && in.StageID != "" && in.StageID == c.unpaidStage

	if out.CompanyOwesInstaller && fields.Truthy(in.InstallCost) {
		if cost, ok := whole(in.InstallCost); ok {
			out.CompanyOwesInstallerAmount = ptr(Round(cost * InstallMarkup))
		}
	}
	if out.InstallerOwesCompany && fields.Truthy(in.TotalPrice) && fields.Truthy(in.InstallCost) {
		total, okTotal := whole(in.TotalPrice)
		cost, okCost := whole(in.InstallCost)
		if okTotal && okCost {
			out.InstallerOwesCompanyAmount = ptr(Round(total - cost*InstallMarkup))
		}
	}

	switch {
	case out.CompanyOwesInstaller:
		out.Direction = DirectionCompanyToInstaller
	case out.InstallerOwesCompany:
		out.Direction = DirectionInstallerToCompany
	}

	if out.InstallerOwesCompany {
		switch in.PaymentOption {
		case c.options.UpfrontCash:
			out.Method = methodPtr(MethodCash)
		case c.options.UpfrontCard:
			out.Method = methodPtr(MethodCard)
		}
	}
	return out
}

// Round rounds half up to two decimals.
func Round(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}

// whole parses a value and drops its fractional part.
func whole(val any) (float64, bool) {
	n, ok := fields.Number(val)
	if !ok || math.IsInf(n, 0) {
		return 0, false
	}
	return math.Trunc(n), true
}

func ptr(v float64) *float64 {
	return &v
}

func methodPtr(m Method) *Method {
	return &m
}
