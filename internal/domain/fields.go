package domain

// FieldKey names a custom field semantically; the opaque CRM id behind it comes from configuration.
type FieldKey string

const (
	FieldInstallDate          FieldKey = "install_date"
	FieldResultImage          FieldKey = "result_image"
	FieldInvoiceImage         FieldKey = "invoice_image"
	FieldPreInstallImage      FieldKey = "pre_install_image"
	FieldStuckReason          FieldKey = "stuck_reason"
	FieldPaymentOption        FieldKey = "payment_option"
	FieldInvoiceNumber        FieldKey = "invoice_number"
	FieldInstallationCost     FieldKey = "installation_cost"
	FieldTotalPrice           FieldKey = "total_price"
	FieldOpportunityInstaller FieldKey = "opportunity_installer"
	FieldContactInstaller     FieldKey = "contact_installer"
)

// FieldKeys lists every known key.
var FieldKeys = []FieldKey{
	FieldInstallDate,
	FieldResultImage,
	FieldInvoiceImage,
	FieldPreInstallImage,
	FieldStuckReason,
	FieldPaymentOption,
	FieldInvoiceNumber,
	FieldInstallationCost,
	FieldTotalPrice,
	FieldOpportunityInstaller,
	FieldContactInstaller,
}
