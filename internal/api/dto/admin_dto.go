package dto

// UpdateInstallersRequest records one invoice number against several opportunities.
type UpdateInstallersRequest struct {
	OpportunityIDs []string `json:"opportunityIds"`
	InvoiceNumber  string   `json:"invoiceNumber"`
}
