package dto

// UpdateOpportunityRequest is accepted as JSON or as multipart form fields. Image fields hold
// already hosted URLs; uploaded files arrive as multipart parts with the same names.
type UpdateOpportunityRequest struct {
	Status          string `json:"status" form:"status"`
	StuckReason     string `json:"stuckReason" form:"stuckReason"`
	InstallDate     string `json:"installDate" form:"installDate"`
	InvoiceNumber   string `json:"invoiceNumber" form:"invoiceNumber"`
	ResultImage     string `json:"resultImage" form:"resultImage"`
	InvoiceImage    string `json:"invoiceImage" form:"invoiceImage"`
	PreInstallImage string `json:"preInstallImage" form:"preInstallImage"`
}

// UpdateOpportunityMeta describes what an update did.
type UpdateOpportunityMeta struct {
	Applied bool   `json:"applied"`
	Status  string `json:"status,omitempty"`
	StageID string `json:"stageId,omitempty"`
}
