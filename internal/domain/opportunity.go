package domain

// CustomField is a CRM value container keyed by an opaque field id. Which representation is
// populated depends on the field type.
type CustomField struct {
	ID               string   `json:"id"`
	Value            any      `json:"value,omitempty"`
	FieldValueString *string  `json:"fieldValueString,omitempty"`
	FieldValueNumber *float64 `json:"fieldValueNumber,omitempty"`
	FieldValueArray  []any    `json:"fieldValueArray,omitempty"`
}

// Opportunity is a work order living in a CRM pipeline.
type Opportunity struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	MonetaryValue   float64       `json:"monetaryValue"`
	PipelineID      string        `json:"pipelineId"`
	PipelineStageID string        `json:"pipelineStageId"`
	Status          string        `json:"status,omitempty"`
	ContactID       string        `json:"contactId,omitempty"`
	CreatedAt       string        `json:"createdAt,omitempty"`
	UpdatedAt       string        `json:"updatedAt,omitempty"`
	CustomFields    []CustomField `json:"customFields"`
}

// PageMeta is the per-stage paging metadata handed back to callers.
type PageMeta struct {
	Total       int    `json:"total"`
	NextPageURL string `json:"nextPageUrl,omitempty"`
}

// Pipeline is a CRM pipeline with its ordered stages.
type Pipeline struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Stages []PipelineStage `json:"stages"`
}

// PipelineStage is one column of a pipeline.
type PipelineStage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// FieldUpdate is a single custom-field write submitted with an opportunity edit.
type FieldUpdate struct {
	ID    string `json:"id"`
	Value any    `json:"field_value"`
}

// FileValue is the stored representation of an uploaded file in a file custom field.
type FileValue struct {
	URL     string   `json:"url"`
	Meta    FileMeta `json:"meta"`
	Deleted bool     `json:"deleted"`
}

// FileMeta describes an uploaded file.
type FileMeta struct {
	MimeType string `json:"mimetype"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
}
