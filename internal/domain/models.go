package domain

// UploadedDocument is the request-scoped image payload.
type UploadedDocument struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExtractionResult is the parsed model output. Data has no enforced schema.
type ExtractionResult struct {
	DocumentType DocumentType   `json:"document_type"`
	Data         map[string]any `json:"data"`
	Raw          string         `json:"-"`
	Model        string         `json:"model"`
	Provider     string         `json:"provider"`
}
