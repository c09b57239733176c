package port

import "context"

// VisionRequest carries one multimodal extraction call: a system-level
// instruction, a short user cue, and the image to analyse.
type VisionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Image        []byte
	ContentType  string
}

// VisionResponse is the textual content of the first returned choice.
type VisionResponse struct {
	Text     string
	Model    string
	Provider string
}

// VisionModel abstracts the external document-understanding service.
type VisionModel interface {
	Complete(ctx context.Context, req VisionRequest) (*VisionResponse, error)
}
