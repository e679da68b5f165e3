package port

import (
	"context"
)

// ExtractInput carries one normalized screenshot to the vision service.
type ExtractInput struct {
	ImageBytes  []byte
	ContentType string
}

// ExtractOutput is the service's first completion, unmodified.
type ExtractOutput struct {
	RawResponse string
	Provider    string
	ModelUsed   string
	PromptUsed  string
}

// VisionExtractor sends a screenshot to a multimodal completion service and
// returns its raw text answer. Failures are reported as *domain.ServiceError.
type VisionExtractor interface {
	Extract(ctx context.Context, input ExtractInput) (*ExtractOutput, error)
}
