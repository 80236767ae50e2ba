// interface.go - Vision model provider interface for supporting multiple AI providers

package ai

import (
	"context"

	"github.com/bosocmputer/bank_guarantee_ai/internal/common"
)

// VisionModel sends one multimodal request: a text prompt plus PNG pages,
// all in a single call so the model sees cross-page context.
type VisionModel interface {
	// Generate runs model against prompt and pages and returns its text.
	// Errors should carry enough signal for Classify (HTTP status or
	// provider status text).
	Generate(ctx context.Context, model, prompt string, pages [][]byte) (*Response, error)

	// GetProviderName returns the name of the provider (e.g., "gemini", "mistral")
	GetProviderName() string
}

// Response is the first candidate of a model reply
type Response struct {
	Text         string
	FinishReason string
	Usage        common.TokenUsage
}

// ExtractionRequest is the prompt and ordered pages of one extraction.
// Built once per invocation and not modified afterwards.
type ExtractionRequest struct {
	Prompt string
	Pages  [][]byte
}

// NewExtractionRequest builds the request for a guarantee type label.
func NewExtractionRequest(guaranteeType string, pages [][]byte) ExtractionRequest {
	return ExtractionRequest{
		Prompt: BuildPrompt(guaranteeType),
		Pages:  pages,
	}
}
