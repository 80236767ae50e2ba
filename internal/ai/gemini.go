// gemini.go - Gemini vision provider

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bosocmputer/bank_guarantee_ai/internal/common"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const maxOutputTokens = int32(8192)

// GeminiProvider implements VisionModel on the Gemini API. One client is
// shared by all models and calls.
type GeminiProvider struct {
	client  *genai.Client
	pricing common.Pricing
}

// NewGeminiProvider creates a client authenticated with apiKey.
func NewGeminiProvider(ctx context.Context, apiKey string, pricing common.Pricing) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, pricing: pricing}, nil
}

// GetProviderName returns "gemini"
func (g *GeminiProvider) GetProviderName() string {
	return "gemini"
}

// Close releases the underlying client
func (g *GeminiProvider) Close() error {
	return g.client.Close()
}

// Generate sends the prompt followed by every page as a PNG blob.
func (g *GeminiProvider) Generate(ctx context.Context, modelName, prompt string, pages [][]byte) (*Response, error) {
	model := g.client.GenerativeModel(modelName)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: ptr(maxOutputTokens),
	}
	model.ResponseMIMEType = "application/json"

	parts := make([]genai.Part, 0, len(pages)+1)
	parts = append(parts, genai.Text(prompt))
	for _, page := range pages {
		parts = append(parts, genai.Blob{MIMEType: "image/png", Data: page})
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &ModelError{Err: errors.New("no candidates in Gemini response"), Category: "empty_response", Retryable: true}
	}

	cand := resp.Candidates[0]
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	out := &Response{
		Text:         text.String(),
		FinishReason: cand.FinishReason.String(),
	}
	if resp.UsageMetadata != nil {
		out.Usage = g.pricing.Cost(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount),
		)
	}
	return out, nil
}

func ptr(i int32) *int32 {
	return &i
}
