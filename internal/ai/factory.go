// factory.go - Vision provider factory

package ai

import (
	"context"
	"fmt"

	"github.com/bosocmputer/bank_guarantee_ai/internal/common"
)

// ProviderKeys holds the API key of each supported provider
type ProviderKeys struct {
	Gemini  string
	Mistral string
}

// NewProvider creates the VisionModel named by provider.
func NewProvider(ctx context.Context, provider string, keys ProviderKeys, pricing common.Pricing) (VisionModel, error) {
	switch provider {
	case "gemini":
		return NewGeminiProvider(ctx, keys.Gemini, pricing)
	case "mistral":
		if keys.Mistral == "" {
			return nil, fmt.Errorf("mistral API key is empty")
		}
		return NewMistralProvider(keys.Mistral, pricing), nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s (supported: gemini, mistral)", provider)
	}
}
