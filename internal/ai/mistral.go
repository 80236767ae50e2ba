// mistral.go - Mistral vision provider over the chat completions API

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bosocmputer/bank_guarantee_ai/internal/common"
)

const mistralChatURL = "https://api.mistral.ai/v1/chat/completions"

// MistralProvider implements VisionModel for Mistral vision models
type MistralProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
	pricing  common.Pricing
}

// NewMistralProvider creates a new Mistral AI provider. Timeouts come from the
// caller's context.
func NewMistralProvider(apiKey string, pricing common.Pricing) *MistralProvider {
	return &MistralProvider{
		apiKey:   apiKey,
		endpoint: mistralChatURL,
		client:   &http.Client{},
		pricing:  pricing,
	}
}

// GetProviderName returns "mistral"
func (m *MistralProvider) GetProviderName() string {
	return "mistral"
}

type mistralContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type mistralMessage struct {
	Role    string           `json:"role"`
	Content []mistralContent `json:"content"`
}

type mistralResponseFormat struct {
	Type string `json:"type"`
}

type mistralChatRequest struct {
	Model          string                 `json:"model"`
	Messages       []mistralMessage       `json:"messages"`
	ResponseFormat *mistralResponseFormat `json:"response_format,omitempty"`
}

type mistralChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type mistralErrorResponse struct {
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends one user message holding the prompt and each page as a
// base64 data URL.
func (m *MistralProvider) Generate(ctx context.Context, model, prompt string, pages [][]byte) (*Response, error) {
	content := make([]mistralContent, 0, len(pages)+1)
	content = append(content, mistralContent{Type: "text", Text: prompt})
	for _, page := range pages {
		content = append(content, mistralContent{
			Type:     "image_url",
			ImageURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(page),
		})
	}

	request := mistralChatRequest{
		Model:          model,
		Messages:       []mistralMessage{{Role: "user", Content: content}},
		ResponseFormat: &mistralResponseFormat{Type: "json_object"},
	}

	response, err := m.callChatAPI(ctx, request)
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, &ModelError{Err: fmt.Errorf("no choices returned from Mistral"), Category: "empty_response", Retryable: true}
	}

	return &Response{
		Text:         response.Choices[0].Message.Content,
		FinishReason: response.Choices[0].FinishReason,
		Usage:        m.pricing.Cost(response.Usage.PromptTokens, response.Usage.CompletionTokens),
	}, nil
}

func (m *MistralProvider) callChatAPI(ctx context.Context, request mistralChatRequest) (*mistralChatResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		var errorResp mistralErrorResponse
		if json.Unmarshal(body, &errorResp) == nil {
			if errorResp.Error.Message != "" {
				msg = errorResp.Error.Message
			} else if errorResp.Message != "" {
				msg = errorResp.Message
			}
		}
		return nil, &APIError{Provider: "mistral", StatusCode: resp.StatusCode, Message: msg}
	}

	var response mistralChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}
	return &response, nil
}
