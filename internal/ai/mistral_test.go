package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bosocmputer/bank_guarantee_ai/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMistralGenerate(t *testing.T) {
	var got mistralChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"amount\":\"5\"}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":100,"completion_tokens":20}}`))
	}))
	defer srv.Close()

	m := NewMistralProvider("secret", common.Pricing{InputPerMillion: 1, OutputPerMillion: 2})
	m.endpoint = srv.URL

	resp, err := m.Generate(context.Background(), "pixtral-12b", "prompt", [][]byte{{0x89, 'P'}, {1}})
	require.NoError(t, err)

	assert.Equal(t, `{"amount":"5"}`, resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 120, resp.Usage.TotalTokens)

	assert.Equal(t, "pixtral-12b", got.Model)
	require.Len(t, got.Messages, 1)
	content := got.Messages[0].Content
	require.Len(t, content, 3)
	assert.Equal(t, "prompt", content[0].Text)
	assert.True(t, strings.HasPrefix(content[1].ImageURL, "data:image/png;base64,"))
}

func TestMistralErrorStatusIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"Requests rate limit exceeded"}`))
	}))
	defer srv.Close()

	m := NewMistralProvider("secret", common.Pricing{})
	m.endpoint = srv.URL

	_, err := m.Generate(context.Background(), "m", "p", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Requests rate limit exceeded", apiErr.Message)
	assert.True(t, Classify(err).Retryable)
}
