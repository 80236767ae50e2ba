package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		category  string
		retryable bool
	}{
		{"google 429", &googleapi.Error{Code: 429}, "rate_limit", true},
		{"google 503", &googleapi.Error{Code: 503}, "server_error", true},
		{"google 400", &googleapi.Error{Code: 400}, "bad_request", false},
		{"google 403", &googleapi.Error{Code: 403}, "forbidden", false},
		{"mistral 429", &APIError{Provider: "mistral", StatusCode: 429}, "rate_limit", true},
		{"mistral 401", &APIError{Provider: "mistral", StatusCode: 401}, "unauthorized", false},
		{"wrapped status", fmt.Errorf("call: %w", &googleapi.Error{Code: 500}), "server_error", true},
		{"unavailable text", errors.New("rpc error: code = UNAVAILABLE"), "rate_limit", true},
		{"exhausted text", errors.New("RESOURCE_EXHAUSTED: quota"), "rate_limit", true},
		{"503 text", errors.New("got 503 from upstream"), "rate_limit", true},
		{"overloaded mixed case", errors.New("Model is OverLoaded"), "overloaded", true},
		{"deadline", fmt.Errorf("attempt: %w", context.DeadlineExceeded), "timeout", true},
		{"canceled", context.Canceled, "canceled", false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), "network_error", true},
		{"other", errors.New("invalid argument"), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, Classify(nil))
}

func TestUserMessage(t *testing.T) {
	unauthorized := &NonRetryableError{Model: "m", Err: &ModelError{Category: "unauthorized", Err: errors.New("x")}}
	assert.Contains(t, UserMessage(unauthorized), "authentication")

	exhausted := &ExhaustedError{Models: []string{"m"}, Attempts: 3, Last: errors.New("busy")}
	assert.Contains(t, UserMessage(exhausted), "busy")

	assert.Contains(t, UserMessage(errors.New("boom")), "manually")
}
