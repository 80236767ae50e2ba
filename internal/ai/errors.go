// errors.go - Error categorization for model API calls

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// ModelError is a categorized model API error
type ModelError struct {
	Err        error
	Category   string
	StatusCode int
	Retryable  bool
}

func (e *ModelError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s] status %d: %v", e.Category, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Category, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// NonRetryableError is returned as soon as a model rejects a request outright
// (bad request, auth failure, unknown model). No retry or fallback follows.
type NonRetryableError struct {
	Model string
	Err   *ModelError
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("model %s rejected request: %v", e.Model, e.Err)
}

func (e *NonRetryableError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every model and attempt failed with a
// retryable error. Last is the error of the final attempt.
type ExhaustedError struct {
	Models   []string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all models exhausted (%s, %d attempts): %v", strings.Join(e.Models, ", "), e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// APIError is an HTTP error from a provider called over plain HTTPS
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// Provider status text that marks a transient condition.
var retryableSignals = []string{"429", "503", "UNAVAILABLE", "RESOURCE_EXHAUSTED"}

// Classify decides whether err is worth retrying.
func Classify(err error) *ModelError {
	if err == nil {
		return nil
	}

	var modelErr *ModelError
	if errors.As(err, &modelErr) {
		return modelErr
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(err, apiErr.Code)
	}

	var httpErr *APIError
	if errors.As(err, &httpErr) {
		return classifyStatus(err, httpErr.StatusCode)
	}

	// A per-attempt timeout is transient; cancellation by the caller is not.
	if errors.Is(err, context.DeadlineExceeded) {
		return &ModelError{Err: err, Category: "timeout", Retryable: true}
	}
	if errors.Is(err, context.Canceled) {
		return &ModelError{Err: err, Category: "canceled"}
	}

	msg := err.Error()
	for _, signal := range retryableSignals {
		if strings.Contains(msg, signal) {
			return &ModelError{Err: err, Category: "rate_limit", Retryable: true}
		}
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "overloaded") {
		return &ModelError{Err: err, Category: "overloaded", Retryable: true}
	}
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline") {
		return &ModelError{Err: err, Category: "timeout", Retryable: true}
	}
	if strings.Contains(lower, "connection reset") || strings.Contains(lower, "connection refused") {
		return &ModelError{Err: err, Category: "network_error", Retryable: true}
	}

	return &ModelError{Err: err, Category: "unknown"}
}

func classifyStatus(err error, code int) *ModelError {
	e := &ModelError{Err: err, StatusCode: code}

	switch code {
	case 400:
		e.Category = "bad_request"
	case 401:
		e.Category = "unauthorized"
	case 403:
		e.Category = "forbidden"
	case 404:
		e.Category = "not_found"
	case 413:
		e.Category = "payload_too_large"
	case 429:
		e.Category = "rate_limit"
		e.Retryable = true
	case 500, 502, 503, 504:
		e.Category = "server_error"
		e.Retryable = true
	default:
		e.Category = "unknown_api_error"
		e.Retryable = code >= 500
	}
	return e
}

// UserMessage converts a pipeline error into guidance for the person using
// the form.
func UserMessage(err error) string {
	var nonRetryable *NonRetryableError
	if errors.As(err, &nonRetryable) {
		switch nonRetryable.Err.Category {
		case "unauthorized", "forbidden":
			return "AI authentication failed. Please contact the system administrator."
		case "payload_too_large":
			return "The document is too large. Please upload fewer pages or a smaller scan."
		case "not_found":
			return "The configured AI model is not available."
		}
		return "The AI service rejected the request. Please fill the fields manually."
	}

	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return "The AI service is busy. Please try again in a few minutes or fill the fields manually."
	}
	return "Extraction failed. Please fill the fields manually."
}
