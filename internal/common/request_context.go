// request_context.go - Request tracking and logging system

package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestContext tracks one request with step timing and token costs.
// A nil *RequestContext is valid and logs nothing.
type RequestContext struct {
	RequestID           string
	GuaranteeType       string
	StartTime           time.Time
	Steps               []StepLog
	TotalTokens         TokenUsage
	CurrentStep         string
	CurrentStepStart    time.Time
	CurrentSubSteps     []SubStepLog
	CurrentSubStep      string
	CurrentSubStepStart time.Time

	log *zap.SugaredLogger
}

// StepLog represents a single processing step
type StepLog struct {
	Name      string       `json:"name"`
	StartTime time.Time    `json:"start_time"`
	Duration  int64        `json:"duration_ms"`
	Status    string       `json:"status"` // "success", "failed", "skipped"
	Tokens    *TokenUsage  `json:"tokens,omitempty"`
	Error     string       `json:"error,omitempty"`
	SubSteps  []SubStepLog `json:"sub_steps,omitempty"`
}

// SubStepLog represents a detailed sub-operation within a step
type SubStepLog struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Duration  int64     `json:"duration_ms"`
	Details   string    `json:"details,omitempty"`
}

// TokenUsage tracks API token consumption
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Pricing is the per-million-token price of a model in USD
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Cost computes token usage and USD cost from token counts
func (p Pricing) Cost(inputTokens, outputTokens int) TokenUsage {
	inputCost := float64(inputTokens) * p.InputPerMillion / 1_000_000
	outputCost := float64(outputTokens) * p.OutputPerMillion / 1_000_000
	return TokenUsage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      inputCost + outputCost,
	}
}

// NewRequestContext creates a new request tracking context
func NewRequestContext(log *zap.Logger, guaranteeType string) *RequestContext {
	reqID := uuid.New().String()
	if log == nil {
		log = zap.NewNop()
	}
	sugar := log.Sugar().With("request_id", reqID)
	sugar.Infow("request started", "guarantee_type", guaranteeType)

	return &RequestContext{
		RequestID:     reqID,
		GuaranteeType: guaranteeType,
		StartTime:     time.Now(),
		Steps:         []StepLog{},
		log:           sugar,
	}
}

// StartStep begins tracking a new processing step
func (rc *RequestContext) StartStep(stepName string) {
	if rc == nil {
		return
	}
	rc.CurrentStep = stepName
	rc.CurrentStepStart = time.Now()
	rc.log.Debugw("step started", "step", stepName)
}

// EndStep completes the current step and records timing
func (rc *RequestContext) EndStep(status string, tokens *TokenUsage, err error) {
	if rc == nil {
		return
	}
	duration := time.Since(rc.CurrentStepStart).Milliseconds()

	stepLog := StepLog{
		Name:      rc.CurrentStep,
		StartTime: rc.CurrentStepStart,
		Duration:  duration,
		Status:    status,
		Tokens:    tokens,
		SubSteps:  rc.CurrentSubSteps,
	}

	if err != nil {
		stepLog.Error = err.Error()
		rc.log.Errorw("step failed", "step", rc.CurrentStep, "duration_ms", duration, "error", err)
	} else {
		fields := []any{"step", rc.CurrentStep, "status", status, "duration_ms", duration, "sub_steps", len(rc.CurrentSubSteps)}
		if tokens != nil {
			rc.TotalTokens.InputTokens += tokens.InputTokens
			rc.TotalTokens.OutputTokens += tokens.OutputTokens
			rc.TotalTokens.TotalTokens += tokens.TotalTokens
			rc.TotalTokens.CostUSD += tokens.CostUSD
			fields = append(fields, "total_tokens", tokens.TotalTokens, "cost_usd", tokens.CostUSD)
		}
		rc.log.Infow("step done", fields...)
	}

	rc.Steps = append(rc.Steps, stepLog)
	rc.CurrentStep = ""
	rc.CurrentSubSteps = []SubStepLog{}
}

// StartSubStep begins tracking a detailed sub-operation
func (rc *RequestContext) StartSubStep(subStepName string) {
	if rc == nil {
		return
	}
	rc.CurrentSubStep = subStepName
	rc.CurrentSubStepStart = time.Now()
}

// EndSubStep completes the current sub-step and records timing
func (rc *RequestContext) EndSubStep(details string) {
	if rc == nil || rc.CurrentSubStep == "" {
		return
	}

	duration := time.Since(rc.CurrentSubStepStart).Milliseconds()
	rc.CurrentSubSteps = append(rc.CurrentSubSteps, SubStepLog{
		Name:      rc.CurrentSubStep,
		StartTime: rc.CurrentSubStepStart,
		Duration:  duration,
		Details:   details,
	})
	rc.log.Debugw("sub-step done", "sub_step", rc.CurrentSubStep, "duration_ms", duration, "details", details)

	rc.CurrentSubStep = ""
}

// LogInfo logs info-level message with request ID
func (rc *RequestContext) LogInfo(format string, args ...interface{}) {
	if rc == nil {
		return
	}
	rc.log.Infof(format, args...)
}

// LogWarning logs warning-level message with request ID
func (rc *RequestContext) LogWarning(format string, args ...interface{}) {
	if rc == nil {
		return
	}
	rc.log.Warnf(format, args...)
}

// LogError logs error-level message with request ID
func (rc *RequestContext) LogError(format string, args ...interface{}) {
	if rc == nil {
		return
	}
	rc.log.Errorf(format, args...)
}

// GetSummary returns a final summary of the entire request
func (rc *RequestContext) GetSummary() map[string]interface{} {
	if rc == nil {
		return nil
	}
	totalDuration := time.Since(rc.StartTime).Milliseconds()

	stepBreakdown := make(map[string]int64)
	for _, step := range rc.Steps {
		stepBreakdown[step.Name] = step.Duration
	}

	summary := map[string]interface{}{
		"request_id":        rc.RequestID,
		"guarantee_type":    rc.GuaranteeType,
		"total_duration_ms": totalDuration,
		"step_breakdown":    stepBreakdown,
		"total_steps":       len(rc.Steps),
		"token_usage": map[string]interface{}{
			"input_tokens":  rc.TotalTokens.InputTokens,
			"output_tokens": rc.TotalTokens.OutputTokens,
			"total_tokens":  rc.TotalTokens.TotalTokens,
			"cost_usd":      fmt.Sprintf("$%.4f", rc.TotalTokens.CostUSD),
		},
	}

	rc.log.Infow("request finished",
		"total_duration_ms", totalDuration,
		"total_steps", len(rc.Steps),
		"total_tokens", rc.TotalTokens.TotalTokens,
		"cost_usd", rc.TotalTokens.CostUSD,
	)
	return summary
}
