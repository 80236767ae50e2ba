// invoker.go - Retry and multi-model fallback around a VisionModel

package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bosocmputer/bank_guarantee_ai/internal/common"
	"github.com/bosocmputer/bank_guarantee_ai/internal/ratelimit"
)

// InvokerConfig defines retry behavior for model calls
type InvokerConfig struct {
	// Models is the default candidate list, most preferred first.
	Models []string
	// MaxAttempts per model.
	MaxAttempts int
	// BackoffUnit: the wait after attempt i (0-based) is (i+1)*BackoffUnit.
	BackoffUnit time.Duration
	// AttemptTimeout bounds a single model call; 0 disables it.
	AttemptTimeout time.Duration
}

// DefaultInvokerConfig matches the production settings
var DefaultInvokerConfig = InvokerConfig{
	MaxAttempts:    3,
	BackoffUnit:    3 * time.Second,
	AttemptTimeout: 60 * time.Second,
}

// MaxDuration is the longest an Invoke over the configured models can run:
// every attempt hitting AttemptTimeout plus every backoff wait. Rate limiter
// waits are not included. It returns 0 when AttemptTimeout is 0.
func (c InvokerConfig) MaxDuration() time.Duration {
	if c.AttemptTimeout <= 0 {
		return 0
	}
	models := max(len(c.Models), 1)
	var backoff time.Duration
	for i := 0; i < c.MaxAttempts-1; i++ {
		backoff += time.Duration(i+1) * c.BackoffUnit
	}
	perModel := time.Duration(c.MaxAttempts)*c.AttemptTimeout + backoff
	return time.Duration(models) * perModel
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Invoker calls a VisionModel with retry/backoff and model fallback. It holds
// no per-call state and is safe for concurrent use.
type Invoker struct {
	model   VisionModel
	cfg     InvokerConfig
	limiter *ratelimit.Limiter
	sleep   Sleeper
}

// Option customizes an Invoker
type Option func(*Invoker)

// WithLimiter gates every attempt through l.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(inv *Invoker) { inv.limiter = l }
}

// WithSleeper replaces the backoff wait (tests record it instead).
func WithSleeper(s Sleeper) Option {
	return func(inv *Invoker) { inv.sleep = s }
}

// NewInvoker creates an Invoker
func NewInvoker(model VisionModel, cfg InvokerConfig, opts ...Option) *Invoker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultInvokerConfig.MaxAttempts
	}
	if cfg.BackoffUnit < 0 {
		cfg.BackoffUnit = 0
	}
	inv := &Invoker{model: model, cfg: cfg, sleep: sleepContext}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invocation is a successful model reply
type Invocation struct {
	Text     string
	Model    string
	Attempts int
	Usage    common.TokenUsage
}

// attemptState is the per-call retry position. It lives on the stack of
// Invoke so concurrent calls never share it.
type attemptState struct {
	modelIndex int
	attempt    int
	total      int
	lastErr    error
}

// Invoke sends pages and the prompt for guaranteeType to each candidate model
// in turn. models overrides the configured list when non-empty.
//
// Retryable failures are retried on the same model with linear backoff, then
// the next model is tried. A non-retryable failure returns *NonRetryableError
// at once; exhausting every model returns *ExhaustedError wrapping the last
// error. The raw text is returned unparsed.
func (inv *Invoker) Invoke(ctx context.Context, reqCtx *common.RequestContext, pages [][]byte, guaranteeType string, models []string) (*Invocation, error) {
	if len(models) == 0 {
		models = inv.cfg.Models
	}
	if len(models) == 0 {
		return nil, errors.New("no model configured")
	}

	req := NewExtractionRequest(guaranteeType, pages)
	var state attemptState

	for state.modelIndex = 0; state.modelIndex < len(models); state.modelIndex++ {
		model := models[state.modelIndex]

		for state.attempt = 0; state.attempt < inv.cfg.MaxAttempts; state.attempt++ {
			if err := inv.limiter.Wait(ctx); err != nil {
				return nil, err
			}

			state.total++
			if state.attempt > 0 {
				reqCtx.LogInfo("Retry attempt %d/%d on %s", state.attempt+1, inv.cfg.MaxAttempts, model)
			}

			reqCtx.StartSubStep(fmt.Sprintf("%s#%d", model, state.attempt+1))
			resp, err := inv.call(ctx, model, req)
			if err == nil {
				reqCtx.EndSubStep("finish_reason=" + resp.FinishReason)
				if state.total > 1 {
					reqCtx.LogInfo("Model %s succeeded after %d attempts", model, state.total)
				}
				return &Invocation{Text: resp.Text, Model: model, Attempts: state.total, Usage: resp.Usage}, nil
			}

			classified := Classify(err)
			state.lastErr = classified
			reqCtx.EndSubStep(classified.Category)
			reqCtx.LogError("Model %s failed (attempt %d/%d): %v", model, state.attempt+1, inv.cfg.MaxAttempts, classified)

			// A cancelled caller is not a model failure.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !classified.Retryable {
				return nil, &NonRetryableError{Model: model, Err: classified}
			}

			// No wait after the last attempt: the next model starts at once.
			if state.attempt >= inv.cfg.MaxAttempts-1 {
				break
			}

			delay := time.Duration(state.attempt+1) * inv.cfg.BackoffUnit
			reqCtx.LogWarning("%s busy (%s), waiting %v before retry", model, classified.Category, delay)
			if err := inv.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if state.modelIndex < len(models)-1 {
			reqCtx.LogWarning("%s failed after %d attempts, switching to %s", model, inv.cfg.MaxAttempts, models[state.modelIndex+1])
		}
	}

	reqCtx.LogError("All models exhausted, last error: %v", state.lastErr)
	return nil, &ExhaustedError{Models: models, Attempts: state.total, Last: state.lastErr}
}

func (inv *Invoker) call(ctx context.Context, model string, req ExtractionRequest) (*Response, error) {
	if inv.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.cfg.AttemptTimeout)
		defer cancel()
	}
	resp, err := inv.model.Generate(ctx, model, req.Prompt, req.Pages)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, &ModelError{Err: errors.New("empty response"), Category: "empty_response", Retryable: true}
	}
	return resp, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
