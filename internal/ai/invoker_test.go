package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bosocmputer/bank_guarantee_ai/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/googleapi"
)

type call struct {
	model string
	pages int
}

// fakeModel replays a scripted result per call, keyed by model name.
type fakeModel struct {
	mu      sync.Mutex
	script  map[string][]error
	replies map[string]string
	calls   []call
}

func (f *fakeModel) Generate(ctx context.Context, model, prompt string, pages [][]byte) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{model: model, pages: len(pages)})

	if errs := f.script[model]; len(errs) > 0 {
		err := errs[0]
		f.script[model] = errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &Response{Text: f.replies[model], Usage: common.TokenUsage{TotalTokens: 10}}, nil
}

func (f *fakeModel) GetProviderName() string { return "fake" }

func (f *fakeModel) models() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.model
	}
	return out
}

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newTestInvoker(t *testing.T, model VisionModel, models ...string) (*Invoker, *recordingSleeper, *common.RequestContext) {
	sleeper := &recordingSleeper{}
	inv := NewInvoker(model, InvokerConfig{
		Models:      models,
		MaxAttempts: 3,
		BackoffUnit: 3 * time.Second,
	}, WithSleeper(sleeper.sleep))
	return inv, sleeper, common.NewRequestContext(zaptest.NewLogger(t), "Tender Bond Guarantee")
}

var busy = errors.New("503 UNAVAILABLE: the model is overloaded")

func TestInvokeFirstAttemptSucceeds(t *testing.T) {
	fake := &fakeModel{replies: map[string]string{"m1": `{"amount": "100"}`}}
	inv, sleeper, rc := newTestInvoker(t, fake, "m1", "m2")

	got, err := inv.Invoke(context.Background(), rc, [][]byte{{1}, {2}}, "Tender Bond Guarantee", nil)
	require.NoError(t, err)

	assert.Equal(t, `{"amount": "100"}`, got.Text)
	assert.Equal(t, "m1", got.Model)
	assert.Equal(t, 1, got.Attempts)
	assert.Empty(t, sleeper.waits)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, 2, fake.calls[0].pages)
}

func TestInvokeRetriesWithLinearBackoff(t *testing.T) {
	fake := &fakeModel{
		script:  map[string][]error{"m1": {busy, busy, nil}},
		replies: map[string]string{"m1": "{}"},
	}
	inv, sleeper, rc := newTestInvoker(t, fake, "m1", "m2")

	got, err := inv.Invoke(context.Background(), rc, nil, "x", nil)
	require.NoError(t, err)

	assert.Equal(t, "m1", got.Model)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second}, sleeper.waits)
}

func TestInvokeFallsBackWithoutWaitingAfterLastAttempt(t *testing.T) {
	fake := &fakeModel{
		script:  map[string][]error{"m1": {busy, busy, busy}},
		replies: map[string]string{"m2": `{"ok": true}`},
	}
	inv, sleeper, rc := newTestInvoker(t, fake, "m1", "m2")

	got, err := inv.Invoke(context.Background(), rc, nil, "x", nil)
	require.NoError(t, err)

	assert.Equal(t, "m2", got.Model)
	assert.Equal(t, 4, got.Attempts)
	assert.Equal(t, []string{"m1", "m1", "m1", "m2"}, fake.models())
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second}, sleeper.waits)

	// one sub-step per attempt
	require.Len(t, rc.CurrentSubSteps, 4)
	assert.Equal(t, "m1#1", rc.CurrentSubSteps[0].Name)
	assert.Equal(t, "m1#3", rc.CurrentSubSteps[2].Name)
	assert.Equal(t, "m2#1", rc.CurrentSubSteps[3].Name)
}

func TestInvokeNonRetryableStopsImmediately(t *testing.T) {
	fake := &fakeModel{
		script: map[string][]error{"m1": {&googleapi.Error{Code: 400, Message: "API key not valid"}}},
	}
	inv, sleeper, rc := newTestInvoker(t, fake, "m1", "m2")

	_, err := inv.Invoke(context.Background(), rc, nil, "x", nil)
	require.Error(t, err)

	var nonRetryable *NonRetryableError
	require.ErrorAs(t, err, &nonRetryable)
	assert.Equal(t, "m1", nonRetryable.Model)
	assert.Equal(t, "bad_request", nonRetryable.Err.Category)
	assert.Empty(t, sleeper.waits)
	assert.Equal(t, []string{"m1"}, fake.models())
}

func TestInvokeExhaustedReturnsLastError(t *testing.T) {
	last := errors.New("429 RESOURCE_EXHAUSTED quota")
	fake := &fakeModel{
		script: map[string][]error{
			"m1": {busy, busy, busy},
			"m2": {busy, busy, last},
		},
	}
	inv, sleeper, rc := newTestInvoker(t, fake, "m1", "m2")

	_, err := inv.Invoke(context.Background(), rc, nil, "x", nil)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 6, exhausted.Attempts)
	assert.ErrorIs(t, err, last)
	assert.Len(t, sleeper.waits, 4)
}

func TestInvokePinnedModelOverridesList(t *testing.T) {
	fake := &fakeModel{
		script: map[string][]error{"pinned": {busy, busy, busy}},
	}
	inv, _, rc := newTestInvoker(t, fake, "m1", "m2")

	_, err := inv.Invoke(context.Background(), rc, nil, "x", []string{"pinned"})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, []string{"pinned", "pinned", "pinned"}, fake.models())
}

func TestInvokeHonoursCancellation(t *testing.T) {
	fake := &fakeModel{script: map[string][]error{"m1": {busy, busy, busy}}}
	ctx, cancel := context.WithCancel(context.Background())
	inv := NewInvoker(fake, InvokerConfig{Models: []string{"m1", "m2"}, MaxAttempts: 3, BackoffUnit: time.Second},
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}))

	_, err := inv.Invoke(ctx, nil, nil, "x", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"m1"}, fake.models())
}

// cancellingModel cancels the caller's context mid-call, as a client
// disconnect would.
type cancellingModel struct {
	cancel context.CancelFunc
	calls  int
}

func (m *cancellingModel) Generate(ctx context.Context, _, _ string, _ [][]byte) (*Response, error) {
	m.calls++
	m.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (m *cancellingModel) GetProviderName() string { return "fake" }

func TestInvokeCancelledDuringCallIsNotAModelError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &cancellingModel{cancel: cancel}
	inv, sleeper, rc := newTestInvoker(t, model, "m1", "m2")

	_, err := inv.Invoke(ctx, rc, nil, "x", nil)
	require.ErrorIs(t, err, context.Canceled)

	var nonRetryable *NonRetryableError
	assert.False(t, errors.As(err, &nonRetryable))
	assert.Equal(t, 1, model.calls)
	assert.Empty(t, sleeper.waits)
}

func TestInvokeNoModels(t *testing.T) {
	inv := NewInvoker(&fakeModel{}, InvokerConfig{})
	_, err := inv.Invoke(context.Background(), nil, nil, "x", nil)
	assert.Error(t, err)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestInvokerConfigMaxDuration(t *testing.T) {
	cfg := DefaultInvokerConfig
	cfg.Models = []string{"a", "b", "c", "d"}
	// 4 models x (3 x 60s + 3s + 6s)
	assert.Equal(t, 756*time.Second, cfg.MaxDuration())

	cfg.Models = nil
	assert.Equal(t, 189*time.Second, cfg.MaxDuration())

	cfg.AttemptTimeout = 0
	assert.Zero(t, cfg.MaxDuration())
}
