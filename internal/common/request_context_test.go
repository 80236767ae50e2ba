package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestPricingCost(t *testing.T) {
	p := Pricing{InputPerMillion: 0.10, OutputPerMillion: 0.40}
	usage := p.Cost(1_000_000, 500_000)

	assert.Equal(t, 1_500_000, usage.TotalTokens)
	assert.InDelta(t, 0.30, usage.CostUSD, 1e-9)
}

func TestRequestContextSteps(t *testing.T) {
	rc := NewRequestContext(zaptest.NewLogger(t), "Tender Bond Guarantee")
	assert.NotEmpty(t, rc.RequestID)

	rc.StartStep("rasterize")
	rc.StartSubStep("decode")
	rc.EndSubStep("2 pages")
	rc.EndStep("success", nil, nil)

	usage := Pricing{InputPerMillion: 1, OutputPerMillion: 1}.Cost(10, 5)
	rc.StartStep("invoke_model")
	rc.EndStep("success", &usage, nil)

	rc.StartStep("parse")
	rc.EndStep("failed", nil, errors.New("no json"))

	assert.Len(t, rc.Steps, 3)
	assert.Len(t, rc.Steps[0].SubSteps, 1)
	assert.Equal(t, 15, rc.TotalTokens.TotalTokens)
	assert.Equal(t, "no json", rc.Steps[2].Error)

	summary := rc.GetSummary()
	assert.Equal(t, 3, summary["total_steps"])
}

func TestNilRequestContextIsSafe(t *testing.T) {
	var rc *RequestContext
	rc.StartStep("x")
	rc.StartSubStep("y")
	rc.EndSubStep("")
	rc.EndStep("success", nil, nil)
	rc.LogInfo("hello %d", 1)
	rc.LogWarning("hello")
	rc.LogError("hello")
	assert.Nil(t, rc.GetSummary())
}
