package breakdown

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epochish/klarita/internal/config"
	"github.com/epochish/klarita/internal/llm"
)

type stubLLM struct {
	responses []string
	errs      []error
	requests  []llm.Request
}

func (s *stubLLM) Generate(_ context.Context, req llm.Request) (string, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var resp string
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	return resp, err
}

func newTestGenerator(stub *stubLLM) *Generator {
	return NewGenerator(stub, config.LLMConfig{Temperature: 0.4})
}

func testPrompt() Prompt {
	return Prompt{System: "You are Klarita.", User: "My new goal is: Plan a garden"}
}

func TestGenerator_ValidFirstAttempt(t *testing.T) {
	stub := &stubLLM{responses: []string{
		`[{"title": "Measure the plot", "description": "Walk the yard with a tape measure.", "estimated_duration_minutes": 20, "priority": "high"},
		  {"title": "Buy seeds", "estimated_duration_minutes": 30}]`,
	}}

	drafts, err := newTestGenerator(stub).Generate(context.Background(), testPrompt(), 25)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "Measure the plot", drafts[0].Title)
	assert.Equal(t, PriorityHigh, drafts[0].Priority)
	assert.Equal(t, PriorityMedium, drafts[1].Priority)
	assert.Len(t, stub.requests, 1)
}

func TestGenerator_RequestsJSONOutput(t *testing.T) {
	stub := &stubLLM{responses: []string{`[{"title": "Do the thing"}]`}}

	_, err := newTestGenerator(stub).Generate(context.Background(), testPrompt(), 25)
	require.NoError(t, err)
	require.Len(t, stub.requests, 1)
	assert.True(t, stub.requests[0].JSONOutput)
	assert.InDelta(t, 0.4, stub.requests[0].Temperature, 0.001)
	assert.Equal(t, "My new goal is: Plan a garden", stub.requests[0].Prompt)
}

func TestGenerator_StrictRetryOnUnparseableOutput(t *testing.T) {
	stub := &stubLLM{responses: []string{
		"Sorry, here are some ideas in plain prose instead.",
		`[{"title": "Sketch the layout", "estimated_duration_minutes": 15}]`,
	}}

	drafts, err := newTestGenerator(stub).Generate(context.Background(), testPrompt(), 25)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Len(t, stub.requests, 2)
	assert.NotContains(t, stub.requests[0].System, "IMPORTANT")
	assert.Contains(t, stub.requests[1].System, "Output ONLY a valid JSON array")
}

func TestGenerator_StrictRetryWhenAllTasksInvalid(t *testing.T) {
	stub := &stubLLM{responses: []string{
		`[{"title": ""}, {"description": "no title"}]`,
		`[{"title": "Start small"}]`,
	}}

	drafts, err := newTestGenerator(stub).Generate(context.Background(), testPrompt(), 25)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Start small", drafts[0].Title)
	assert.Len(t, stub.requests, 2)
}

func TestGenerator_FailsAfterStrictRetry(t *testing.T) {
	stub := &stubLLM{responses: []string{
		"no tasks here",
		"still no tasks",
	}}

	_, err := newTestGenerator(stub).Generate(context.Background(), testPrompt(), 25)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Len(t, stub.requests, 2)
}

func TestGenerator_ProviderErrorIsGenerationFailure(t *testing.T) {
	providerErr := errors.New("invalid API key")
	stub := &stubLLM{errs: []error{providerErr}}

	_, err := newTestGenerator(stub).Generate(context.Background(), testPrompt(), 25)
	require.Error(t, err)
	assert.ErrorIs(t, err, providerErr)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	// No strict re-prompt: the provider call itself failed.
	assert.Len(t, stub.requests, 1)
}

func TestGenerator_MissingDurationsDefaultToPreferred(t *testing.T) {
	stub := &stubLLM{responses: []string{
		`[{"title": "Email the landlord"}, {"title": "Scan the lease", "estimated_duration_minutes": 500}]`,
	}}

	drafts, err := newTestGenerator(stub).Generate(context.Background(), testPrompt(), 45)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, 45, drafts[0].EstimatedDuration)
	assert.Equal(t, 240, drafts[1].EstimatedDuration)
}
