package coach

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epochish/klarita/internal/config"
	"github.com/epochish/klarita/internal/llm"
)

type stubLLM struct {
	response string
	err      error
	requests []llm.Request
}

func (s *stubLLM) Generate(_ context.Context, req llm.Request) (string, error) {
	s.requests = append(s.requests, req)
	return s.response, s.err
}

func newTestService(stub *stubLLM) *Service {
	return NewService(stub, config.LLMConfig{Temperature: 0.7})
}

func TestRespond_ReturnsTrimmedReply(t *testing.T) {
	stub := &stubLLM{response: "  What feels like the very first physical step you could take?  \n"}
	svc := newTestService(stub)

	resp := svc.Respond(context.Background(), uuid.New(), StuckRequest{Message: "I can't start my taxes"})

	assert.Equal(t, "What feels like the very first physical step you could take?", resp.Reply)
	require.Len(t, stub.requests, 1)
	req := stub.requests[0]
	assert.Contains(t, req.System, "Socratic questioning style")
	assert.Equal(t, "I can't start my taxes", req.Prompt)
	assert.False(t, req.JSONOutput)
	assert.InDelta(t, 0.7, req.Temperature, 1e-6)
}

func TestRespond_AnchorsToTaskTitle(t *testing.T) {
	stub := &stubLLM{response: "Which sentence could you write first?"}
	svc := newTestService(stub)

	svc.Respond(context.Background(), uuid.New(), StuckRequest{
		TaskTitle: "Write the introduction",
		Message:   "It feels too big",
	})

	require.Len(t, stub.requests, 1)
	assert.Contains(t, stub.requests[0].Prompt, "Write the introduction")
	assert.Contains(t, stub.requests[0].Prompt, "It feels too big")
}

func TestRespond_FallsBackOnProviderError(t *testing.T) {
	stub := &stubLLM{err: errors.New("provider unavailable")}
	svc := newTestService(stub)

	resp := svc.Respond(context.Background(), uuid.New(), StuckRequest{Message: "help"})

	assert.Equal(t, fallbackReply, resp.Reply)
}

func TestRespond_FallsBackOnEmptyReply(t *testing.T) {
	stub := &stubLLM{response: "   \n  "}
	svc := newTestService(stub)

	resp := svc.Respond(context.Background(), uuid.New(), StuckRequest{Message: "help"})

	assert.Equal(t, fallbackReply, resp.Reply)
}
