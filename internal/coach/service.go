package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/epochish/klarita/internal/config"
	"github.com/epochish/klarita/internal/llm"
)

const systemPrompt = `You are Klarita, a calm and empathetic AI coach. Your role is to help users who feel "stuck" or overwhelmed.
Use a gentle, Socratic questioning style to help them identify the smallest possible next step. Do not give direct advice.
Your tone should be reassuring and non-judgmental. Your goal is to reduce their anxiety and help them feel capable of starting.
Keep your responses short and focused on asking one question at a time.`

// fallbackReply is served when the provider is unavailable. Someone asking
// for help while stuck should never see a raw error.
const fallbackReply = "I'm sorry, I'm having a little trouble thinking right now. Could you try asking again in a moment?"

// Service runs one coaching turn per request. It is stateless; the client
// carries the conversation.
type Service struct {
	llm         llm.Client
	temperature float32
}

// NewService creates the stuck coach.
func NewService(client llm.Client, cfg config.LLMConfig) *Service {
	return &Service{
		llm:         client,
		temperature: float32(cfg.Temperature),
	}
}

// Respond asks the coach for one guiding question. Provider failures degrade
// to the canned reply, never an error.
func (s *Service) Respond(ctx context.Context, userID uuid.UUID, req StuckRequest) StuckResponse {
	prompt := req.Message
	if req.TaskTitle != "" {
		prompt = fmt.Sprintf("I'm stuck on this task: %s\n\n%s", req.TaskTitle, req.Message)
	}

	reply, err := s.llm.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: s.temperature,
	})
	if err != nil {
		slog.Warn("coach generation failed, serving fallback", "error", err, "user_id", userID)
		return StuckResponse{Reply: fallbackReply}
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		slog.Warn("coach returned empty reply, serving fallback", "user_id", userID)
		return StuckResponse{Reply: fallbackReply}
	}
	return StuckResponse{Reply: reply}
}
