package breakdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/epochish/klarita/internal/config"
	"github.com/epochish/klarita/internal/llm"
	"github.com/epochish/klarita/internal/metrics"
)

// ErrGenerationFailed signals that the provider call failed non-transiently
// or the model produced no usable tasks even after the strict re-prompt.
var ErrGenerationFailed = errors.New("model produced no valid tasks")

const strictInstruction = "\n\nIMPORTANT: your previous response could not be parsed. Output ONLY a valid JSON array of task objects with the required keys. No markdown, no commentary, no trailing text."

// Generator turns a composed prompt into validated task drafts.
type Generator struct {
	llm         llm.Client
	temperature float32
}

// NewGenerator creates a generator on top of a language-model client.
func NewGenerator(client llm.Client, cfg config.LLMConfig) *Generator {
	return &Generator{llm: client, temperature: float32(cfg.Temperature)}
}

// Generate invokes the model and validates its output. A response that
// yields zero valid tasks is re-prompted once with a stricter instruction
// before giving up. Transient provider errors are retried inside the client;
// anything that still fails here is permanent.
func (g *Generator) Generate(ctx context.Context, prompt Prompt, defaultMinutes int) ([]TaskDraft, error) {
	drafts, err := g.attempt(ctx, prompt.System, prompt.User, defaultMinutes)
	if err != nil {
		return nil, errors.Join(ErrGenerationFailed, err)
	}
	if len(drafts) > 0 {
		return drafts, nil
	}

	metrics.GenerationRetriesTotal.Inc()
	slog.Warn("model output yielded no valid tasks, re-prompting with strict instruction")

	drafts, err = g.attempt(ctx, prompt.System+strictInstruction, prompt.User, defaultMinutes)
	if err != nil {
		return nil, errors.Join(ErrGenerationFailed, err)
	}
	if len(drafts) == 0 {
		return nil, ErrGenerationFailed
	}
	return drafts, nil
}

func (g *Generator) attempt(ctx context.Context, system, user string, defaultMinutes int) ([]TaskDraft, error) {
	raw, err := g.llm.Generate(ctx, llm.Request{
		System:      system,
		Prompt:      user,
		Temperature: g.temperature,
		JSONOutput:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("invoking model: %w", err)
	}

	entries, err := ParseTasks(raw)
	if err != nil {
		slog.Warn("failed to parse model output", "error", err)
		return nil, nil
	}

	drafts, rejected := ValidateTasks(entries, defaultMinutes)
	if len(rejected) > 0 {
		slog.Warn("dropped invalid tasks from model output", "dropped", len(rejected), "kept", len(drafts))
	}
	return drafts, nil
}
