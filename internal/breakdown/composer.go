package breakdown

import (
	"fmt"
	"strings"

	"github.com/epochish/klarita/internal/config"
	"github.com/epochish/klarita/internal/memory"
	"github.com/epochish/klarita/internal/preferences"
)

const systemPromptTemplate = `You are Klarita, an expert AI assistant specializing in helping users with ADHD break down overwhelming tasks into manageable steps.
You have been provided with examples of how this user has successfully broken down similar goals in the past.
Use these examples to inform your new breakdown, but adapt it to the new goal.

Here are the user's past successful breakdowns (memories):
%s

Here are the user's known preferences:
%s

Here is the user's current context:
%s

Your goal is to be encouraging, clear, and very specific. Always follow these rules:
1. Deconstruct the user's new goal into a sequence of small, concrete, and actionable sub-tasks.
2. Each task title MUST start with an action verb (e.g., "Write", "Create", "Call", "Book").
3. Estimate a realistic duration in minutes for each task. Assume the user needs short, focused work sprints.
4. Provide a brief, one-sentence description for each task.
5. Assign each task a priority of "low", "medium" or "high".
6. The final output MUST be a JSON array of objects, with each object having 'title', 'description', 'estimated_duration_minutes', and 'priority' keys. Do not include any other text or formatting.`

// Prompt is a fully rendered generation request.
type Prompt struct {
	System string
	User   string
}

// Composer renders goals, retrieved memories, preferences, and context into
// prompts. Pure: same inputs, same prompt.
type Composer struct {
	exemplarMinRating int
}

// NewComposer creates a composer that drops exemplars rated below the
// configured threshold.
func NewComposer(cfg config.RetrievalConfig) *Composer {
	return &Composer{exemplarMinRating: cfg.ExemplarMinRating}
}

// Compose builds the prompt for a breakdown request. Memories below the
// rating threshold are excluded so poor outcomes never steer generation; an
// empty exemplar set renders a placeholder rather than failing.
func (c *Composer) Compose(goal string, reqCtx memory.Context, memories []memory.Memory, prefs preferences.UserPreference) Prompt {
	return Prompt{
		System: fmt.Sprintf(systemPromptTemplate,
			c.renderExemplars(memories),
			renderPreferences(prefs),
			renderContext(reqCtx),
		),
		User: fmt.Sprintf("My new goal is: %s", goal),
	}
}

func (c *Composer) renderExemplars(memories []memory.Memory) string {
	var blocks []string
	for _, m := range memories {
		if m.OutcomeRating < c.exemplarMinRating {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Goal: %s\nCompleted steps: %s\nOutcome rating: %d/5",
			m.GoalText, strings.Join(m.TaskTitles, "; "), m.OutcomeRating))
	}
	if len(blocks) == 0 {
		return "No past examples found."
	}
	return strings.Join(blocks, "\n---\n")
}

func renderPreferences(prefs preferences.UserPreference) string {
	if prefs.BreakdownStyle == "" {
		return "No explicit preferences yet."
	}
	return fmt.Sprintf("Breakdown style: %s. Preferred task duration: %d minutes. Communication style: %s.",
		prefs.BreakdownStyle, prefs.PreferredTaskMinutes, prefs.CommunicationStyle)
}

func renderContext(reqCtx memory.Context) string {
	parts := []string{fmt.Sprintf("Time of day: %s.", reqCtx.TimeOfDay)}
	if reqCtx.Mood != "" {
		parts = append(parts, fmt.Sprintf("Mood: %s.", reqCtx.Mood))
	}
	if reqCtx.EnergyLevel != "" {
		parts = append(parts, fmt.Sprintf("Energy level: %s.", reqCtx.EnergyLevel))
	}
	return strings.Join(parts, " ")
}
