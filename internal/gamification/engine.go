package gamification

import (
	"math"
	"time"

	"github.com/epochish/klarita/internal/breakdown"
	"github.com/epochish/klarita/internal/config"
)

// badgeRule awards a badge the first time a profile qualifies. Badges are
// monotonic: once earned they are never removed, even if the qualifying
// state later regresses (streaks reset, levels never do).
type badgeRule struct {
	ID        string
	Qualifies func(p Profile) bool
}

var badgeRules = []badgeRule{
	{ID: "first_task", Qualifies: func(p Profile) bool { return p.TasksCompleted >= 1 }},
	{ID: "ten_tasks", Qualifies: func(p Profile) bool { return p.TasksCompleted >= 10 }},
	{ID: "hundred_tasks", Qualifies: func(p Profile) bool { return p.TasksCompleted >= 100 }},
	{ID: "streak_3", Qualifies: func(p Profile) bool { return p.CurrentStreak >= 3 }},
	{ID: "streak_7", Qualifies: func(p Profile) bool { return p.CurrentStreak >= 7 }},
	{ID: "streak_30", Qualifies: func(p Profile) bool { return p.CurrentStreak >= 30 }},
	{ID: "level_5", Qualifies: func(p Profile) bool { return p.Level >= 5 }},
	{ID: "level_10", Qualifies: func(p Profile) bool { return p.Level >= 10 }},
}

// CompletionInput is everything the engine needs to score one completion.
type CompletionInput struct {
	Priority         breakdown.Priority
	EstimatedMinutes int
	ActualMinutes    *int
	CompletedAt      time.Time
	// Location is the user's home timezone; streak math runs on that
	// calendar, not the server's.
	Location *time.Location
}

// Engine computes XP, streaks, levels, and badges. Pure: it never touches
// storage and the same profile and input always produce the same output.
type Engine struct {
	baseXP           int
	focusBonus       int
	levelStep        int
	multiplierLow    float64
	multiplierMedium float64
	multiplierHigh   float64
}

// NewEngine creates an engine from the XP configuration.
func NewEngine(cfg config.XPConfig) *Engine {
	return &Engine{
		baseXP:           cfg.Base,
		focusBonus:       cfg.FocusBonus,
		levelStep:        cfg.LevelStep,
		multiplierLow:    cfg.MultiplierLow,
		multiplierMedium: cfg.MultiplierMedium,
		multiplierHigh:   cfg.MultiplierHigh,
	}
}

// Apply scores one completion against a profile and returns the mutated
// profile plus the delta report. XP: floor(base × priority multiplier), plus
// the focus bonus when the reported actual time is within the estimate.
// Finishing late never subtracts anything.
func (e *Engine) Apply(p Profile, in CompletionInput) (Profile, CompletionResult) {
	xp := int(math.Floor(float64(e.baseXP) * e.multiplier(in.Priority)))
	if in.ActualMinutes != nil && *in.ActualMinutes <= in.EstimatedMinutes {
		xp += e.focusBonus
	}

	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	completedAt := in.CompletedAt

	p.CurrentStreak = nextStreak(p.LastCompletionDate, completedAt, p.CurrentStreak, loc)
	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}
	p.LastCompletionDate = &completedAt

	oldLevel := p.Level
	p.TotalXP += xp
	p.Level = p.TotalXP / e.levelStep
	p.TasksCompleted++

	newBadges := evaluateBadges(&p)

	return p, CompletionResult{
		XPEarned:      xp,
		LevelUp:       p.Level > oldLevel,
		NewLevel:      p.Level,
		NewBadges:     newBadges,
		CurrentStreak: p.CurrentStreak,
		TotalXP:       p.TotalXP,
	}
}

func (e *Engine) multiplier(p breakdown.Priority) float64 {
	switch p {
	case breakdown.PriorityHigh:
		return e.multiplierHigh
	case breakdown.PriorityLow:
		return e.multiplierLow
	default:
		return e.multiplierMedium
	}
}

// nextStreak runs the calendar-day state machine: same day keeps the streak,
// the day after the last completion extends it, anything else starts over.
func nextStreak(last *time.Time, completedAt time.Time, current int, loc *time.Location) int {
	if last == nil {
		return 1
	}
	today := completedAt.In(loc)
	lastDay := last.In(loc)
	if sameDay(today, lastDay) {
		if current < 1 {
			return 1
		}
		return current
	}
	if sameDay(today.AddDate(0, 0, -1), lastDay) {
		return current + 1
	}
	return 1
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func evaluateBadges(p *Profile) []string {
	earned := make(map[string]bool, len(p.Badges))
	for _, b := range p.Badges {
		earned[b] = true
	}

	// Copy before appending so the caller's slice is never aliased.
	badges := make([]string, len(p.Badges), len(p.Badges)+len(badgeRules))
	copy(badges, p.Badges)
	p.Badges = badges

	var added []string
	for _, rule := range badgeRules {
		if earned[rule.ID] || !rule.Qualifies(*p) {
			continue
		}
		p.Badges = append(p.Badges, rule.ID)
		added = append(added, rule.ID)
	}
	return added
}
