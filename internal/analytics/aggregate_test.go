package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epochish/klarita/internal/breakdown"
)

func taskRow(title string, status breakdown.TaskStatus, minutes int, timeOfDay string) TaskRow {
	return TaskRow{
		Title:            title,
		Status:           status,
		EstimatedMinutes: minutes,
		TimeOfDay:        timeOfDay,
		SessionCreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, CategoryWork, categorize("Email the client about the deadline"))
	assert.Equal(t, CategoryWork, categorize("PREPARE PRESENTATION SLIDES"))
	assert.Equal(t, CategoryHealth, categorize("Book a doctor appointment"))
	assert.Equal(t, CategoryLife, categorize("Do the laundry"))
	assert.Equal(t, CategoryStudy, categorize("Research thesis sources"))
	assert.Equal(t, CategoryOther, categorize("Paint the fence"))
}

func TestCategorize_FirstMatchWins(t *testing.T) {
	// "meeting" (Work) appears before "study" keywords are checked.
	assert.Equal(t, CategoryWork, categorize("Schedule study group meeting"))
	// Matching is by substring: "workout" contains "work", so Work wins.
	assert.Equal(t, CategoryWork, categorize("Evening workout"))
}

func TestBuildQuickStats(t *testing.T) {
	rows := []TaskRow{
		taskRow("Email the client", breakdown.StatusCompleted, 20, "morning"),
		taskRow("Write report", breakdown.StatusCompleted, 40, "morning"),
		taskRow("Clean kitchen", breakdown.StatusPending, 30, "evening"),
		taskRow("Go for a run", breakdown.StatusPending, 25, "evening"),
	}
	ps := ProfileStats{TotalXP: 150, Level: 1, CurrentStreak: 3, LongestStreak: 8}

	stats := buildQuickStats(rows, ps)

	assert.Equal(t, 4, stats.TotalTasksCreated)
	assert.Equal(t, 2, stats.TotalTasksCompleted)
	assert.Equal(t, 50.0, stats.CompletionRate)
	assert.Equal(t, 30.0, stats.AverageTaskDuration)
	assert.Equal(t, 150, stats.TotalXP)
	assert.Equal(t, 1, stats.Level)
	assert.Equal(t, 3, stats.CurrentStreak)
	assert.Equal(t, 8, stats.LongestStreak)
}

func TestBuildQuickStats_ZeroHistory(t *testing.T) {
	stats := buildQuickStats(nil, ProfileStats{})

	assert.Equal(t, QuickStats{}, stats)
}

func TestBuildCategoryStats(t *testing.T) {
	rows := []TaskRow{
		taskRow("Email the client", breakdown.StatusCompleted, 20, "morning"),
		taskRow("Write project report", breakdown.StatusCompleted, 30, "morning"),
		taskRow("Morning gym session", breakdown.StatusCompleted, 45, "morning"),
		taskRow("Evening exercise", breakdown.StatusPending, 45, "evening"),
	}

	stats := buildCategoryStats(rows)

	require.Len(t, stats, 2)
	assert.Equal(t, CategoryWork, stats[0].Category)
	assert.Equal(t, 100.0, stats[0].CompletionRate)
	assert.Equal(t, 2, stats[0].TotalTasks)
	assert.Equal(t, CategoryHealth, stats[1].Category)
	assert.Equal(t, 50.0, stats[1].CompletionRate)
}

func TestBuildTimeOfDayStats(t *testing.T) {
	rows := []TaskRow{
		taskRow("Email inbox zero", breakdown.StatusCompleted, 15, "morning"),
		taskRow("Write notes", breakdown.StatusCompleted, 15, "morning"),
		taskRow("Clean desk", breakdown.StatusPending, 10, "night"),
		taskRow("Untagged task", breakdown.StatusPending, 10, ""),
	}

	stats := buildTimeOfDayStats(rows)

	require.Len(t, stats, 2, "rows without a time-of-day snapshot are skipped")
	assert.Equal(t, "morning", stats[0].TimeOfDay)
	assert.Equal(t, 100.0, stats[0].CompletionRate)
	assert.Equal(t, "night", stats[1].TimeOfDay)
	assert.Equal(t, 0.0, stats[1].CompletionRate)
}

func TestBuildStuckCategories(t *testing.T) {
	rated := []RatedSessionRow{
		{Goal: "Finish work project", Rating: 1},
		{Goal: "Prepare client report", Rating: 3},
		{Goal: "Weekly grocery shopping", Rating: 2},
		{Goal: "Clean the whole house", Rating: 2},
		{Goal: "Study for finals", Rating: 5},
	}

	stuck := buildStuckCategories(rated)

	// Work averages 2.0, Life averages 2.0, Study averages 5.
	require.Len(t, stuck, 2)
	assert.Equal(t, CategoryLife, stuck[0].Category)
	assert.Equal(t, 2.0, stuck[0].AverageRating)
	assert.Equal(t, 2, stuck[0].RatedSessions)
	assert.Equal(t, CategoryWork, stuck[1].Category)
	assert.Equal(t, 2.0, stuck[1].AverageRating)
}

func TestBuildStuckCategories_NoneStuck(t *testing.T) {
	rated := []RatedSessionRow{
		{Goal: "Finish work project", Rating: 4},
		{Goal: "Morning run plan", Rating: 5},
	}

	stuck := buildStuckCategories(rated)
	assert.Empty(t, stuck)
	assert.NotNil(t, stuck)
}

func TestBuildTrend(t *testing.T) {
	now := time.Date(2025, 6, 30, 15, 0, 0, 0, time.UTC)
	yesterday := time.Date(2025, 6, 29, 10, 0, 0, 0, time.UTC)
	completedToday := time.Date(2025, 6, 30, 11, 0, 0, 0, time.UTC)

	rows := []TaskRow{
		{Title: "Old task", Status: breakdown.StatusPending, SessionCreatedAt: now.AddDate(0, 0, -60)},
		{Title: "Created yesterday", Status: breakdown.StatusPending, SessionCreatedAt: yesterday},
		{Title: "Done today", Status: breakdown.StatusCompleted, SessionCreatedAt: yesterday, CompletedAt: &completedToday},
	}

	trend := buildTrend(rows, now)

	require.Len(t, trend, 30)
	assert.Equal(t, "2025-06-01", trend[0].Date)
	assert.Equal(t, "2025-06-30", trend[29].Date)

	byDate := make(map[string]TrendPoint, len(trend))
	for _, p := range trend {
		byDate[p.Date] = p
	}
	assert.Equal(t, 2, byDate["2025-06-29"].TasksCreated)
	assert.Equal(t, 0, byDate["2025-06-29"].TasksCompleted)
	assert.Equal(t, 0, byDate["2025-06-30"].TasksCreated)
	assert.Equal(t, 1, byDate["2025-06-30"].TasksCompleted)
	assert.Equal(t, 0, byDate["2025-06-15"].TasksCreated, "untouched days are zero-filled")
}

func TestBuildInsights_Thresholds(t *testing.T) {
	quick := QuickStats{AverageTaskDuration: 10, CurrentStreak: 6}
	byCategory := []CategoryStats{{Category: CategoryWork, CompletionRate: 85, TotalTasks: 10, CompletedTasks: 9}}
	byTime := []TimeOfDayStats{{TimeOfDay: "morning", CompletionRate: 75, TotalTasks: 8, CompletedTasks: 6}}

	insights := buildInsights(quick, byCategory, byTime)

	require.Len(t, insights, 4)
	assert.Equal(t, "pattern_recognition", insights[0].Type)
	assert.Contains(t, insights[0].Title, "Work")
	assert.Contains(t, insights[1].Title, "morning")
	assert.Equal(t, "You prefer short, focused tasks", insights[2].Title)
	assert.Contains(t, insights[3].Title, "day 6")
}

func TestBuildInsights_QuietWhenUnremarkable(t *testing.T) {
	quick := QuickStats{AverageTaskDuration: 25, CurrentStreak: 2}
	byCategory := []CategoryStats{{Category: CategoryOther, CompletionRate: 40}}
	byTime := []TimeOfDayStats{{TimeOfDay: "evening", CompletionRate: 50}}

	insights := buildInsights(quick, byCategory, byTime)
	assert.Empty(t, insights)
}

type emptyRepo struct{}

func (emptyRepo) LoadTaskRows(context.Context, uuid.UUID) ([]TaskRow, error) {
	return nil, nil
}

func (emptyRepo) LoadRatedSessions(context.Context, uuid.UUID) ([]RatedSessionRow, error) {
	return nil, nil
}

func (emptyRepo) LoadProfileStats(context.Context, uuid.UUID) (ProfileStats, error) {
	return ProfileStats{}, nil
}

func TestSummarize_ZeroHistory(t *testing.T) {
	svc := NewService(emptyRepo{})

	summary, err := svc.Summarize(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, QuickStats{}, summary.QuickStats)
	assert.NotNil(t, summary.ByCategory)
	assert.Empty(t, summary.ByCategory)
	assert.NotNil(t, summary.BestTimeOfDay)
	assert.Empty(t, summary.BestTimeOfDay)
	assert.NotNil(t, summary.StuckCategories)
	assert.Empty(t, summary.StuckCategories)
	assert.Len(t, summary.Trend, 30)
	assert.NotNil(t, summary.Insights)
	assert.Empty(t, summary.Insights)
}
