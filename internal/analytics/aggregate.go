package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/epochish/klarita/internal/breakdown"
)

const trendDays = 30

var timeOfDayOrder = map[string]int{
	"morning":   0,
	"afternoon": 1,
	"evening":   2,
	"night":     3,
}

func buildQuickStats(rows []TaskRow, ps ProfileStats) QuickStats {
	stats := QuickStats{
		TotalTasksCreated: len(rows),
		CurrentStreak:     ps.CurrentStreak,
		LongestStreak:     ps.LongestStreak,
		TotalXP:           ps.TotalXP,
		Level:             ps.Level,
	}

	durationSum := 0
	durationCount := 0
	for _, row := range rows {
		if row.Status != breakdown.StatusCompleted {
			continue
		}
		stats.TotalTasksCompleted++
		if row.EstimatedMinutes > 0 {
			durationSum += row.EstimatedMinutes
			durationCount++
		}
	}

	if stats.TotalTasksCreated > 0 {
		stats.CompletionRate = round1(float64(stats.TotalTasksCompleted) / float64(stats.TotalTasksCreated) * 100)
	}
	if durationCount > 0 {
		stats.AverageTaskDuration = round1(float64(durationSum) / float64(durationCount))
	}
	return stats
}

func buildCategoryStats(rows []TaskRow) []CategoryStats {
	type bucket struct {
		completed int
		total     int
	}
	buckets := make(map[string]*bucket)
	for _, row := range rows {
		category := categorize(row.Title)
		b, ok := buckets[category]
		if !ok {
			b = &bucket{}
			buckets[category] = b
		}
		b.total++
		if row.Status == breakdown.StatusCompleted {
			b.completed++
		}
	}

	stats := make([]CategoryStats, 0, len(buckets))
	for category, b := range buckets {
		stats = append(stats, CategoryStats{
			Category:       category,
			CompletedTasks: b.completed,
			TotalTasks:     b.total,
			CompletionRate: round1(float64(b.completed) / float64(b.total) * 100),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].CompletionRate != stats[j].CompletionRate {
			return stats[i].CompletionRate > stats[j].CompletionRate
		}
		return stats[i].Category < stats[j].Category
	})
	return stats
}

func buildTimeOfDayStats(rows []TaskRow) []TimeOfDayStats {
	type bucket struct {
		completed int
		total     int
	}
	buckets := make(map[string]*bucket)
	for _, row := range rows {
		if row.TimeOfDay == "" {
			continue
		}
		b, ok := buckets[row.TimeOfDay]
		if !ok {
			b = &bucket{}
			buckets[row.TimeOfDay] = b
		}
		b.total++
		if row.Status == breakdown.StatusCompleted {
			b.completed++
		}
	}

	stats := make([]TimeOfDayStats, 0, len(buckets))
	for timeOfDay, b := range buckets {
		stats = append(stats, TimeOfDayStats{
			TimeOfDay:      timeOfDay,
			CompletedTasks: b.completed,
			TotalTasks:     b.total,
			CompletionRate: round1(float64(b.completed) / float64(b.total) * 100),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].CompletionRate != stats[j].CompletionRate {
			return stats[i].CompletionRate > stats[j].CompletionRate
		}
		return timeOfDayOrder[stats[i].TimeOfDay] < timeOfDayOrder[stats[j].TimeOfDay]
	})
	return stats
}

func buildStuckCategories(rated []RatedSessionRow) []StuckCategory {
	type bucket struct {
		sum   int
		count int
	}
	buckets := make(map[string]*bucket)
	for _, row := range rated {
		category := categorize(row.Goal)
		b, ok := buckets[category]
		if !ok {
			b = &bucket{}
			buckets[category] = b
		}
		b.sum += row.Rating
		b.count++
	}

	stuck := make([]StuckCategory, 0)
	for category, b := range buckets {
		avg := float64(b.sum) / float64(b.count)
		if avg > 2.0 {
			continue
		}
		stuck = append(stuck, StuckCategory{
			Category:      category,
			AverageRating: round1(avg),
			RatedSessions: b.count,
		})
	}
	sort.Slice(stuck, func(i, j int) bool {
		if stuck[i].AverageRating != stuck[j].AverageRating {
			return stuck[i].AverageRating < stuck[j].AverageRating
		}
		return stuck[i].Category < stuck[j].Category
	})
	return stuck
}

// buildTrend produces one point per day for the trailing window, zero-filled
// so charts never have gaps. Created counts use the session's creation day,
// completed counts the task's completion day.
func buildTrend(rows []TaskRow, now time.Time) []TrendPoint {
	created := make(map[string]int)
	completed := make(map[string]int)
	for _, row := range rows {
		created[row.SessionCreatedAt.UTC().Format("2006-01-02")]++
		if row.CompletedAt != nil {
			completed[row.CompletedAt.UTC().Format("2006-01-02")]++
		}
	}

	trend := make([]TrendPoint, 0, trendDays)
	start := now.UTC().AddDate(0, 0, -(trendDays - 1))
	for i := 0; i < trendDays; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		trend = append(trend, TrendPoint{
			Date:           date,
			TasksCreated:   created[date],
			TasksCompleted: completed[date],
		})
	}
	return trend
}

func buildInsights(quick QuickStats, byCategory []CategoryStats, byTime []TimeOfDayStats) []Insight {
	insights := make([]Insight, 0)

	if len(byCategory) > 0 {
		best := byCategory[0]
		if best.CompletionRate > 80 {
			insights = append(insights, Insight{
				Type:        "pattern_recognition",
				Title:       fmt.Sprintf("You excel at %s tasks!", best.Category),
				Description: fmt.Sprintf("You have a %.1f%% completion rate for %s tasks. Consider scheduling more challenging tasks in this category.", best.CompletionRate, best.Category),
				Confidence:  0.9,
				Category:    best.Category,
			})
		}
	}

	if len(byTime) > 0 {
		best := byTime[0]
		if best.CompletionRate > 70 {
			insights = append(insights, Insight{
				Type:        "productivity_tip",
				Title:       fmt.Sprintf("Your peak productivity is in the %s", best.TimeOfDay),
				Description: fmt.Sprintf("You complete %.1f%% of tasks planned in the %s. Try scheduling important tasks during this time.", best.CompletionRate, best.TimeOfDay),
				Confidence:  0.8,
				Category:    "time_management",
			})
		}
	}

	if quick.AverageTaskDuration > 0 {
		if quick.AverageTaskDuration < 15 {
			insights = append(insights, Insight{
				Type:        "recommendation",
				Title:       "You prefer short, focused tasks",
				Description: "Your average task duration is under 15 minutes. Consider breaking larger goals into smaller, bite-sized tasks.",
				Confidence:  0.7,
				Category:    "task_management",
			})
		} else if quick.AverageTaskDuration > 45 {
			insights = append(insights, Insight{
				Type:        "recommendation",
				Title:       "You work well with longer tasks",
				Description: "Your average task duration is over 45 minutes. You might benefit from deep work sessions and fewer task switches.",
				Confidence:  0.7,
				Category:    "task_management",
			})
		}
	}

	if quick.CurrentStreak > 5 {
		insights = append(insights, Insight{
			Type:        "productivity_tip",
			Title:       fmt.Sprintf("Amazing streak! You're on day %d", quick.CurrentStreak),
			Description: "Keep up the momentum! Research shows that consistency is key to building lasting habits.",
			Confidence:  0.95,
			Category:    "motivation",
		})
	}

	return insights
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
