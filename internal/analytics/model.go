package analytics

// QuickStats is the at-a-glance overview block of the summary.
type QuickStats struct {
	TotalTasksCreated   int     `json:"total_tasks_created"`
	TotalTasksCompleted int     `json:"total_tasks_completed"`
	CompletionRate      float64 `json:"overall_completion_rate"`
	AverageTaskDuration float64 `json:"average_task_duration_minutes"`
	CurrentStreak       int     `json:"current_streak"`
	LongestStreak       int     `json:"longest_streak"`
	TotalXP             int     `json:"total_xp"`
	Level               int     `json:"current_level"`
}

// CategoryStats reports completion performance for one task category.
type CategoryStats struct {
	Category       string  `json:"category"`
	CompletedTasks int     `json:"completed_tasks"`
	TotalTasks     int     `json:"total_tasks"`
	CompletionRate float64 `json:"completion_rate"`
}

// TimeOfDayStats reports completion performance for one context bucket
// (morning, afternoon, evening, night).
type TimeOfDayStats struct {
	TimeOfDay      string  `json:"time_of_day"`
	CompletedTasks int     `json:"completed_tasks"`
	TotalTasks     int     `json:"total_tasks"`
	CompletionRate float64 `json:"completion_rate"`
}

// StuckCategory flags a category whose rated sessions average poorly.
type StuckCategory struct {
	Category      string  `json:"category"`
	AverageRating float64 `json:"average_rating"`
	RatedSessions int     `json:"rated_sessions"`
}

// TrendPoint is one day of the created/completed trend.
type TrendPoint struct {
	Date           string `json:"date"`
	TasksCreated   int    `json:"tasks_created"`
	TasksCompleted int    `json:"tasks_completed"`
}

// Insight is a short personalized observation derived from the stats.
type Insight struct {
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Category    string  `json:"category"`
}

// Summary is the full analytics payload. Read-only: nothing here writes
// back into the learning loop.
type Summary struct {
	QuickStats      QuickStats       `json:"quick_stats"`
	ByCategory      []CategoryStats  `json:"completion_rate_by_category"`
	BestTimeOfDay   []TimeOfDayStats `json:"best_time_of_day"`
	StuckCategories []StuckCategory  `json:"stuck_categories"`
	Trend           []TrendPoint     `json:"trend_over_time"`
	Insights        []Insight        `json:"insights"`
}
