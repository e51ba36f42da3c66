package analytics

import "strings"

const (
	CategoryWork   = "Work"
	CategoryHealth = "Health"
	CategoryLife   = "Life"
	CategoryStudy  = "Study"
	CategoryOther  = "Other"
)

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryWork, []string{"work", "job", "meeting", "email", "project", "deadline", "client", "report", "presentation"}},
	{CategoryHealth, []string{"gym", "exercise", "workout", "doctor", "health", "medicine", "vitamins", "walk", "run"}},
	{CategoryLife, []string{"home", "family", "grocery", "shopping", "clean", "cook", "laundry", "bills", "personal"}},
	{CategoryStudy, []string{"study", "learn", "read", "book", "course", "homework", "research", "practice"}},
}

// categorize buckets a task title or goal by keyword match. First matching
// category wins, in Work, Health, Life, Study order.
func categorize(title string) string {
	lower := strings.ToLower(title)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.category
			}
		}
	}
	return CategoryOther
}
