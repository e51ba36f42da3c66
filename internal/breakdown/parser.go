package breakdown

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	minTaskMinutes = 5
	maxTaskMinutes = 240
)

var errNoJSONArray = errors.New("no JSON array found in model output")

// TaskDraft is a parsed, validated task candidate ready for persistence.
type TaskDraft struct {
	Title             string
	Description       string
	EstimatedDuration int
	Priority          Priority
}

// RejectedTask records an entry the validator dropped and why.
type RejectedTask struct {
	Index  int
	Reason string
}

// ParseTasks extracts the JSON array from raw model output and decodes it
// into untyped entries. Models routinely wrap the array in markdown fences
// or prose, so everything outside the outermost brackets is discarded.
func ParseTasks(raw string) ([]map[string]any, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end <= start {
		return nil, errNoJSONArray
	}

	var entries []map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &entries); err != nil {
		return nil, fmt.Errorf("unmarshalling tasks: %w", err)
	}
	return entries, nil
}

// ValidateTasks runs each untyped entry through the task schema, returning
// the drafts that survived and the rejections. Rules: titles must be
// non-empty after trimming; positive durations are clamped into [5,240] and
// anything else falls back to defaultMinutes; unrecognized priorities become
// medium.
func ValidateTasks(entries []map[string]any, defaultMinutes int) ([]TaskDraft, []RejectedTask) {
	var drafts []TaskDraft
	var rejected []RejectedTask
	for i, entry := range entries {
		title := strings.TrimSpace(stringField(entry, "title"))
		if title == "" {
			rejected = append(rejected, RejectedTask{Index: i, Reason: "missing or empty title"})
			continue
		}
		drafts = append(drafts, TaskDraft{
			Title:             title,
			Description:       strings.TrimSpace(stringField(entry, "description")),
			EstimatedDuration: durationField(entry, defaultMinutes),
			Priority:          priorityField(entry),
		})
	}
	return drafts, rejected
}

func stringField(entry map[string]any, key string) string {
	if v, ok := entry[key].(string); ok {
		return v
	}
	return ""
}

// durationField reads the task's estimate. Some model outputs use the short
// key "estimated_duration" and some quote the number; both are accepted.
func durationField(entry map[string]any, defaultMinutes int) int {
	for _, key := range []string{"estimated_duration_minutes", "estimated_duration"} {
		if minutes, ok := minutesValue(entry[key]); ok {
			return clampDuration(minutes)
		}
	}
	return defaultMinutes
}

func minutesValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return int(n), true
		}
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && parsed > 0 {
			return parsed, true
		}
	}
	return 0, false
}

func priorityField(entry map[string]any) Priority {
	s, _ := entry["priority"].(string)
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

func clampDuration(minutes int) int {
	if minutes < minTaskMinutes {
		return minTaskMinutes
	}
	if minutes > maxTaskMinutes {
		return maxTaskMinutes
	}
	return minutes
}
