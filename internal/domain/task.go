package domain

import (
	"regexp"
	"time"
)

// Task is the domain entity. It does not depend on Gin, the file store or Redis.
// A task is owned by exactly one day partition; it never appears in two days
// except while the legacy migration copies it forward.
type Task struct {
	ID        string    `json:"id" db:"id"`
	Text      string    `json:"text" db:"text"`
	Completed bool      `json:"completed" db:"completed"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// IncompleteTask is a read-only projection of a Task found in a day before
// today, tagged with the partition it was read from. Never persisted.
type IncompleteTask struct {
	Task
	OriginalDate string `json:"originalDate"`
}

// DayCounts are per-date aggregates for the calendar view. Derived, not persisted.
type DayCounts struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Incomplete int `json:"incomplete"`
}

// TasksData is the aggregate root of the file-backed store: the days mapping
// is the sole source of truth, no task exists outside it.
type TasksData struct {
	Version       int               `json:"version"`
	LastMigration time.Time         `json:"lastMigration"`
	Days          map[string][]Task `json:"days"`
}

// CurrentVersion is the schema version written into new aggregates.
const CurrentVersion = 1

// NewTasksData returns the default aggregate persisted on first read.
func NewTasksData(now time.Time) TasksData {
	return TasksData{
		Version:       CurrentVersion,
		LastMigration: now,
		Days:          map[string][]Task{},
	}
}

// DateLayout is the day partition key format. Keys are zero-padded, so
// lexicographic comparison matches chronological order.
const DateLayout = "2006-01-02"

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDateKey reports whether s looks like a YYYY-MM-DD partition key.
func ValidDateKey(s string) bool {
	return dateRe.MatchString(s)
}

// DateKey formats t as a day partition key in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
