package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/nxhieu3102/ai-assistant/internal/cache"
	dom "github.com/nxhieu3102/ai-assistant/internal/domain"
	"github.com/nxhieu3102/ai-assistant/internal/repo"
)

// MaxTaskTextLen is the upper bound on task text after trimming.
const MaxTaskTextLen = 140

// Config carries the business knobs for TaskService.
type Config struct {
	// MigrationEnabled re-enables the legacy cross-day migration. When false
	// (the default deployment) POST /tasks/migrate is a no-op that reports
	// success and tasks stay in their original day.
	MigrationEnabled bool
	// RetentionDays is the sweep window used by the legacy migration.
	RetentionDays int
}

// TaskService owns all business rules and validation. HTTP handlers depend
// on it and on nothing below it.
type TaskService struct {
	repo  repo.TaskRepo
	cache *cache.TaskCache
	sf    singleflight.Group
	log   *slog.Logger
	cfg   Config

	now func() time.Time
}

// NewTaskService creates a TaskService. If c is nil, caching is disabled.
func NewTaskService(r repo.TaskRepo, c *cache.TaskCache, cfg Config, log *slog.Logger) *TaskService {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if log == nil {
		log = slog.Default()
	}
	return &TaskService{repo: r, cache: c, cfg: cfg, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// generateID builds an opaque unique id: base-36 unix-millis plus 8 random
// bytes hex-encoded, upper-cased. Not used for anything security-relevant.
func (s *TaskService) generateID() string {
	ts := strconv.FormatInt(s.now().UnixMilli(), 36)
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return strings.ToUpper(ts + hex.EncodeToString(buf))
}

func (s *TaskService) today() string {
	return dom.DateKey(s.now())
}

func validateTaskText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", &dom.ValidationError{Msg: "Task text cannot be empty"}
	}
	if utf8.RuneCountInString(trimmed) > MaxTaskTextLen {
		return "", &dom.ValidationError{Msg: fmt.Sprintf("Task text must be %d characters or less", MaxTaskTextLen)}
	}
	return trimmed, nil
}

// resolveDate defaults an empty date to today and validates the key shape.
func (s *TaskService) resolveDate(date string) (string, error) {
	if date == "" {
		return s.today(), nil
	}
	if !dom.ValidDateKey(date) {
		return "", &dom.ValidationError{Msg: "Invalid date format. Use YYYY-MM-DD"}
	}
	return date, nil
}

// sortTasks orders for display: incomplete before completed, newest created
// first within each group. Stable, so equal keys keep their stored order.
func sortTasks(tasks []dom.Task) []dom.Task {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Completed != tasks[j].Completed {
			return !tasks[i].Completed
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks
}

// GetTasksForDate returns the day's tasks sorted for display. An empty date
// means today.
func (s *TaskService) GetTasksForDate(ctx context.Context, date string) ([]dom.Task, error) {
	target, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		v, err, _ := s.sf.Do("day:"+target, func() (interface{}, error) {
			if list, err := s.cache.GetDay(ctx, target); err == nil && list != nil {
				return list, nil
			}
			list, err := s.repo.GetTasksForDate(ctx, target)
			if err != nil {
				return nil, err
			}
			list = sortTasks(list)
			_ = s.cache.SetDay(ctx, target, list)
			return list, nil
		})
		if err != nil {
			return nil, err
		}
		return v.([]dom.Task), nil
	}

	tasks, err := s.repo.GetTasksForDate(ctx, target)
	if err != nil {
		return nil, err
	}
	return sortTasks(tasks), nil
}

// CreateTask validates text, rejects past dates, assigns id and timestamps,
// and appends the task to its day partition.
func (s *TaskService) CreateTask(ctx context.Context, text, date string) (dom.Task, error) {
	trimmed, err := validateTaskText(text)
	if err != nil {
		return dom.Task{}, err
	}
	target, err := s.resolveDate(date)
	if err != nil {
		return dom.Task{}, err
	}
	if target < s.today() {
		return dom.Task{}, &dom.InvalidOperationError{Msg: "Cannot create tasks for past dates"}
	}

	now := s.now()
	task := dom.Task{
		ID:        s.generateID(),
		Text:      trimmed,
		Completed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.repo.UpdateTasksForDate(ctx, target, func(tasks []dom.Task) ([]dom.Task, error) {
		return append(tasks, task), nil
	})
	if err != nil {
		return dom.Task{}, err
	}
	s.invalidateCache(ctx)
	return task, nil
}

// UpdateTask applies a partial update (text and/or completed) to the task
// with the given id in the target day.
func (s *TaskService) UpdateTask(ctx context.Context, id string, text *string, completed *bool, date string) (dom.Task, error) {
	target, err := s.resolveDate(date)
	if err != nil {
		return dom.Task{}, err
	}

	var trimmed string
	if text != nil {
		trimmed, err = validateTaskText(*text)
		if err != nil {
			return dom.Task{}, err
		}
	}

	var updated dom.Task
	err = s.repo.UpdateTasksForDate(ctx, target, func(tasks []dom.Task) ([]dom.Task, error) {
		idx := indexOfTask(tasks, id)
		if idx < 0 {
			return nil, &dom.NotFoundError{Msg: "Task not found"}
		}
		t := tasks[idx]
		if text != nil {
			t.Text = trimmed
		}
		if completed != nil {
			t.Completed = *completed
		}
		t.UpdatedAt = s.now()
		tasks[idx] = t
		updated = t
		return tasks, nil
	})
	if err != nil {
		return dom.Task{}, err
	}
	s.invalidateCache(ctx)
	return updated, nil
}

// DeleteTask removes the task with the given id from the target day and
// returns the removed task.
func (s *TaskService) DeleteTask(ctx context.Context, id, date string) (dom.Task, error) {
	target, err := s.resolveDate(date)
	if err != nil {
		return dom.Task{}, err
	}

	var removed dom.Task
	err = s.repo.UpdateTasksForDate(ctx, target, func(tasks []dom.Task) ([]dom.Task, error) {
		idx := indexOfTask(tasks, id)
		if idx < 0 {
			return nil, &dom.NotFoundError{Msg: "Task not found"}
		}
		removed = tasks[idx]
		return append(tasks[:idx], tasks[idx+1:]...), nil
	})
	if err != nil {
		return dom.Task{}, err
	}
	s.invalidateCache(ctx)
	return removed, nil
}

// GetTaskCountsByDate returns {total, completed, incomplete} per day for the
// calendar view. Pure aggregation, no mutation.
func (s *TaskService) GetTaskCountsByDate(ctx context.Context) (map[string]dom.DayCounts, error) {
	if s.cache != nil {
		v, err, _ := s.sf.Do("calendar", func() (interface{}, error) {
			if counts, err := s.cache.GetCalendar(ctx); err == nil && counts != nil {
				return counts, nil
			}
			counts, err := s.countsByDate(ctx)
			if err != nil {
				return nil, err
			}
			_ = s.cache.SetCalendar(ctx, counts)
			return counts, nil
		})
		if err != nil {
			return nil, err
		}
		return v.(map[string]dom.DayCounts), nil
	}
	return s.countsByDate(ctx)
}

func (s *TaskService) countsByDate(ctx context.Context) (map[string]dom.DayCounts, error) {
	allDays, err := s.repo.GetAllDays(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]dom.DayCounts, len(allDays))
	for date, tasks := range allDays {
		var c dom.DayCounts
		for _, t := range tasks {
			c.Total++
			if t.Completed {
				c.Completed++
			} else {
				c.Incomplete++
			}
		}
		counts[date] = c
	}
	return counts, nil
}

// GetIncompleteTasks collects every unfinished task from days strictly
// before today, tagged with its original day. Read-only: nothing is moved.
func (s *TaskService) GetIncompleteTasks(ctx context.Context) ([]dom.IncompleteTask, error) {
	if s.cache != nil {
		v, err, _ := s.sf.Do("incomplete", func() (interface{}, error) {
			if list, err := s.cache.GetIncomplete(ctx); err == nil && list != nil {
				return list, nil
			}
			list, err := s.incompleteTasks(ctx)
			if err != nil {
				return nil, err
			}
			_ = s.cache.SetIncomplete(ctx, list)
			return list, nil
		})
		if err != nil {
			return nil, err
		}
		return v.([]dom.IncompleteTask), nil
	}
	return s.incompleteTasks(ctx)
}

func (s *TaskService) incompleteTasks(ctx context.Context) ([]dom.IncompleteTask, error) {
	allDays, err := s.repo.GetAllDays(ctx)
	if err != nil {
		return nil, err
	}

	today := s.today()
	incomplete := []dom.IncompleteTask{}
	for date, tasks := range allDays {
		if date >= today {
			continue
		}
		for _, t := range tasks {
			if t.Completed {
				continue
			}
			incomplete = append(incomplete, dom.IncompleteTask{Task: t, OriginalDate: date})
		}
	}

	// Newest day first, newest task first within a day.
	sort.SliceStable(incomplete, func(i, j int) bool {
		if incomplete[i].OriginalDate != incomplete[j].OriginalDate {
			return incomplete[i].OriginalDate > incomplete[j].OriginalDate
		}
		return incomplete[i].CreatedAt.After(incomplete[j].CreatedAt)
	})
	return incomplete, nil
}

// MigrateUnfinishedTasks is the legacy cross-day migration, retained behind
// a flag for compatibility. Disabled it reports success without touching
// data; enabled it moves yesterday's unfinished tasks into today at most
// once per day and sweeps partitions past the retention window.
func (s *TaskService) MigrateUnfinishedTasks(ctx context.Context) (string, error) {
	if !s.cfg.MigrationEnabled {
		return "Migration disabled - tasks remain in their original dates", nil
	}

	today := s.today()
	lastMigration, err := s.repo.GetLastMigration(ctx)
	if err != nil {
		return "", err
	}
	if dom.DateKey(lastMigration) == today {
		return "Migration already completed today", nil
	}

	allDays, err := s.repo.GetAllDays(ctx)
	if err != nil {
		return "", err
	}

	yesterday := dom.DateKey(s.now().AddDate(0, 0, -1))
	now := s.now()

	var unfinished, finished []dom.Task
	for _, t := range allDays[yesterday] {
		if t.Completed {
			finished = append(finished, t)
			continue
		}
		t.UpdatedAt = now
		unfinished = append(unfinished, t)
	}

	if len(unfinished) > 0 {
		todayTasks := append(unfinished, allDays[today]...)
		if err := s.repo.SaveTasksForDate(ctx, today, todayTasks); err != nil {
			return "", err
		}
		// Lift the moved tasks out of their source day.
		if err := s.repo.SaveTasksForDate(ctx, yesterday, finished); err != nil {
			return "", err
		}
	}

	cutoff := dom.DateKey(s.now().AddDate(0, 0, -s.cfg.RetentionDays))
	if err := s.repo.DeleteDaysBefore(ctx, cutoff); err != nil {
		return "", err
	}
	if err := s.repo.SetLastMigration(ctx, s.now()); err != nil {
		return "", err
	}

	s.invalidateCache(ctx)
	s.log.Info("migrated unfinished tasks", "count", len(unfinished), "from", yesterday, "to", today)
	return fmt.Sprintf("Migrated %d unfinished tasks to today", len(unfinished)), nil
}

func (s *TaskService) invalidateCache(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.InvalidateAll(ctx)
	}
}

func indexOfTask(tasks []dom.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
