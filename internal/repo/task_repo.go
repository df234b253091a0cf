package repo

import (
	"context"
	"time"

	dom "github.com/nxhieu3102/ai-assistant/internal/domain"
	"github.com/nxhieu3102/ai-assistant/internal/store"
)

// TaskRepo is the date-oriented facade over durable storage. No business
// validation lives here.
type TaskRepo interface {
	// GetTasksForDate returns the day's tasks, or an empty slice if the
	// partition does not exist.
	GetTasksForDate(ctx context.Context, date string) ([]dom.Task, error)
	// SaveTasksForDate replaces the day's task list wholesale.
	SaveTasksForDate(ctx context.Context, date string, tasks []dom.Task) error
	// UpdateTasksForDate applies fn to the day's task list and persists the
	// returned list, all inside one storage critical section.
	UpdateTasksForDate(ctx context.Context, date string, fn func([]dom.Task) ([]dom.Task, error)) error
	// GetAllDays returns every partition. Full scan, used only for
	// cross-day aggregation.
	GetAllDays(ctx context.Context) (map[string][]dom.Task, error)
	// DeleteDaysBefore removes every partition whose key sorts before
	// cutoff. Valid because keys are zero-padded YYYY-MM-DD.
	DeleteDaysBefore(ctx context.Context, cutoff string) error
	GetLastMigration(ctx context.Context) (time.Time, error)
	SetLastMigration(ctx context.Context, ts time.Time) error
}

// FileTaskRepo realizes TaskRepo on top of the whole-aggregate file store.
type FileTaskRepo struct {
	store store.Store
}

func NewFileTaskRepo(s store.Store) *FileTaskRepo {
	return &FileTaskRepo{store: s}
}

func (r *FileTaskRepo) GetTasksForDate(ctx context.Context, date string) ([]dom.Task, error) {
	data, err := r.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	tasks := data.Days[date]
	if tasks == nil {
		return []dom.Task{}, nil
	}
	return tasks, nil
}

func (r *FileTaskRepo) SaveTasksForDate(ctx context.Context, date string, tasks []dom.Task) error {
	return r.store.Update(ctx, func(data *dom.TasksData) error {
		data.Days[date] = tasks
		// LastMigration doubles as a last-write marker in the shared
		// aggregate; every save refreshes it.
		data.LastMigration = time.Now().UTC()
		return nil
	})
}

func (r *FileTaskRepo) UpdateTasksForDate(ctx context.Context, date string, fn func([]dom.Task) ([]dom.Task, error)) error {
	return r.store.Update(ctx, func(data *dom.TasksData) error {
		next, err := fn(data.Days[date])
		if err != nil {
			return err
		}
		data.Days[date] = next
		data.LastMigration = time.Now().UTC()
		return nil
	})
}

func (r *FileTaskRepo) GetAllDays(ctx context.Context) (map[string][]dom.Task, error) {
	data, err := r.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data.Days, nil
}

func (r *FileTaskRepo) DeleteDaysBefore(ctx context.Context, cutoff string) error {
	return r.store.Update(ctx, func(data *dom.TasksData) error {
		for date := range data.Days {
			if date < cutoff {
				delete(data.Days, date)
			}
		}
		return nil
	})
}

func (r *FileTaskRepo) GetLastMigration(ctx context.Context) (time.Time, error) {
	data, err := r.store.Read(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return data.LastMigration, nil
}

func (r *FileTaskRepo) SetLastMigration(ctx context.Context, ts time.Time) error {
	return r.store.Update(ctx, func(data *dom.TasksData) error {
		data.LastMigration = ts
		return nil
	})
}
