package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dom "github.com/nxhieu3102/ai-assistant/internal/domain"
	"github.com/nxhieu3102/ai-assistant/internal/store"
)

func newFileRepo(t *testing.T) *FileTaskRepo {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	return NewFileTaskRepo(fs)
}

func task(id, text string, completed bool) dom.Task {
	now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	return dom.Task{ID: id, Text: text, Completed: completed, CreatedAt: now, UpdatedAt: now}
}

func taskIDs(tasks []dom.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func TestFileRepoMissingPartitionIsEmpty(t *testing.T) {
	r := newFileRepo(t)

	tasks, err := r.GetTasksForDate(context.Background(), "2024-01-02")
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.NotNil(t, tasks)
}

func TestFileRepoSaveGetRoundTrip(t *testing.T) {
	r := newFileRepo(t)
	ctx := context.Background()

	in := []dom.Task{task("A1", "one", false), task("A2", "two", true)}
	require.NoError(t, r.SaveTasksForDate(ctx, "2024-01-02", in))

	out, err := r.GetTasksForDate(ctx, "2024-01-02")
	require.NoError(t, err)
	assert.ElementsMatch(t, taskIDs(in), taskIDs(out))
}

func TestFileRepoSaveReplacesPartition(t *testing.T) {
	r := newFileRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SaveTasksForDate(ctx, "2024-01-02", []dom.Task{task("A1", "one", false)}))
	require.NoError(t, r.SaveTasksForDate(ctx, "2024-01-02", []dom.Task{task("B1", "other", false)}))

	out, err := r.GetTasksForDate(ctx, "2024-01-02")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "B1", out[0].ID)
}

func TestFileRepoSaveRefreshesLastMigration(t *testing.T) {
	r := newFileRepo(t)
	ctx := context.Background()

	before, err := r.GetLastMigration(ctx)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, r.SaveTasksForDate(ctx, "2024-01-02", []dom.Task{task("A1", "one", false)}))

	after, err := r.GetLastMigration(ctx)
	require.NoError(t, err)
	assert.True(t, after.After(before))
}

func TestFileRepoUpdateTasksForDate(t *testing.T) {
	r := newFileRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SaveTasksForDate(ctx, "2024-01-02", []dom.Task{task("A1", "one", false)}))

	err := r.UpdateTasksForDate(ctx, "2024-01-02", func(tasks []dom.Task) ([]dom.Task, error) {
		return append(tasks, task("A2", "two", false)), nil
	})
	require.NoError(t, err)

	out, err := r.GetTasksForDate(ctx, "2024-01-02")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A1", "A2"}, taskIDs(out))
}

func TestFileRepoUpdateTasksForDatePropagatesDomainError(t *testing.T) {
	r := newFileRepo(t)
	ctx := context.Background()

	err := r.UpdateTasksForDate(ctx, "2024-01-02", func(tasks []dom.Task) ([]dom.Task, error) {
		return nil, &dom.NotFoundError{Msg: "Task not found"}
	})
	var nf *dom.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestFileRepoDeleteDaysBefore(t *testing.T) {
	r := newFileRepo(t)
	ctx := context.Background()

	for _, date := range []string{"2023-12-01", "2024-01-01", "2024-01-02", "2024-01-15"} {
		require.NoError(t, r.SaveTasksForDate(ctx, date, []dom.Task{task("T-"+date, "x", false)}))
	}

	require.NoError(t, r.DeleteDaysBefore(ctx, "2024-01-02"))

	days, err := r.GetAllDays(ctx)
	require.NoError(t, err)
	assert.NotContains(t, days, "2023-12-01")
	assert.NotContains(t, days, "2024-01-01")
	assert.Contains(t, days, "2024-01-02")
	assert.Contains(t, days, "2024-01-15")
}

func TestFileRepoLastMigrationRoundTrip(t *testing.T) {
	r := newFileRepo(t)
	ctx := context.Background()

	ts := time.Date(2024, 1, 2, 6, 30, 0, 0, time.UTC)
	require.NoError(t, r.SetLastMigration(ctx, ts))

	got, err := r.GetLastMigration(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))
}
