package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dom "github.com/nxhieu3102/ai-assistant/internal/domain"
)

func newTestStore(t *testing.T, opts ...FileOption) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), nil, opts...)
	require.NoError(t, err)
	return s
}

func someTask(id, text string, completed bool) dom.Task {
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	return dom.Task{ID: id, Text: text, Completed: completed, CreatedAt: now, UpdatedAt: now}
}

func TestFileStoreReadInitializesDefault(t *testing.T) {
	s := newTestStore(t)

	data, err := s.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, dom.CurrentVersion, data.Version)
	assert.Empty(t, data.Days)
	assert.False(t, data.LastMigration.IsZero())

	// The default aggregate must be persisted, not just returned.
	b, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var onDisk dom.TasksData
	require.NoError(t, json.Unmarshal(b, &onDisk))
	assert.Equal(t, dom.CurrentVersion, onDisk.Version)
}

func TestFileStoreWriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := dom.NewTasksData(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	data.Days["2024-01-02"] = []dom.Task{someTask("A1", "buy milk", false)}
	require.NoError(t, s.Write(ctx, data))

	got, err := s.Read(ctx)
	require.NoError(t, err)
	require.Len(t, got.Days["2024-01-02"], 1)
	assert.Equal(t, "A1", got.Days["2024-01-02"][0].ID)
	assert.Equal(t, "buy milk", got.Days["2024-01-02"][0].Text)
}

func TestFileStoreUpdateSingleCriticalSection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(data *dom.TasksData) error {
		data.Days["2024-01-02"] = []dom.Task{someTask("A1", "one", false)}
		return nil
	})
	require.NoError(t, err)

	err = s.Update(ctx, func(data *dom.TasksData) error {
		data.Days["2024-01-02"] = append(data.Days["2024-01-02"], someTask("A2", "two", true))
		return nil
	})
	require.NoError(t, err)

	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Days["2024-01-02"], 2)
}

func TestFileStoreUpdateErrorLeavesFileUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(data *dom.TasksData) error {
		data.Days["2024-01-02"] = []dom.Task{someTask("A1", "keep me", false)}
		return nil
	}))

	wantErr := &dom.NotFoundError{Msg: "Task not found"}
	err := s.Update(ctx, func(data *dom.TasksData) error {
		data.Days["2024-01-02"] = nil
		return wantErr
	})
	assert.Equal(t, wantErr, err)

	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Days["2024-01-02"], 1)
}

func TestFileStoreCorruptFileIsStorageError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	_, err := s.Read(context.Background())
	var se *dom.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "read", se.Op)
}

func TestFileStoreBackupRotation(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, nil, WithMaxBackups(3))
	require.NoError(t, err)
	ctx := context.Background()

	data := dom.NewTasksData(time.Now().UTC())
	for i := 0; i < 6; i++ {
		data.Days["2024-01-02"] = []dom.Task{someTask("A1", "rev", i%2 == 0)}
		require.NoError(t, s.Write(ctx, data))
	}

	entries, err := os.ReadDir(filepath.Join(dir, backupDirName))
	require.NoError(t, err)

	var count int
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}
	assert.LessOrEqual(t, count, 3)
	assert.NotZero(t, count)
}

func TestFileStoreNoPartialWritesVisible(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := dom.NewTasksData(time.Now().UTC())
	data.Days["2024-01-02"] = []dom.Task{someTask("A1", "atomic", false)}
	require.NoError(t, s.Write(ctx, data))

	// The temp file used for atomic renames must never linger.
	_, err := os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
