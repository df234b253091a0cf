package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	dom "github.com/nxhieu3102/ai-assistant/internal/domain"
)

const (
	tasksFileName  = "tasks.json"
	backupDirName  = "backups"
	backupPrefix   = "tasks.backup."
	backupSuffix   = ".json"
	defaultRetries = 3
	defaultDelay   = 100 * time.Millisecond
	defaultBackups = 10
)

// FileStore persists the aggregate as a single JSON document guarded by a
// cross-process file lock. Every overwrite goes backup -> temp file ->
// atomic rename, so a partially written tasks.json is never visible.
type FileStore struct {
	mu         sync.Mutex // serializes goroutines; the flock guards other processes
	path       string
	lockPath   string
	backupDir  string
	maxBackups int
	retries    int
	retryDelay time.Duration
	log        *slog.Logger
}

// FileOption tweaks a FileStore.
type FileOption func(*FileStore)

// WithMaxBackups caps the rolling backup count (0 disables backups).
func WithMaxBackups(n int) FileOption {
	return func(s *FileStore) { s.maxBackups = n }
}

// WithLockRetry sets the bounded lock wait: attempts beyond the first, and
// the delay between them.
func WithLockRetry(retries int, delay time.Duration) FileOption {
	return func(s *FileStore) {
		s.retries = retries
		s.retryDelay = delay
	}
}

// NewFileStore creates the data and backup directories and returns a store
// backed by <dataDir>/tasks.json.
func NewFileStore(dataDir string, log *slog.Logger, opts ...FileOption) (*FileStore, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &FileStore{
		path:       filepath.Join(dataDir, tasksFileName),
		lockPath:   filepath.Join(dataDir, tasksFileName+".lock"),
		backupDir:  filepath.Join(dataDir, backupDirName),
		maxBackups: defaultBackups,
		retries:    defaultRetries,
		retryDelay: defaultDelay,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return s, nil
}

// Path returns the location of the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Read(ctx context.Context) (dom.TasksData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return dom.TasksData{}, &dom.StorageError{Op: "read", Err: err}
	}
	defer unlock()

	data, err := s.readLocked()
	if err != nil {
		return dom.TasksData{}, &dom.StorageError{Op: "read", Err: err}
	}
	return data, nil
}

func (s *FileStore) Write(ctx context.Context, data dom.TasksData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return &dom.StorageError{Op: "write", Err: err}
	}
	defer unlock()

	if err := s.writeLocked(data); err != nil {
		return &dom.StorageError{Op: "write", Err: err}
	}
	return nil
}

func (s *FileStore) Update(ctx context.Context, fn func(*dom.TasksData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return &dom.StorageError{Op: "write", Err: err}
	}
	defer unlock()

	data, err := s.readLocked()
	if err != nil {
		return &dom.StorageError{Op: "read", Err: err}
	}
	if err := fn(&data); err != nil {
		return err
	}
	if err := s.writeLocked(data); err != nil {
		return &dom.StorageError{Op: "write", Err: err}
	}
	return nil
}

// acquireLock takes the exclusive file lock with bounded retries. The
// returned func releases it.
func (s *FileStore) acquireLock(ctx context.Context) (func(), error) {
	fl := flock.New(s.lockPath)
	attempts := s.retries + 1
	for i := 0; i < attempts; i++ {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", s.lockPath, err)
		}
		if locked {
			return func() {
				if err := fl.Unlock(); err != nil {
					s.log.Warn("release file lock", "path", s.lockPath, "err", err)
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
	return nil, fmt.Errorf("lock %s held after %d attempts", s.lockPath, attempts)
}

func (s *FileStore) readLocked() (dom.TasksData, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// First run: persist the default aggregate so later writers
			// have a file to back up.
			data := dom.NewTasksData(time.Now().UTC())
			if err := s.writeRaw(data); err != nil {
				return dom.TasksData{}, err
			}
			return data, nil
		}
		return dom.TasksData{}, err
	}

	var data dom.TasksData
	if err := json.Unmarshal(b, &data); err != nil {
		return dom.TasksData{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if data.Days == nil {
		data.Days = map[string][]dom.Task{}
	}
	return data, nil
}

func (s *FileStore) writeLocked(data dom.TasksData) error {
	s.createBackup()
	return s.writeRaw(data)
}

// writeRaw writes to a temp path then renames over the real one.
func (s *FileStore) writeRaw(data dom.TasksData) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// createBackup copies the current file aside before it is overwritten.
// Backup failures are logged, never fatal to the write.
func (s *FileStore) createBackup() {
	if s.maxBackups <= 0 {
		return
	}
	src, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("open file for backup", "path", s.path, "err", err)
		}
		return
	}
	defer src.Close()

	ts := strings.NewReplacer(":", "-", ".", "-").Replace(time.Now().UTC().Format(time.RFC3339Nano))
	backupPath := filepath.Join(s.backupDir, backupPrefix+ts+backupSuffix)
	dst, err := os.Create(backupPath)
	if err != nil {
		s.log.Warn("create backup", "path", backupPath, "err", err)
		return
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		s.log.Warn("write backup", "path", backupPath, "err", err)
		return
	}
	if err := dst.Close(); err != nil {
		s.log.Warn("close backup", "path", backupPath, "err", err)
		return
	}
	s.cleanupOldBackups()
}

// cleanupOldBackups keeps only the maxBackups most recent files by mtime.
func (s *FileStore) cleanupOldBackups() {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		s.log.Warn("list backups", "dir", s.backupDir, "err", err)
		return
	}

	type backup struct {
		path  string
		mtime time.Time
	}
	var backups []backup
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backup{path: filepath.Join(s.backupDir, name), mtime: info.ModTime()})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].mtime.After(backups[j].mtime) })

	for _, old := range backups[min(len(backups), s.maxBackups):] {
		if err := os.Remove(old.path); err != nil {
			s.log.Warn("remove old backup", "path", old.path, "err", err)
		}
	}
}
