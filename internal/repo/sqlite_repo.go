package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	dom "github.com/nxhieu3102/ai-assistant/internal/domain"
	"github.com/nxhieu3102/ai-assistant/migrations"
)

const (
	sqliteFileName = "tasks.db"
	metaVersionKey = "version"
	metaMigrateKey = "last_migration"
)

// SQLiteTaskRepo realizes TaskRepo on an embedded document store: one row
// per task tagged with its day key, plus a metadata key/value table. The
// (day, id) primary key enforces per-partition id uniqueness at the storage
// layer, so reads never need to deduplicate.
type SQLiteTaskRepo struct {
	db *sqlx.DB
}

// NewSQLiteTaskRepo opens (or creates) <dataDir>/tasks.db and brings the
// schema up to date with the embedded goose migrations.
func NewSQLiteTaskRepo(dataDir string) (*SQLiteTaskRepo, error) {
	dsn := filepath.Join(dataDir, sqliteFileName) + "?_fk=1&_busy_timeout=300"
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// A single writer keeps the busy-timeout path out of normal operation.
	db.SetMaxOpenConns(1)

	if err := runSQLiteMigrations(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	r := &SQLiteTaskRepo{db: db}
	if err := r.seedMetadata(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func runSQLiteMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations.SQLite)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "sqlite"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (r *SQLiteTaskRepo) seedMetadata(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO metadata (key, value) VALUES (?, ?), (?, ?)`,
		metaVersionKey, fmt.Sprint(dom.CurrentVersion), metaMigrateKey, now)
	if err != nil {
		return &dom.StorageError{Op: "write", Err: err}
	}
	return nil
}

func (r *SQLiteTaskRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteTaskRepo) GetTasksForDate(ctx context.Context, date string) ([]dom.Task, error) {
	tasks := []dom.Task{}
	err := r.db.SelectContext(ctx, &tasks, `
		SELECT id, text, completed, created_at, updated_at
		FROM tasks WHERE day = ? ORDER BY created_at DESC`, date)
	if err != nil {
		return nil, &dom.StorageError{Op: "read", Err: err}
	}
	return tasks, nil
}

func (r *SQLiteTaskRepo) SaveTasksForDate(ctx context.Context, date string, tasks []dom.Task) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		return replaceDayLocked(ctx, tx, date, tasks)
	})
}

func (r *SQLiteTaskRepo) UpdateTasksForDate(ctx context.Context, date string, fn func([]dom.Task) ([]dom.Task, error)) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		current := []dom.Task{}
		err := tx.SelectContext(ctx, &current, `
			SELECT id, text, completed, created_at, updated_at
			FROM tasks WHERE day = ? ORDER BY created_at DESC`, date)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return replaceDayLocked(ctx, tx, date, next)
	})
}

// replaceDayLocked does the document-store write: drop the day's rows,
// reinsert the new list, refresh the migration marker.
func replaceDayLocked(ctx context.Context, tx *sqlx.Tx, date string, tasks []dom.Task) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE day = ?`, date); err != nil {
		return err
	}
	for _, t := range tasks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (day, id, text, completed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			date, t.ID, t.Text, t.Completed, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return setMetaLocked(ctx, tx, metaMigrateKey, time.Now().UTC().Format(time.RFC3339Nano))
}

func setMetaLocked(ctx context.Context, tx *sqlx.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (r *SQLiteTaskRepo) GetAllDays(ctx context.Context) (map[string][]dom.Task, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT day, id, text, completed, created_at, updated_at
		FROM tasks ORDER BY day, created_at DESC`)
	if err != nil {
		return nil, &dom.StorageError{Op: "read", Err: err}
	}
	defer rows.Close()

	days := map[string][]dom.Task{}
	for rows.Next() {
		var day string
		var t dom.Task
		if err := rows.Scan(&day, &t.ID, &t.Text, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, &dom.StorageError{Op: "read", Err: err}
		}
		days[day] = append(days[day], t)
	}
	if err := rows.Err(); err != nil {
		return nil, &dom.StorageError{Op: "read", Err: err}
	}
	return days, nil
}

func (r *SQLiteTaskRepo) DeleteDaysBefore(ctx context.Context, cutoff string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE day < ?`, cutoff); err != nil {
		return &dom.StorageError{Op: "write", Err: err}
	}
	return nil
}

func (r *SQLiteTaskRepo) GetLastMigration(ctx context.Context) (time.Time, error) {
	var raw string
	err := r.db.GetContext(ctx, &raw, `SELECT value FROM metadata WHERE key = ?`, metaMigrateKey)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, &dom.StorageError{Op: "read", Err: err}
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, &dom.StorageError{Op: "read", Err: err}
	}
	return ts, nil
}

func (r *SQLiteTaskRepo) SetLastMigration(ctx context.Context, ts time.Time) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		return setMetaLocked(ctx, tx, metaMigrateKey, ts.UTC().Format(time.RFC3339Nano))
	})
}

func (r *SQLiteTaskRepo) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return &dom.StorageError{Op: "write", Err: err}
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		// Domain errors from the mutate callback pass through untouched.
		var se *dom.StorageError
		if errors.As(err, &se) {
			return err
		}
		if isDomainErr(err) {
			return err
		}
		return &dom.StorageError{Op: "write", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &dom.StorageError{Op: "write", Err: err}
	}
	return nil
}

func isDomainErr(err error) bool {
	var ve *dom.ValidationError
	var nf *dom.NotFoundError
	var inv *dom.InvalidOperationError
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &inv)
}
