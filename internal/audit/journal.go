// Package audit keeps a local journal of tool invocations for
// troubleshooting. The journal is observability only: task operations
// never consult it, remote artifacts remain the sole source of task state.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 50 * time.Millisecond
)

// Entry is one recorded tool invocation.
type Entry struct {
	ID         int64
	Op         string
	Endpoint   string
	TaskID     string
	InstanceID int
	Outcome    string
	ErrorClass string
	Duration   time.Duration
	At         time.Time
}

// Journal is a sqlite-backed append log of operations.
type Journal struct {
	db *sql.DB
}

// Open opens (and initializes) the journal at path.
func Open(path string) (*Journal, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to audit journal: %w", err)
	}

	j := &Journal{db: db}
	if err := j.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			op TEXT NOT NULL,
			endpoint TEXT,
			task_id TEXT,
			instance_id INTEGER,
			outcome TEXT NOT NULL,
			error_class TEXT,
			duration_ms INTEGER NOT NULL,
			at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS operations_at_idx ON operations(at)`,
		`CREATE INDEX IF NOT EXISTS operations_task_idx ON operations(task_id)`,
	}
	for _, stmt := range statements {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize audit schema: %w", err)
		}
	}
	return nil
}

// Append records one operation. Busy-database errors are retried with
// backoff before giving up.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	if j == nil || j.db == nil {
		return errors.New("audit journal unavailable")
	}
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	return withRetry(ctx, defaultRetryAttempts, defaultRetryBackoff, func() error {
		_, err := j.db.ExecContext(ctx, `
			INSERT INTO operations (op, endpoint, task_id, instance_id, outcome, error_class, duration_ms, at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.Op, e.Endpoint, e.TaskID, e.InstanceID, e.Outcome, e.ErrorClass,
			e.Duration.Milliseconds(), at.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
		return nil
	})
}

// Recent returns the newest entries, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, errors.New("audit journal unavailable")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, op, endpoint, task_id, instance_id, outcome, error_class, duration_ms, at
		FROM operations ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMS int64
		var at string
		if err := rows.Scan(&e.ID, &e.Op, &e.Endpoint, &e.TaskID, &e.InstanceID, &e.Outcome, &e.ErrorClass, &durationMS, &at); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if parsed, err := time.Parse(time.RFC3339Nano, at); err == nil {
			e.At = parsed
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func withRetry(ctx context.Context, maxAttempts int, baseBackoff time.Duration, fn func() error) error {
	attempt := 0
	backoff := baseBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn()
		if err == nil {
			return nil
		}

		attempt++
		if !isBusyError(err) || attempt >= maxAttempts {
			return err
		}

		if err := sleepWithContext(ctx, backoff); err != nil {
			return err
		}

		backoff *= 2
	}
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "database is busy") ||
		strings.Contains(message, "sqlite_busy")
}

func sleepWithContext(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
