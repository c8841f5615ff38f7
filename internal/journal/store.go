package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ferry/internal/config"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is the SQLite-backed upload journal.
type Store struct {
	db   *sql.DB
	path string
}

// Run describes one invocation of the uploader.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Address    string
	RemoteDir  string
	TaskCount  int
	Succeeded  int
	Failed     int
	Bytes      int64
}

// Entry is one recorded task outcome.
type Entry struct {
	RunID        string    `json:"run_id"`
	Position     int       `json:"position"`
	Name         string    `json:"name"`
	Origin       string    `json:"origin,omitempty"`
	Status       string    `json:"status"`
	Attempts     int       `json:"attempts"`
	Bytes        int64     `json:"bytes"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Open opens the journal at the configured state directory.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.JournalPath())
}

// OpenPath opens or creates the journal database at path.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun inserts a run row.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	return s.exec(ctx,
		`INSERT INTO runs (id, started_at, address, remote_dir, task_count) VALUES (?, ?, ?, ?, ?)`,
		run.ID,
		formatTime(run.StartedAt),
		run.Address,
		nullableString(run.RemoteDir),
		run.TaskCount,
	)
}

// FinishRun stores the final tallies of a run.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	return s.exec(ctx,
		`UPDATE runs SET finished_at = ?, succeeded = ?, failed = ?, bytes = ? WHERE id = ?`,
		formatTime(run.FinishedAt),
		run.Succeeded,
		run.Failed,
		run.Bytes,
		run.ID,
	)
}

// RecordOutcome appends a task outcome to its run.
func (s *Store) RecordOutcome(ctx context.Context, entry Entry) error {
	return s.exec(ctx,
		`INSERT INTO outcomes (
            run_id, position, name, origin, status, attempts, bytes,
            error_kind, error_message, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Position,
		entry.Name,
		nullableString(entry.Origin),
		entry.Status,
		entry.Attempts,
		entry.Bytes,
		nullableString(entry.ErrorKind),
		nullableString(entry.ErrorMessage),
		formatTime(entry.StartedAt),
		formatTime(entry.FinishedAt),
	)
}

// Recent returns the most recent outcomes, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, position, name, origin, status, attempts, bytes,
                error_kind, error_message, started_at, finished_at
         FROM outcomes ORDER BY finished_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry       Entry
			origin      sql.NullString
			errorKind   sql.NullString
			errorMsg    sql.NullString
			startedRaw  string
			finishedRaw string
		)
		if err := rows.Scan(
			&entry.RunID,
			&entry.Position,
			&entry.Name,
			&origin,
			&entry.Status,
			&entry.Attempts,
			&entry.Bytes,
			&errorKind,
			&errorMsg,
			&startedRaw,
			&finishedRaw,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		entry.Origin = origin.String
		entry.ErrorKind = errorKind.String
		entry.ErrorMessage = errorMsg.String
		entry.StartedAt, _ = parseTimeString(startedRaw)
		entry.FinishedAt, _ = parseTimeString(finishedRaw)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return entries, nil
}

// GetRun fetches a run by identifier. A missing run returns nil, nil.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var (
		run         Run
		remoteDir   sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, address, remote_dir, task_count, succeeded, failed, bytes
         FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &startedRaw, &finishedRaw, &run.Address, &remoteDir, &run.TaskCount, &run.Succeeded, &run.Failed, &run.Bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.RemoteDir = remoteDir.String
	run.StartedAt, _ = parseTimeString(startedRaw)
	if finishedRaw.Valid {
		run.FinishedAt, _ = parseTimeString(finishedRaw.String)
	}
	return &run, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
